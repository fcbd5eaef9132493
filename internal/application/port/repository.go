package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// ErrRevisionMismatch is returned by a store when the stored revision differs from the expected one
var ErrRevisionMismatch = errors.New("receipt revision mismatch")

// ErrRecordNotFound is returned by a store when a targeted row does not exist
var ErrRecordNotFound = errors.New("record not found")

// ReceiptRepository defines persistence operations for Receipt header and line items.
// GetByID and FindByVisit return nil, nil when no receipt matches.
type ReceiptRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Receipt, error)
	FindByVisit(ctx context.Context, patientID, visitNoteID int64, issuedOn time.Time) (*entity.Receipt, error)

	// Create allocates the receipt identifier, writes header and items and sets
	// item identifiers and Revision on r
	Create(ctx context.Context, r *entity.Receipt) (string, error)

	// Replace overwrites header and line items when the stored revision equals
	// expectedRevision. New items get identifiers; r.Revision is bumped.
	Replace(ctx context.Context, r *entity.Receipt, expectedRevision int64) error

	// BumpRevision advances the revision after a payment edit and returns the new value
	BumpRevision(ctx context.Context, id string, expectedRevision int64) (int64, error)
}

// PaymentRepository defines persistence operations for PaymentRecord
type PaymentRepository interface {
	Add(ctx context.Context, receiptID string, p *entity.PaymentRecord) (int64, error)
	UpdateAmount(ctx context.Context, receiptID string, paymentID int64, amount decimal.Decimal) error
	Remove(ctx context.Context, receiptID string, paymentID int64) error
	ListByReceipt(ctx context.Context, receiptID string) ([]entity.PaymentRecord, error)
}

// DocumentRepository records rendered receipt documents
type DocumentRepository interface {
	Create(ctx context.Context, a *entity.DocumentArtifact) error
	Latest(ctx context.Context, receiptID string) (*entity.DocumentArtifact, error)
	ListByReceipt(ctx context.Context, receiptID string) ([]*entity.DocumentArtifact, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
