package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// ReceiptRepository implements port.ReceiptRepository over the receipts and receipt_items tables
type ReceiptRepository struct {
	db     *sqldb.DB
	prefix string
	loc    *time.Location
	logger *zap.Logger
}

// NewReceiptRepository creates a receipt repository. prefix starts every allocated
// receipt number, e.g. "A" gives A000001/2025. Times are stored in UTC and loaded
// back in loc, the clinic timezone; nil means UTC.
func NewReceiptRepository(db *sqldb.DB, prefix string, loc *time.Location, logger *zap.Logger) port.ReceiptRepository {
	if strings.TrimSpace(prefix) == "" {
		prefix = entity.DefaultReceiptPrefix
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReceiptRepository{
		db:     db,
		prefix: strings.TrimSpace(prefix),
		loc:    loc,
		logger: logger,
	}
}

const receiptColumns = `rcpt_id, patient_id, mr_id, issued, payment_code, remark, done_by,
	discount, rounding, revision, created_at, updated_at`

// GetByID loads header, items and live payments. Returns nil, nil when missing.
func (r *ReceiptRepository) GetByID(ctx context.Context, id string) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE rcpt_id = ?`
	return r.loadOne(ctx, query, id)
}

// FindByVisit returns the receipt issued for the patient and visit note on the
// clinic calendar day of issuedOn, or nil, nil
func (r *ReceiptRepository) FindByVisit(ctx context.Context, patientID, visitNoteID int64, issuedOn time.Time) (*entity.Receipt, error) {
	day := issuedOn.In(r.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
	end := start.AddDate(0, 0, 1)

	query := `SELECT ` + receiptColumns + ` FROM receipts
		WHERE patient_id = ? AND mr_id = ? AND issued >= ? AND issued < ?
		ORDER BY seq DESC LIMIT 1`
	return r.loadOne(ctx, query, patientID, visitNoteID, start.UTC(), end.UTC())
}

func (r *ReceiptRepository) loadOne(ctx context.Context, query string, args ...interface{}) (*entity.Receipt, error) {
	exec := sqldb.ExecutorFor(ctx, r.db.DB)

	var rc entity.Receipt
	err := exec.QueryRowContext(ctx, query, args...).Scan(
		&rc.ID,
		&rc.PatientID,
		&rc.VisitNoteID,
		&rc.IssuedAt,
		&rc.PaymentCode,
		&rc.Remark,
		&rc.ProcessedBy,
		&rc.Discount,
		&rc.Rounding,
		&rc.Revision,
		&rc.CreatedAt,
		&rc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load receipt", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	rc.IssuedAt = rc.IssuedAt.In(r.loc)

	items, err := r.listItems(ctx, exec, rc.ID)
	if err != nil {
		return nil, err
	}
	rc.Items = items

	payments, err := listPayments(ctx, exec, rc.ID)
	if err != nil {
		r.logger.Error("Failed to load payments", zap.String("receipt_id", rc.ID), zap.Error(err))
		return nil, err
	}
	for i := range payments {
		payments[i].PaidAt = payments[i].PaidAt.In(r.loc)
	}
	rc.Payments = payments
	return &rc, nil
}

func (r *ReceiptRepository) listItems(ctx context.Context, exec sqldb.Executor, receiptID string) ([]entity.LineItem, error) {
	query := `
		SELECT id, item, description, qty, unitprice, rcpt_remark
		FROM receipt_items
		WHERE rcpt_id = ?
		ORDER BY position ASC, id ASC
	`

	rows, err := exec.QueryContext(ctx, query, receiptID)
	if err != nil {
		r.logger.Error("Failed to get receipt items", zap.String("receipt_id", receiptID), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt items: %w", err)
	}
	defer rows.Close()

	var items []entity.LineItem
	for rows.Next() {
		var li entity.LineItem
		if err := rows.Scan(&li.ID, &li.CatalogueCode, &li.Description, &li.Quantity, &li.UnitPrice, &li.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan receipt item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// Create allocates the next receipt number and writes header and items in one transaction
func (r *ReceiptRepository) Create(ctx context.Context, rc *entity.Receipt) (string, error) {
	now := time.Now().UTC()
	var id string

	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqldb.ExecutorFor(ctx, r.db.DB)

		var seq int64
		if err := exec.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM receipts").Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate receipt number: %w", err)
		}
		id = fmt.Sprintf("%s%06d/%d", r.prefix, seq, rc.IssuedAt.In(r.loc).Year())

		query := `
			INSERT INTO receipts (
				rcpt_id, seq, patient_id, mr_id, issued, payment_code, remark, done_by,
				discount, rounding, revision, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`
		if _, err := exec.ExecContext(ctx, query,
			id,
			seq,
			rc.PatientID,
			rc.VisitNoteID,
			rc.IssuedAt.UTC(),
			rc.PaymentCode,
			rc.Remark,
			rc.ProcessedBy,
			rc.Discount.StringFixed(entity.CurrencyPlaces),
			rc.Rounding.String(),
			now,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}

		for i := range rc.Items {
			itemID, err := insertItem(ctx, exec, id, i, rc.Items[i])
			if err != nil {
				return err
			}
			rc.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create receipt", zap.Int64("patient_id", rc.PatientID), zap.Error(err))
		return "", err
	}

	rc.ID = id
	rc.Revision = 1
	rc.CreatedAt = now
	rc.UpdatedAt = now
	r.logger.Info("Receipt created", zap.String("receipt_id", id), zap.Int("items", len(rc.Items)))
	return id, nil
}

// Replace overwrites header and item set when the stored revision matches
func (r *ReceiptRepository) Replace(ctx context.Context, rc *entity.Receipt, expectedRevision int64) error {
	now := time.Now().UTC()

	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqldb.ExecutorFor(ctx, r.db.DB)

		query := `
			UPDATE receipts
			SET issued = ?, payment_code = ?, remark = ?, done_by = ?, discount = ?, rounding = ?,
				revision = revision + 1, updated_at = ?
			WHERE rcpt_id = ? AND revision = ?
		`
		result, err := exec.ExecContext(ctx, query,
			rc.IssuedAt.UTC(),
			rc.PaymentCode,
			rc.Remark,
			rc.ProcessedBy,
			rc.Discount.StringFixed(entity.CurrencyPlaces),
			rc.Rounding.String(),
			now,
			rc.ID,
			expectedRevision,
		)
		if err != nil {
			return fmt.Errorf("failed to update receipt: %w", err)
		}
		if err := r.checkRevision(ctx, exec, result, rc.ID); err != nil {
			return err
		}

		stored, err := r.listItems(ctx, exec, rc.ID)
		if err != nil {
			return err
		}
		keep := make(map[int64]bool, len(rc.Items))
		for i := range rc.Items {
			li := &rc.Items[i]
			if !li.IsPersisted() {
				itemID, err := insertItem(ctx, exec, rc.ID, i, *li)
				if err != nil {
					return err
				}
				li.ID = itemID
				keep[itemID] = true
				continue
			}
			keep[li.ID] = true
			if _, err := exec.ExecContext(ctx, `
				UPDATE receipt_items
				SET position = ?, item = ?, description = ?, qty = ?, unitprice = ?, rcpt_remark = ?
				WHERE id = ? AND rcpt_id = ?
			`, i, li.CatalogueCode, li.Description, li.Quantity, li.UnitPrice.StringFixed(entity.CurrencyPlaces), li.Remark, li.ID, rc.ID); err != nil {
				return fmt.Errorf("failed to update receipt item %d: %w", li.ID, err)
			}
		}
		for _, old := range stored {
			if keep[old.ID] {
				continue
			}
			if _, err := exec.ExecContext(ctx, "DELETE FROM receipt_items WHERE id = ? AND rcpt_id = ?", old.ID, rc.ID); err != nil {
				return fmt.Errorf("failed to delete receipt item %d: %w", old.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace receipt", zap.String("receipt_id", rc.ID), zap.Int64("expected_revision", expectedRevision), zap.Error(err))
		return err
	}

	rc.Revision = expectedRevision + 1
	rc.UpdatedAt = now
	return nil
}

// BumpRevision advances the revision of a receipt whose stored revision matches
func (r *ReceiptRepository) BumpRevision(ctx context.Context, id string, expectedRevision int64) (int64, error) {
	exec := sqldb.ExecutorFor(ctx, r.db.DB)

	result, err := exec.ExecContext(ctx,
		"UPDATE receipts SET revision = revision + 1, updated_at = ? WHERE rcpt_id = ? AND revision = ?",
		time.Now().UTC(), id, expectedRevision,
	)
	if err != nil {
		r.logger.Error("Failed to bump receipt revision", zap.String("receipt_id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to bump receipt revision: %w", err)
	}
	if err := r.checkRevision(ctx, exec, result, id); err != nil {
		return 0, err
	}
	return expectedRevision + 1, nil
}

// checkRevision tells a stale revision apart from a missing receipt when an update touched no row
func (r *ReceiptRepository) checkRevision(ctx context.Context, exec sqldb.Executor, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current int64
	err = exec.QueryRowContext(ctx, "SELECT revision FROM receipts WHERE rcpt_id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("receipt %s: %w", id, port.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read receipt revision: %w", err)
	}
	return fmt.Errorf("receipt %s is at revision %d: %w", id, current, port.ErrRevisionMismatch)
}

func insertItem(ctx context.Context, exec sqldb.Executor, receiptID string, position int, li entity.LineItem) (int64, error) {
	query := `
		INSERT INTO receipt_items (rcpt_id, position, item, description, qty, unitprice, rcpt_remark)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := exec.ExecContext(ctx, query,
		receiptID,
		position,
		li.CatalogueCode,
		li.Description,
		li.Quantity,
		li.UnitPrice.StringFixed(entity.CurrencyPlaces),
		li.Remark,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert receipt item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
