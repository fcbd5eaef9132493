package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// PaymentRepository implements port.PaymentRepository over partial_payment.
// Removal is soft; removed rows are never returned.
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Add records a payment against a receipt and sets p.ID
func (r *PaymentRepository) Add(ctx context.Context, receiptID string, p *entity.PaymentRecord) (int64, error) {
	query := `
		INSERT INTO partial_payment (rcpt_id, date, amount, pay_code, remark, removed)
		VALUES (?, ?, ?, ?, ?, 0)
	`

	result, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		receiptID,
		p.PaidAt.UTC(),
		p.Amount.StringFixed(entity.CurrencyPlaces),
		p.Method,
		p.Note,
	)
	if err != nil {
		r.logger.Error("Failed to add payment", zap.String("receipt_id", receiptID), zap.Error(err))
		return 0, fmt.Errorf("failed to add payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	return id, nil
}

// UpdateAmount changes the amount of one live payment
func (r *PaymentRepository) UpdateAmount(ctx context.Context, receiptID string, paymentID int64, amount decimal.Decimal) error {
	query := `UPDATE partial_payment SET amount = ? WHERE payment_id = ? AND rcpt_id = ? AND removed = 0`

	result, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query, amount.StringFixed(entity.CurrencyPlaces), paymentID, receiptID)
	if err != nil {
		r.logger.Error("Failed to update payment amount",
			zap.String("receipt_id", receiptID),
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
		return fmt.Errorf("failed to update payment amount: %w", err)
	}
	return requireAffected(result, "payment", paymentID)
}

// Remove marks one live payment as removed
func (r *PaymentRepository) Remove(ctx context.Context, receiptID string, paymentID int64) error {
	query := `UPDATE partial_payment SET removed = 1 WHERE payment_id = ? AND rcpt_id = ? AND removed = 0`

	result, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query, paymentID, receiptID)
	if err != nil {
		r.logger.Error("Failed to remove payment",
			zap.String("receipt_id", receiptID),
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
		return fmt.Errorf("failed to remove payment: %w", err)
	}
	return requireAffected(result, "payment", paymentID)
}

// ListByReceipt returns live payments ordered by payment time, then insertion
func (r *PaymentRepository) ListByReceipt(ctx context.Context, receiptID string) ([]entity.PaymentRecord, error) {
	payments, err := listPayments(ctx, sqldb.ExecutorFor(ctx, r.db), receiptID)
	if err != nil {
		r.logger.Error("Failed to list payments", zap.String("receipt_id", receiptID), zap.Error(err))
		return nil, err
	}
	return payments, nil
}

func listPayments(ctx context.Context, exec sqldb.Executor, receiptID string) ([]entity.PaymentRecord, error) {
	query := `
		SELECT payment_id, amount, pay_code, date, remark
		FROM partial_payment
		WHERE rcpt_id = ? AND removed = 0
		ORDER BY date ASC, payment_id ASC
	`

	rows, err := exec.QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []entity.PaymentRecord
	for rows.Next() {
		var p entity.PaymentRecord
		if err := rows.Scan(&p.ID, &p.Amount, &p.Method, &p.PaidAt, &p.Note); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func requireAffected(result sql.Result, what string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, port.ErrRecordNotFound)
	}
	return nil
}

var _ port.PaymentRepository = (*PaymentRepository)(nil)
