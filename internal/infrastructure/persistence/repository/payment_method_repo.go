package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// PaymentMethodRepository implements port.PaymentMethodLookup over payment_method
type PaymentMethodRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentMethodRepository creates a new payment method repository
func NewPaymentMethodRepository(db *sql.DB, logger *zap.Logger) *PaymentMethodRepository {
	return &PaymentMethodRepository{
		db:     db,
		logger: logger,
	}
}

// Describe returns the label for code, or "" when the code is unknown
func (r *PaymentMethodRepository) Describe(ctx context.Context, code string) (string, error) {
	var description string
	err := sqldb.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		"SELECT description FROM payment_method WHERE code = ?", code,
	).Scan(&description)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to describe payment method", zap.String("code", code), zap.Error(err))
		return "", fmt.Errorf("failed to describe payment method: %w", err)
	}
	return description, nil
}

// List returns every payment method keyed by code
func (r *PaymentMethodRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := sqldb.ExecutorFor(ctx, r.db).QueryContext(ctx, "SELECT code, description FROM payment_method ORDER BY code")
	if err != nil {
		r.logger.Error("Failed to list payment methods", zap.Error(err))
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	methods := make(map[string]string)
	for rows.Next() {
		var code, description string
		if err := rows.Scan(&code, &description); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods[code] = description
	}
	return methods, rows.Err()
}

var _ port.PaymentMethodLookup = (*PaymentMethodRepository)(nil)
