package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// CatalogueRepository reads active stock items and implements port.CatalogueLookup
type CatalogueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogueRepository creates a new catalogue repository
func NewCatalogueRepository(db *sql.DB, logger *zap.Logger) *CatalogueRepository {
	return &CatalogueRepository{
		db:     db,
		logger: logger,
	}
}

// LookupItem returns the active stock item for code, or nil, nil
func (r *CatalogueRepository) LookupItem(ctx context.Context, code string) (*entity.CatalogueItem, error) {
	query := `SELECT stock_id, name, unit_price FROM stock_items WHERE stock_id = ? AND active = 1`

	var item entity.CatalogueItem
	err := sqldb.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, code).Scan(&item.Code, &item.Description, &item.UnitPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up stock item", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to look up stock item: %w", err)
	}
	return &item, nil
}

// Create adds an active stock item
func (r *CatalogueRepository) Create(ctx context.Context, item *entity.CatalogueItem) error {
	query := `INSERT INTO stock_items (stock_id, name, unit_price, active) VALUES (?, ?, ?, 1)`

	if _, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		item.Code, item.Description, item.UnitPrice.StringFixed(entity.CurrencyPlaces),
	); err != nil {
		r.logger.Error("Failed to create stock item", zap.String("code", item.Code), zap.Error(err))
		return fmt.Errorf("failed to create stock item: %w", err)
	}
	return nil
}

// Deactivate hides a stock item from lookups
func (r *CatalogueRepository) Deactivate(ctx context.Context, code string) error {
	result, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, "UPDATE stock_items SET active = 0 WHERE stock_id = ?", code)
	if err != nil {
		r.logger.Error("Failed to deactivate stock item", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("failed to deactivate stock item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("stock item %s: %w", code, port.ErrRecordNotFound)
	}
	return nil
}

var _ port.CatalogueLookup = (*CatalogueRepository)(nil)
