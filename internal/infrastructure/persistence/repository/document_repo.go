package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a rendered document
func (r *DocumentRepository) Create(ctx context.Context, a *entity.DocumentArtifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO receipt_documents (rcpt_id, copy_index, revision, path, token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqldb.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		a.ReceiptID,
		a.CopyIndex,
		a.Revision,
		a.Path,
		a.Token.String(),
		a.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record document", zap.String("receipt_id", a.ReceiptID), zap.Error(err))
		return fmt.Errorf("failed to record document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// Latest returns the most recently recorded document, or nil, nil
func (r *DocumentRepository) Latest(ctx context.Context, receiptID string) (*entity.DocumentArtifact, error) {
	query := `
		SELECT id, rcpt_id, copy_index, revision, path, token, created_at
		FROM receipt_documents
		WHERE rcpt_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var a entity.DocumentArtifact
	err := sqldb.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, receiptID).Scan(
		&a.ID, &a.ReceiptID, &a.CopyIndex, &a.Revision, &a.Path, &a.Token, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest document", zap.String("receipt_id", receiptID), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest document: %w", err)
	}
	return &a, nil
}

// ListByReceipt returns every recorded document oldest first
func (r *DocumentRepository) ListByReceipt(ctx context.Context, receiptID string) ([]*entity.DocumentArtifact, error) {
	query := `
		SELECT id, rcpt_id, copy_index, revision, path, token, created_at
		FROM receipt_documents
		WHERE rcpt_id = ?
		ORDER BY id ASC
	`

	rows, err := sqldb.ExecutorFor(ctx, r.db).QueryContext(ctx, query, receiptID)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("receipt_id", receiptID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.DocumentArtifact
	for rows.Next() {
		var a entity.DocumentArtifact
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.CopyIndex, &a.Revision, &a.Path, &a.Token, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &a)
	}
	return docs, rows.Err()
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)
