package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/clinic-receipts/pkg/database"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "clinic.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())
	return sqldb.NewDB(db.DB, logger)
}

func draftReceipt() *entity.Receipt {
	return &entity.Receipt{
		PatientID:   7,
		VisitNoteID: 42,
		IssuedAt:    time.Date(2025, 10, 16, 10, 30, 0, 0, time.UTC),
		PaymentCode: "cash",
		ProcessedBy: "Dr Lim",
		Discount:    d("5.00"),
		Rounding:    d("0.05"),
		Items: []entity.LineItem{
			{CatalogueCode: "SC01", Description: "Scaling", UnitPrice: d("50.00"), Quantity: 2},
			{Description: "X-ray", UnitPrice: d("20.00"), Quantity: 1, Remark: "bitewing"},
		},
	}
}
