package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/document"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

func TestReceiptRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())

	rc := draftReceipt()
	id, err := repo.Create(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, "A000001/2025", id)
	assert.Equal(t, int64(1), rc.Revision)
	for _, li := range rc.Items {
		assert.NotZero(t, li.ID)
	}

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rc.PatientID, got.PatientID)
	assert.Equal(t, rc.VisitNoteID, got.VisitNoteID)
	assert.True(t, rc.IssuedAt.Equal(got.IssuedAt))
	assert.Equal(t, "Dr Lim", got.ProcessedBy)
	assert.True(t, got.Discount.Equal(d("5")))
	assert.True(t, got.Rounding.Equal(d("0.05")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, rc.Items[0].ID, got.Items[0].ID)
	assert.Equal(t, "SC01", got.Items[0].CatalogueCode)
	assert.Equal(t, "bitewing", got.Items[1].Remark)
	assert.Equal(t, "115.05", got.GrandTotal().StringFixed(2))
	assert.Empty(t, got.Payments)
}

func TestReceiptRepository_SequenceIsGlobal(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "B", nil, zap.NewNop())

	first, err := repo.Create(ctx, draftReceipt())
	require.NoError(t, err)

	next := draftReceipt()
	next.IssuedAt = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	second, err := repo.Create(ctx, next)
	require.NoError(t, err)

	assert.Equal(t, "B000001/2025", first)
	assert.Equal(t, "B000002/2026", second)
}

func TestReceiptRepository_GetMissing(t *testing.T) {
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())

	got, err := repo.GetByID(context.Background(), "A999999/2025")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestReceiptRepository_FindByVisit(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())
	rc := draftReceipt()
	_, err := repo.Create(ctx, rc)
	require.NoError(t, err)

	tests := []struct {
		name    string
		patient int64
		visit   int64
		on      time.Time
		found   bool
	}{
		{"same day", 7, 42, time.Date(2025, 10, 16, 23, 0, 0, 0, time.UTC), true},
		{"other day", 7, 42, time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC), false},
		{"other visit", 7, 43, rc.IssuedAt, false},
		{"other patient", 8, 42, rc.IssuedAt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByVisit(ctx, tt.patient, tt.visit, tt.on)
			require.NoError(t, err)
			if tt.found {
				require.NotNil(t, got)
				assert.Equal(t, rc.ID, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestReceiptRepository_ClinicZone(t *testing.T) {
	ctx := context.Background()
	kl := time.FixedZone("MYT", 8*3600)
	db := newTestDB(t)
	repo := NewReceiptRepository(db, "", kl, zap.NewNop())
	payments := NewPaymentRepository(db.DB, zap.NewNop())

	rc := draftReceipt()
	rc.IssuedAt = time.Date(2025, 10, 16, 7, 0, 0, 0, kl)
	id, err := repo.Create(ctx, rc)
	require.NoError(t, err)
	_, err = payments.Add(ctx, id, &entity.PaymentRecord{Amount: d("50.00"), Method: "cash", PaidAt: time.Date(2025, 10, 16, 7, 30, 0, 0, kl)})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, rc.IssuedAt.Equal(got.IssuedAt))
	assert.Equal(t, "2025-10-16 07:00", got.IssuedAt.Format("2006-01-02 15:04"))
	require.Len(t, got.Payments, 1)
	assert.Equal(t, "2025-10-16", got.Payments[0].PaidAt.Format("2006-01-02"))
	assert.Equal(t, document.FileName(rc, 1, kl), document.FileName(got, 1, kl))

	found, err := repo.FindByVisit(ctx, 7, 42, time.Date(2025, 10, 16, 20, 0, 0, 0, kl))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)

	// 2025-10-15 in UTC but already the previous clinic day
	missing, err := repo.FindByVisit(ctx, 7, 42, time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReceiptRepository_Replace(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())
	rc := draftReceipt()
	_, err := repo.Create(ctx, rc)
	require.NoError(t, err)
	keptID := rc.Items[0].ID

	edit := rc.Clone()
	edit.Items[0].Quantity = 3
	edit.Items = append(edit.Items[:1], entity.LineItem{Description: "Fluoride", UnitPrice: d("15.00"), Quantity: 1})
	edit.Discount = d("0")
	require.NoError(t, repo.Replace(ctx, edit, 1))
	assert.Equal(t, int64(2), edit.Revision)
	assert.NotZero(t, edit.Items[1].ID)

	got, err := repo.GetByID(ctx, rc.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, keptID, got.Items[0].ID)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, "Fluoride", got.Items[1].Description)
	assert.Equal(t, int64(2), got.Revision)
	assert.True(t, got.Discount.IsZero())
}

func TestReceiptRepository_ReplaceStaleRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())
	rc := draftReceipt()
	_, err := repo.Create(ctx, rc)
	require.NoError(t, err)

	stale := rc.Clone()
	_, err = repo.BumpRevision(ctx, rc.ID, 1)
	require.NoError(t, err)

	stale.Items[0].Quantity = 9
	err = repo.Replace(ctx, stale, 1)
	assert.ErrorIs(t, err, port.ErrRevisionMismatch)

	got, err := repo.GetByID(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, int64(2), got.Revision)
}

func TestReceiptRepository_BumpRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewReceiptRepository(newTestDB(t), "", nil, zap.NewNop())
	rc := draftReceipt()
	_, err := repo.Create(ctx, rc)
	require.NoError(t, err)

	rev, err := repo.BumpRevision(ctx, rc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	_, err = repo.BumpRevision(ctx, rc.ID, 1)
	assert.ErrorIs(t, err, port.ErrRevisionMismatch)

	_, err = repo.BumpRevision(ctx, "A000404/2025", 1)
	assert.ErrorIs(t, err, port.ErrRecordNotFound)
}
