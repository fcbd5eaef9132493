package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

type fakeExistence map[string]bool

func (f fakeExistence) Exists(ctx context.Context, path string) bool {
	return f[path]
}

func namingReceipt() *entity.Receipt {
	return &entity.Receipt{ID: "42", PatientID: 7, IssuedAt: time.Date(2025, 10, 16, 15, 30, 0, 0, time.UTC)}
}

func TestFileName(t *testing.T) {
	r := namingReceipt()
	assert.Equal(t, "receipt_7_42_20251016_p01.pdf", FileName(r, 1, time.UTC))
	assert.Equal(t, "receipt_7_42_20251016_p02.pdf", FileName(r, 2, time.UTC))

	r.ID = "A000042/2025"
	assert.Equal(t, "receipt_7_A000042_2025_20251016_p12.pdf", FileName(r, 12, time.UTC))

	draft := &entity.Receipt{IssuedAt: r.IssuedAt}
	assert.Equal(t, "receipt_patient_receipt_20251016_p01.pdf", FileName(draft, 1, nil))
}

func TestFileName_SameInstantSameName(t *testing.T) {
	kl := time.FixedZone("MYT", 8*3600)
	entered := &entity.Receipt{ID: "A000001/2025", PatientID: 7, IssuedAt: time.Date(2025, 10, 16, 7, 0, 0, 0, kl)}
	reloaded := &entity.Receipt{ID: entered.ID, PatientID: 7, IssuedAt: entered.IssuedAt.UTC()}

	assert.Equal(t, "receipt_7_A000001_2025_20251016_p01.pdf", FileName(entered, 1, kl))
	assert.Equal(t, FileName(entered, 1, kl), FileName(reloaded, 1, kl))

	// with no clinic zone both are dated in UTC
	assert.Equal(t, FileName(entered, 1, nil), FileName(reloaded, 1, nil))
	assert.Equal(t, "receipt_7_A000001_2025_20251015_p01.pdf", FileName(reloaded, 1, nil))
}

func TestResolver_FindsCopiesAcrossZones(t *testing.T) {
	kl := time.FixedZone("MYT", 8*3600)
	taken := fakeExistence{"receipt_7_42_20251016_p01.pdf": true}
	rs := NewResolver(taken, kl)
	r := &entity.Receipt{ID: "42", PatientID: 7, IssuedAt: time.Date(2025, 10, 15, 23, 30, 0, 0, time.UTC)}

	next, err := rs.Resolve(context.Background(), "", r, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next.CopyIndex)
}

func TestResolver_NextFreeCopy(t *testing.T) {
	ctx := context.Background()
	taken := fakeExistence{}
	rs := NewResolver(taken, time.UTC)
	r := namingReceipt()

	first, err := rs.Resolve(ctx, "receipts", r, nil)
	require.NoError(t, err)
	assert.Equal(t, "receipts/receipt_7_42_20251016_p01.pdf", first.Path)
	assert.Equal(t, 1, first.CopyIndex)
	taken[first.Path] = true

	second, err := rs.Resolve(ctx, "receipts", r, nil)
	require.NoError(t, err)
	assert.Equal(t, "receipt_7_42_20251016_p02.pdf", second.FileName)
	assert.Equal(t, 2, second.CopyIndex)
	assert.NotEqual(t, first.Path, second.Path)
}

func TestResolver_ExplicitCopyIsDeterministic(t *testing.T) {
	ctx := context.Background()
	rs := NewResolver(fakeExistence{"receipt_7_42_20251016_p01.pdf": true}, time.UTC)
	r := namingReceipt()
	one := 1

	a, err := rs.Resolve(ctx, "", r, &one)
	require.NoError(t, err)
	b, err := rs.Resolve(ctx, "", r, &one)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "receipt_7_42_20251016_p01.pdf", a.Path)
}

func TestResolver_RejectsBadIndex(t *testing.T) {
	rs := NewResolver(fakeExistence{}, time.UTC)
	zero := 0

	_, err := rs.Resolve(context.Background(), "", namingReceipt(), &zero)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
