package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

func TestCatalogueRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogueRepository(newTestDB(t).DB, zap.NewNop())

	require.NoError(t, repo.Create(ctx, &entity.CatalogueItem{Code: "SC01", Description: "Scaling", UnitPrice: d("80.00")}))

	item, err := repo.LookupItem(ctx, "SC01")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Scaling", item.Description)
	assert.Equal(t, "80.00", item.UnitPrice.StringFixed(2))

	missing, err := repo.LookupItem(ctx, "ZZ99")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Deactivate(ctx, "SC01"))
	hidden, err := repo.LookupItem(ctx, "SC01")
	require.NoError(t, err)
	assert.Nil(t, hidden)

	assert.ErrorIs(t, repo.Deactivate(ctx, "ZZ99"), port.ErrRecordNotFound)
}

func TestPaymentMethodRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentMethodRepository(newTestDB(t).DB, zap.NewNop())

	label, err := repo.Describe(ctx, entity.MethodTransfer)
	require.NoError(t, err)
	assert.Equal(t, "Bank Transfer", label)

	unknown, err := repo.Describe(ctx, "CHQ")
	require.NoError(t, err)
	assert.Empty(t, unknown)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "Cash", all[entity.MethodCash])
}

func TestPatientRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientRepository(newTestDB(t).DB, zap.NewNop())

	require.NoError(t, repo.Create(ctx, &entity.PatientRef{
		ID: 7, Name: "Tan Ah Kow", ReceiptName: "Tan Holdings", IdentityNo: "800101-14-5555", Phone: "012-3456789",
	}))

	p, err := repo.LoadPatientRef(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Tan Holdings", p.DisplayName())
	assert.Equal(t, "012-3456789", p.Phone)

	missing, err := repo.LoadPatientRef(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
