package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

var issued = time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func persisted() *entity.Receipt {
	return &entity.Receipt{
		ID:        "A000042/2025",
		PatientID: 7,
		IssuedAt:  issued,
		Items: []entity.LineItem{
			{ID: 1, CatalogueCode: "SC01", Description: "Scaling", UnitPrice: d("50.00"), Quantity: 2},
			{ID: 2, Description: "X-ray", UnitPrice: d("20.00"), Quantity: 1},
		},
		Payments: []entity.PaymentRecord{{ID: 9, Amount: d("60.00"), Method: entity.MethodCash, PaidAt: issued}},
		Revision: 3,
	}
}

func TestReconcile_Create(t *testing.T) {
	p := Proposal{
		PatientID: 7,
		IssuedAt:  issued,
		Items: []entity.LineItem{
			{Description: "Scaling", UnitPrice: d("50.00"), Quantity: 2},
			{Description: "X-ray", UnitPrice: d("20.00"), Quantity: 1},
		},
	}

	merged, plan, err := Reconcile(nil, p, entity.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, plan.Action)
	assert.Len(t, plan.Inserts, 2)
	assert.Empty(t, merged.ID)
	assert.True(t, merged.GrandTotal().Equal(d("120.00")))
	assert.Empty(t, merged.Payments)
}

func TestReconcile_CreateRejectsForeignIdentifiers(t *testing.T) {
	p := Proposal{PatientID: 7, IssuedAt: issued, Items: []entity.LineItem{{ID: 5, Description: "x", UnitPrice: d("1"), Quantity: 1}}}

	_, _, err := Reconcile(nil, p, entity.DefaultPolicy())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReconcile_IdempotentAgainstItself(t *testing.T) {
	existing := persisted()

	merged, plan, err := Reconcile(existing, ProposalFrom(existing), entity.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, ActionReplace, plan.Action)
	assert.True(t, plan.IsNoop())
	assert.Equal(t, []int64{1, 2}, plan.Unchanged)
	assert.Equal(t, existing.Items, merged.Items)
	assert.Equal(t, existing.Payments, merged.Payments)
	assert.True(t, merged.Balance().Equal(d("60.00")))
}

func TestReconcile_ReplaceDiff(t *testing.T) {
	existing := persisted()
	p := ProposalFrom(existing)
	p.Items = []entity.LineItem{
		{ID: 2, Description: "X-ray", UnitPrice: d("25.00"), Quantity: 1, Remark: "bitewing"},
		{Description: "Fluoride", UnitPrice: d("15.00"), Quantity: 1},
	}
	p.Discount = d("5.00")

	merged, plan, err := Reconcile(existing, p, entity.DefaultPolicy())
	require.NoError(t, err)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, int64(2), plan.Updates[0].ID)
	assert.Equal(t, []string{FieldUnitPrice, FieldRemark}, plan.Updates[0].Fields)
	require.Len(t, plan.Inserts, 1)
	assert.Equal(t, "Fluoride", plan.Inserts[0].Description)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, int64(1), plan.Deletes[0].ID)
	assert.True(t, plan.HeaderChanged)

	assert.True(t, merged.Subtotal().Equal(d("40.00")))
	assert.True(t, merged.GrandTotal().Equal(d("35.00")))
	assert.Equal(t, existing.Payments, merged.Payments)
	assert.Equal(t, existing.Revision, merged.Revision)

	// existing snapshot untouched
	assert.Len(t, existing.Items, 2)
	assert.True(t, existing.Discount.IsZero())
}

func TestReconcile_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Proposal)
		policy entity.Policy
	}{
		{"empty line items", func(p *Proposal) { p.Items = nil }, entity.DefaultPolicy()},
		{"foreign identifier", func(p *Proposal) { p.Items[0].ID = 77 }, entity.DefaultPolicy()},
		{"duplicate identifier", func(p *Proposal) { p.Items[1].ID = 1 }, entity.DefaultPolicy()},
		{"zero quantity", func(p *Proposal) { p.Items[0].Quantity = 0 }, entity.DefaultPolicy()},
		{"negative discount", func(p *Proposal) { p.Discount = d("-1.00") }, entity.DefaultPolicy()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := persisted()
			p := ProposalFrom(existing)
			tt.mutate(&p)

			merged, plan, err := Reconcile(existing, p, tt.policy)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Nil(t, merged)
			assert.Nil(t, plan)
			assert.Equal(t, persisted(), existing)
		})
	}
}

func TestReconcile_NegativeDiscountWhenAllowed(t *testing.T) {
	policy := entity.DefaultPolicy()
	policy.AllowNegativeDiscount = true
	existing := persisted()
	p := ProposalFrom(existing)
	p.Discount = d("-10.00")

	merged, plan, err := Reconcile(existing, p, policy)
	require.NoError(t, err)
	assert.True(t, plan.HeaderChanged)
	assert.False(t, plan.ItemsChanged())
	assert.True(t, merged.GrandTotal().Equal(d("130.00")))
}
