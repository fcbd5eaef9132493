// Package reconcile merges a proposed line-item set into a receipt.
//
// Reconcile is pure: it never touches storage. It returns the merged receipt and a
// Plan describing the inserts, updates and deletes a store must apply.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// Action is the kind of write a plan requires
type Action string

const (
	ActionCreate  Action = "create"
	ActionReplace Action = "replace"
)

// Proposal is the edited header and line-item set submitted for a receipt
type Proposal struct {
	PatientID   int64
	VisitNoteID int64
	IssuedAt    time.Time
	PaymentCode string
	Remark      string
	ProcessedBy string
	Items       []entity.LineItem
	Discount    decimal.Decimal
	Rounding    decimal.Decimal
}

// Field names reported in ItemChange.Fields
const (
	FieldCatalogueCode = "catalogue_code"
	FieldDescription   = "description"
	FieldUnitPrice     = "unit_price"
	FieldQuantity      = "quantity"
	FieldRemark        = "remark"
)

// ItemChange is a field-level update of one matched line item
type ItemChange struct {
	ID     int64
	Before entity.LineItem
	After  entity.LineItem
	Fields []string
}

// Plan lists the writes needed to move the stored receipt to the merged one
type Plan struct {
	Action        Action
	Inserts       []entity.LineItem
	Updates       []ItemChange
	Deletes       []entity.LineItem
	Unchanged     []int64
	HeaderChanged bool
}

// IsNoop reports a replace that changes nothing
func (p *Plan) IsNoop() bool {
	return p.Action == ActionReplace && !p.HeaderChanged &&
		len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// ItemsChanged reports whether any line item is inserted, updated or deleted
func (p *Plan) ItemsChanged() bool {
	return len(p.Inserts) > 0 || len(p.Updates) > 0 || len(p.Deletes) > 0
}

// Reconcile decides between create and replace and merges p into existing.
// existing is never mutated. Payments on existing are carried over untouched.
func Reconcile(existing *entity.Receipt, p Proposal, policy entity.Policy) (*entity.Receipt, *Plan, error) {
	if len(p.Items) == 0 {
		return nil, nil, apperr.Validation("reconcile", "a receipt must have at least one line item")
	}
	if err := entity.ValidateDiscount(p.Discount, policy); err != nil {
		return nil, nil, err
	}
	for i, li := range p.Items {
		if err := entity.ValidateLineItem(li); err != nil {
			return nil, nil, apperr.Validation("reconcile", "line %d: %v", i+1, err)
		}
	}

	if existing == nil || !existing.IsPersisted() {
		return create(p)
	}
	return replace(existing, p)
}

func create(p Proposal) (*entity.Receipt, *Plan, error) {
	merged := &entity.Receipt{}
	applyHeader(merged, p)
	plan := &Plan{Action: ActionCreate, HeaderChanged: true}

	for i, li := range p.Items {
		if li.ID != 0 {
			return nil, nil, apperr.Validation("reconcile", "line %d: new receipt cannot reference line item %d", i+1, li.ID)
		}
		merged.Items = append(merged.Items, li)
		plan.Inserts = append(plan.Inserts, li)
	}
	return merged, plan, nil
}

func replace(existing *entity.Receipt, p Proposal) (*entity.Receipt, *Plan, error) {
	merged := existing.Clone()
	plan := &Plan{Action: ActionReplace, HeaderChanged: headerDiffers(existing, p)}
	applyHeader(merged, p)

	old := make(map[int64]entity.LineItem, len(existing.Items))
	for _, li := range existing.Items {
		old[li.ID] = li
	}

	seen := make(map[int64]bool, len(p.Items))
	merged.Items = make([]entity.LineItem, 0, len(p.Items))
	for i, li := range p.Items {
		if li.ID == 0 {
			merged.Items = append(merged.Items, li)
			plan.Inserts = append(plan.Inserts, li)
			continue
		}
		before, ok := old[li.ID]
		if !ok {
			return nil, nil, apperr.Validation("reconcile", "line %d: line item %d does not belong to receipt %s", i+1, li.ID, existing.ID)
		}
		if seen[li.ID] {
			return nil, nil, apperr.Validation("reconcile", "line %d: line item %d listed twice", i+1, li.ID)
		}
		seen[li.ID] = true
		merged.Items = append(merged.Items, li)

		if fields := diffFields(before, li); len(fields) > 0 {
			plan.Updates = append(plan.Updates, ItemChange{ID: li.ID, Before: before, After: li, Fields: fields})
		} else {
			plan.Unchanged = append(plan.Unchanged, li.ID)
		}
	}

	for _, li := range existing.Items {
		if !seen[li.ID] {
			plan.Deletes = append(plan.Deletes, li)
		}
	}
	return merged, plan, nil
}

func applyHeader(r *entity.Receipt, p Proposal) {
	r.PatientID = p.PatientID
	r.VisitNoteID = p.VisitNoteID
	r.IssuedAt = p.IssuedAt
	r.PaymentCode = p.PaymentCode
	r.Remark = p.Remark
	r.ProcessedBy = p.ProcessedBy
	r.Discount = p.Discount
	r.Rounding = p.Rounding
}

func headerDiffers(r *entity.Receipt, p Proposal) bool {
	return r.PatientID != p.PatientID ||
		r.VisitNoteID != p.VisitNoteID ||
		!r.IssuedAt.Equal(p.IssuedAt) ||
		r.PaymentCode != p.PaymentCode ||
		r.Remark != p.Remark ||
		r.ProcessedBy != p.ProcessedBy ||
		!r.Discount.Equal(p.Discount) ||
		!r.Rounding.Equal(p.Rounding)
}

func diffFields(before, after entity.LineItem) []string {
	var fields []string
	if before.CatalogueCode != after.CatalogueCode {
		fields = append(fields, FieldCatalogueCode)
	}
	if before.Description != after.Description {
		fields = append(fields, FieldDescription)
	}
	if !before.UnitPrice.Equal(after.UnitPrice) {
		fields = append(fields, FieldUnitPrice)
	}
	if before.Quantity != after.Quantity {
		fields = append(fields, FieldQuantity)
	}
	if before.Remark != after.Remark {
		fields = append(fields, FieldRemark)
	}
	return fields
}

// ProposalFrom builds the proposal that reproduces r unchanged
func ProposalFrom(r *entity.Receipt) Proposal {
	return Proposal{
		PatientID:   r.PatientID,
		VisitNoteID: r.VisitNoteID,
		IssuedAt:    r.IssuedAt,
		PaymentCode: r.PaymentCode,
		Remark:      r.Remark,
		ProcessedBy: r.ProcessedBy,
		Items:       append([]entity.LineItem(nil), r.Items...),
		Discount:    r.Discount,
		Rounding:    r.Rounding,
	}
}
