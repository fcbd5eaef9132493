package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one billed treatment or product entry on a Receipt
type LineItem struct {
	ID            int64           `json:"id,omitempty"` // 0 until persisted
	CatalogueCode string          `json:"catalogue_code,omitempty"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Remark        string          `json:"remark,omitempty"`
}

// LineTotal returns unit price × quantity
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// IsPersisted returns true once the store has assigned an identifier
func (li LineItem) IsPersisted() bool {
	return li.ID != 0
}

// PaymentRecord is one payment applied toward a Receipt's balance
type PaymentRecord struct {
	ID     int64           `json:"id,omitempty"` // 0 until persisted
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"` // cash, card, transfer, other or a clinic payment code
	PaidAt time.Time       `json:"paid_at"`
	Note   string          `json:"note,omitempty"`
}

// Receipt is the ledger for one clinic visit
type Receipt struct {
	ID          string          `json:"id,omitempty"` // assigned on first create, e.g. A000001/2025
	PatientID   int64           `json:"patient_id"`
	VisitNoteID int64           `json:"visit_note_id,omitempty"`
	IssuedAt    time.Time       `json:"issued_at"`
	PaymentCode string          `json:"payment_code,omitempty"`
	Remark      string          `json:"remark,omitempty"`
	ProcessedBy string          `json:"processed_by,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
	Rounding    decimal.Decimal `json:"rounding"`
	Items       []LineItem      `json:"items"`
	Payments    []PaymentRecord `json:"payments"`
	Revision    int64           `json:"revision"` // 0 until persisted
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// IsPersisted returns true once the receipt has an identifier
func (r *Receipt) IsPersisted() bool {
	return r.ID != ""
}

// Clone returns a deep copy; mutations on the copy never reach r
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = append([]LineItem(nil), r.Items...)
	c.Payments = append([]PaymentRecord(nil), r.Payments...)
	return &c
}

// Subtotal is the sum of line totals
func (r *Receipt) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range r.Items {
		sum = sum.Add(li.LineTotal())
	}
	return sum
}

// GrandTotal is subtotal + rounding - discount
func (r *Receipt) GrandTotal() decimal.Decimal {
	return r.Subtotal().Add(r.Rounding).Sub(r.Discount)
}

// PaidTotal is the sum of payment amounts
func (r *Receipt) PaidTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range r.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Balance is grand total - paid total. Negative means overpaid.
func (r *Receipt) Balance() decimal.Decimal {
	return r.GrandTotal().Sub(r.PaidTotal())
}

// IsSettled reports whether the balance is within epsilon of zero or below
func (r *Receipt) IsSettled(epsilon decimal.Decimal) bool {
	return r.Balance().LessThanOrEqual(epsilon)
}

// IsPartial reports 0 < paid total < grand total
func (r *Receipt) IsPartial() bool {
	paid := r.PaidTotal()
	return paid.IsPositive() && paid.LessThan(r.GrandTotal())
}

// IsOverpaid reports a balance below -epsilon
func (r *Receipt) IsOverpaid(epsilon decimal.Decimal) bool {
	return r.Balance().LessThan(epsilon.Neg())
}

// Totals is a snapshot of the derived amounts
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Rounding   decimal.Decimal `json:"rounding"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	PaidTotal  decimal.Decimal `json:"paid_total"`
	Balance    decimal.Decimal `json:"balance"`
	IsSettled  bool            `json:"is_settled"`
	IsPartial  bool            `json:"is_partial"`
}

// Totals computes every derived amount from current state
func (r *Receipt) Totals(policy Policy) Totals {
	return Totals{
		Subtotal:   r.Subtotal(),
		Discount:   r.Discount,
		Rounding:   r.Rounding,
		GrandTotal: r.GrandTotal(),
		PaidTotal:  r.PaidTotal(),
		Balance:    r.Balance(),
		IsSettled:  r.IsSettled(policy.epsilon()),
		IsPartial:  r.IsPartial(),
	}
}

// FindPayment returns the index of the saved payment with id, or -1.
// Unsaved payments carry no id and are never matched.
func (r *Receipt) FindPayment(id int64) int {
	if id <= 0 {
		return -1
	}
	for i, p := range r.Payments {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// FindItem returns the index of the line item with id, or -1
func (r *Receipt) FindItem(id int64) int {
	for i, li := range r.Items {
		if li.ID == id {
			return i
		}
	}
	return -1
}
