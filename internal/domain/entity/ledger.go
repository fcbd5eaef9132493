package entity

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/clinic-receipts/internal/domain/apperr"
)

// ValidateLineItem checks a line item's field rules
func ValidateLineItem(li LineItem) error {
	if strings.TrimSpace(li.Description) == "" && strings.TrimSpace(li.CatalogueCode) == "" {
		return apperr.Validation("validate_line_item", "line item needs a description or catalogue code")
	}
	if li.Quantity < 1 {
		return apperr.Validation("validate_line_item", "quantity must be at least 1, got %d", li.Quantity)
	}
	if li.UnitPrice.IsNegative() {
		return apperr.Validation("validate_line_item", "unit price must not be negative, got %s", li.UnitPrice)
	}
	if !HasCurrencyPrecision(li.UnitPrice) {
		return apperr.Validation("validate_line_item", "unit price %s has more than %d decimal places", li.UnitPrice, CurrencyPlaces)
	}
	return nil
}

// ValidateAmount checks a payment amount: positive with currency precision
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("validate_amount", "payment amount must be greater than zero, got %s", amount)
	}
	if !HasCurrencyPrecision(amount) {
		return apperr.Validation("validate_amount", "payment amount %s has more than %d decimal places", amount, CurrencyPlaces)
	}
	return nil
}

// ValidateDiscount checks the header discount against policy. Rounding is taken as entered.
func ValidateDiscount(discount decimal.Decimal, policy Policy) error {
	if discount.IsNegative() && !policy.AllowNegativeDiscount {
		return apperr.Validation("validate_discount", "discount must not be negative, got %s", discount)
	}
	if !HasCurrencyPrecision(discount) {
		return apperr.Validation("validate_discount", "discount %s has more than %d decimal places", discount, CurrencyPlaces)
	}
	return nil
}

// AddLineItem appends a validated line item
func (r *Receipt) AddLineItem(li LineItem) error {
	if err := ValidateLineItem(li); err != nil {
		return err
	}
	if li.ID != 0 && r.FindItem(li.ID) >= 0 {
		return apperr.Validation("add_line_item", "line item %d already on receipt", li.ID)
	}
	r.Items = append(r.Items, li)
	return nil
}

// UpdateLineItem replaces the fields of the item at idx. The identifier never changes.
func (r *Receipt) UpdateLineItem(idx int, li LineItem) error {
	if idx < 0 || idx >= len(r.Items) {
		return apperr.NotFound("update_line_item", "line item", idx)
	}
	current := r.Items[idx]
	if li.ID != 0 && li.ID != current.ID {
		return apperr.Validation("update_line_item", "line item identifier %d cannot be reassigned to %d", current.ID, li.ID)
	}
	if err := ValidateLineItem(li); err != nil {
		return err
	}
	li.ID = current.ID
	r.Items[idx] = li
	return nil
}

// RemoveLineItem drops the item at idx. The last item can never be removed.
func (r *Receipt) RemoveLineItem(idx int) error {
	if idx < 0 || idx >= len(r.Items) {
		return apperr.NotFound("remove_line_item", "line item", idx)
	}
	if len(r.Items) == 1 {
		return apperr.Validation("remove_line_item", "a receipt must keep at least one line item")
	}
	r.Items = append(r.Items[:idx:idx], r.Items[idx+1:]...)
	return nil
}

// AddPayment inserts p in timestamp order; equal timestamps keep insertion order
func (r *Receipt) AddPayment(p PaymentRecord, policy Policy) error {
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if p.ID != 0 && r.FindPayment(p.ID) >= 0 {
		return apperr.Validation("add_payment", "payment %d already on receipt", p.ID)
	}
	if strings.TrimSpace(p.Method) == "" {
		p.Method = MethodOther
	}
	if err := r.checkOverpayment(r.PaidTotal().Add(p.Amount), policy, "add_payment"); err != nil {
		return err
	}
	r.Payments = append(r.Payments, p)
	r.sortPayments()
	return nil
}

// UpdatePaymentAmount changes the amount of exactly one payment
func (r *Receipt) UpdatePaymentAmount(id int64, amount decimal.Decimal, policy Policy) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	idx := r.FindPayment(id)
	if idx < 0 {
		return apperr.NotFound("update_payment_amount", "payment", id)
	}
	paid := r.PaidTotal().Sub(r.Payments[idx].Amount).Add(amount)
	if err := r.checkOverpayment(paid, policy, "update_payment_amount"); err != nil {
		return err
	}
	r.Payments[idx].Amount = amount
	return nil
}

// RemovePayment drops exactly one payment
func (r *Receipt) RemovePayment(id int64) error {
	idx := r.FindPayment(id)
	if idx < 0 {
		return apperr.NotFound("remove_payment", "payment", id)
	}
	r.Payments = append(r.Payments[:idx:idx], r.Payments[idx+1:]...)
	return nil
}

func (r *Receipt) checkOverpayment(paid decimal.Decimal, policy Policy, op string) error {
	if !policy.BlockOverpayment {
		return nil
	}
	balance := r.GrandTotal().Sub(paid)
	if balance.LessThan(policy.epsilon().Neg()) {
		return apperr.Validation(op, "payment would overpay the receipt by %s", balance.Neg().StringFixed(CurrencyPlaces))
	}
	return nil
}

func (r *Receipt) sortPayments() {
	sort.SliceStable(r.Payments, func(i, j int) bool {
		return r.Payments[i].PaidAt.Before(r.Payments[j].PaidAt)
	})
}

// SortPayments restores timestamp order after payments were loaded from a store
func (r *Receipt) SortPayments() {
	r.sortPayments()
}
