package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the configurable ledger rules
type Policy struct {
	// SettleEpsilon is the largest balance still treated as settled
	SettleEpsilon decimal.Decimal
	// AllowNegativeDiscount accepts a negative discount (a surcharge)
	AllowNegativeDiscount bool
	// BlockOverpayment rejects payment changes that push the balance below -SettleEpsilon
	BlockOverpayment bool
	// Location is the clinic timezone calendar dates are read in. Nil means UTC.
	Location *time.Location
}

// DefaultPolicy returns the ledger rules used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		SettleEpsilon:         DefaultSettleEpsilon,
		AllowNegativeDiscount: false,
		BlockOverpayment:      false,
		Location:              time.UTC,
	}
}

// Local returns t in the clinic timezone
func (p Policy) Local(t time.Time) time.Time {
	return InLocation(t, p.Location)
}

// InLocation returns t in loc, or in UTC when loc is nil
func InLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}

func (p Policy) epsilon() decimal.Decimal {
	if p.SettleEpsilon.IsNegative() {
		return decimal.Zero
	}
	return p.SettleEpsilon
}
