package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places carried by currency amounts
const CurrencyPlaces = 2

// DefaultSettleEpsilon is the balance at or below which a receipt counts as settled
var DefaultSettleEpsilon = decimal.New(1, -2)

// HasCurrencyPrecision reports whether d fits in CurrencyPlaces without rounding
func HasCurrencyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(CurrencyPlaces))
}

// ParseAmount parses an operator-entered amount such as "1,250.00"
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(cleaned)
}

// FormatAmount renders d with two places and thousands separators, sign first: "-1,250.00"
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(CurrencyPlaces)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() && !d.Round(CurrencyPlaces).IsZero() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatMoney prefixes FormatAmount with a currency label: "RM -12.00"
func FormatMoney(currency string, d decimal.Decimal) string {
	if currency == "" {
		return FormatAmount(d)
	}
	return currency + " " + FormatAmount(d)
}
