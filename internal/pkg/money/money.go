// Package money holds the rounding rule shared by pricing, promo and tax code.
//
// Every derived amount is rounded to two decimal places, half away from zero.
// Totals are sums of already rounded parts.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round applies the single rounding rule used for stored amounts.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * rate / 100, rounded.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
