package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest debit/credit difference still treated as balanced.
var Tolerance = decimal.RequireFromString("0.01")

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts an amount to integer minor units for storage.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts stored minor units back to an amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// WithinTolerance reports whether |a-b| < Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// ParseAmount parses a decimal string and rejects more than two decimals.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("invalid amount %q", s)}
	}
	if !d.Equal(Round2(d)) {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%s has more than 2 decimal places", s)}
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals, negatives in parentheses.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "(" + d.Neg().StringFixed(2) + ")"
	}
	return d.StringFixed(2)
}
