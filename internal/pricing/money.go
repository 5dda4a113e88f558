package pricing

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units (cents).
type Money = int64

var hundred = decimal.NewFromInt(100)

// FromCents converts minor units into an exact decimal amount.
func FromCents(m Money) decimal.Decimal {
	return decimal.New(m, -2)
}

// ToCents rounds an amount to the nearest cent, half away from zero.
func ToCents(d decimal.Decimal) Money {
	return d.Round(2).Shift(2).IntPart()
}

// Cents returns a pointer to m. Useful for optional prices.
func Cents(m Money) *Money {
	return &m
}

// Format renders minor units as "$1,234.50".
func Format(m Money) string {
	neg := m < 0
	if neg {
		m = -m
	}
	whole := FromCents(m).Truncate(0).String()
	frac := FromCents(m % 100).StringFixed(2)[1:]

	var b []byte
	if neg {
		b = append(b, '-')
	}
	b = append(b, '$')
	rem := len(whole) % 3
	if rem == 0 {
		rem = 3
	}
	b = append(b, whole[:rem]...)
	for i := rem; i < len(whole); i += 3 {
		b = append(b, ',')
		b = append(b, whole[i:i+3]...)
	}
	return string(append(b, frac...))
}
