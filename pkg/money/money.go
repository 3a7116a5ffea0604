// Package money holds the decimal helpers shared by pricing, cash shifts and stock costing.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how fractional currency is resolved to a whole unit.
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "half_up"
	RoundHalfEven RoundingMode = "half_even"
)

// StorageScale is the number of fractional digits persisted for money columns.
const StorageScale int32 = 2

var hundred = decimal.NewFromInt(100)

// ParseRoundingMode maps a configured value to a RoundingMode, defaulting to half-up.
func ParseRoundingMode(value string) RoundingMode {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(value))) {
	case RoundHalfEven:
		return RoundHalfEven
	default:
		return RoundHalfUp
	}
}

// RoundUnit rounds d to a whole currency unit.
func RoundUnit(d decimal.Decimal, mode RoundingMode) decimal.Decimal {
	if mode == RoundHalfEven {
		return d.RoundBank(0)
	}
	return d.Round(0)
}

// FloorTo rounds d down to a multiple of step. Non-positive steps floor to a unit.
func FloorTo(d decimal.Decimal, step int64) decimal.Decimal {
	if step <= 1 {
		return d.Floor()
	}
	s := decimal.NewFromInt(step)
	return d.Div(s).Floor().Mul(s)
}

// Percent returns base*pct/100 without rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Store rounds to the persisted scale.
func Store(d decimal.Decimal) decimal.Decimal {
	return d.Round(StorageScale)
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	return Min(Max(d, lo), hi)
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	return Max(d, decimal.Zero)
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
