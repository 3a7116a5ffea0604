package types

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DiscountTier is one step of a progressive promotion.
type DiscountTier struct {
	Threshold decimal.Decimal `json:"threshold"`
	Percent   decimal.Decimal `json:"percent"`
}

// DiscountTiers is stored as jsonb on promotions and promo codes.
type DiscountTiers []DiscountTier

// Match returns the highest tier whose threshold is at most amount.
func (t DiscountTiers) Match(amount decimal.Decimal) (DiscountTier, bool) {
	sorted := make(DiscountTiers, len(t))
	copy(sorted, t)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})

	var (
		best  DiscountTier
		found bool
	)
	for _, tier := range sorted {
		if tier.Threshold.GreaterThan(amount) {
			break
		}
		best = tier
		found = true
	}
	return best, found
}
