package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDiscountTiersMatch(t *testing.T) {
	tiers := DiscountTiers{
		{Threshold: decimal.NewFromInt(2000), Percent: decimal.NewFromInt(10)},
		{Threshold: decimal.NewFromInt(1000), Percent: decimal.NewFromInt(5)},
	}

	_, ok := tiers.Match(decimal.NewFromInt(999))
	assert.False(t, ok)

	tier, ok := tiers.Match(decimal.NewFromInt(1000))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(decimal.NewFromInt(5)))

	tier, ok = tiers.Match(decimal.NewFromInt(5000))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(decimal.NewFromInt(10)))
}
