package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculateCashback(t *testing.T) {
	base := models.BonusSetting{
		Enabled:         true,
		CashbackPercent: d("5"),
		MinOrderAmount:  d("100"),
	}
	level := &models.LoyaltyLevel{CashbackPercent: decimal.NullDecimal{Decimal: d("10"), Valid: true}}

	cases := []struct {
		name      string
		setting   func() *models.BonusSetting
		level     *models.LoyaltyLevel
		paid      string
		discounts string
		want      string
	}{
		{"disabled", func() *models.BonusSetting { s := base; s.Enabled = false; return &s }, nil, "1000", "0", "0"},
		{"no setting", func() *models.BonusSetting { return nil }, nil, "1000", "0", "0"},
		{"below minimum", func() *models.BonusSetting { s := base; return &s }, nil, "99", "0", "0"},
		{"restaurant rate floored", func() *models.BonusSetting { s := base; return &s }, nil, "1019", "0", "50"},
		{"level rate wins", func() *models.BonusSetting { s := base; return &s }, level, "1000", "0", "100"},
		{"accrue on discounted", func() *models.BonusSetting { s := base; s.AccrueOnDiscounted = true; return &s }, nil, "900", "100", "50"},
		{"capped", func() *models.BonusSetting {
			s := base
			s.MaxCashback = decimal.NullDecimal{Decimal: d("30"), Valid: true}
			return &s
		}, nil, "1000", "0", "30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateCashback(tc.setting(), tc.level, d(tc.paid), d(tc.discounts))
			assert.Truef(t, d(tc.want).Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestMaxSpendable(t *testing.T) {
	setting := &models.BonusSetting{Enabled: true, MaxSpendPercent: d("30")}

	assert.True(t, d("300").Equal(MaxSpendable(setting, d("1000"), d("1000"))))
	assert.True(t, d("120").Equal(MaxSpendable(setting, d("120.75"), d("1000"))))
	assert.True(t, MaxSpendable(nil, d("100"), d("1000")).IsZero())
	assert.True(t, MaxSpendable(setting, d("0"), d("1000")).IsZero())
}
