package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/money"
)

// CalculateCashback returns the bonus accrued for a paid order. The level's
// cashback rate wins over the restaurant rate when set.
func CalculateCashback(setting *models.BonusSetting, level *models.LoyaltyLevel, paidTotal, discountTotal decimal.Decimal) decimal.Decimal {
	if setting == nil || !setting.Enabled || !paidTotal.IsPositive() {
		return decimal.Zero
	}
	if paidTotal.LessThan(setting.MinOrderAmount) {
		return decimal.Zero
	}

	pct := setting.CashbackPercent
	if level != nil && level.CashbackPercent.Valid {
		pct = level.CashbackPercent.Decimal
	}
	if !pct.IsPositive() {
		return decimal.Zero
	}

	base := paidTotal
	if setting.AccrueOnDiscounted {
		base = base.Add(money.NonNegative(discountTotal))
	}
	amount := money.FloorTo(money.Percent(base, pct), 1)
	if setting.MaxCashback.Valid {
		amount = money.Min(amount, setting.MaxCashback.Decimal)
	}
	return money.NonNegative(amount)
}

// MaxSpendable caps the bonuses usable on an order at max_spend_percent of
// its total and at the customer's balance.
func MaxSpendable(setting *models.BonusSetting, balance, orderTotal decimal.Decimal) decimal.Decimal {
	if setting == nil || !setting.Enabled || !balance.IsPositive() || !orderTotal.IsPositive() {
		return decimal.Zero
	}
	limit := money.FloorTo(money.Percent(orderTotal, setting.MaxSpendPercent), 1)
	return money.NonNegative(money.Min(limit, balance.Floor()))
}
