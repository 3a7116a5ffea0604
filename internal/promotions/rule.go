package promotions

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/internal/pricing"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// PromotionRule converts an automatic promotion. Promotions that are not
// auto-applied or were soft-deleted never qualify.
func PromotionRule(p models.Promotion) pricing.Rule {
	rule := termsRule(p.RuleTerms)
	rule.ID = p.ID
	rule.Source = enums.DiscountSourcePromotion
	rule.Name = p.Name
	rule.Exclusive = p.IsExclusive
	rule.Active = p.IsActive && p.AutoApply && !p.DeletedAt.Valid
	return rule
}

// CodeRule converts a promo code.
func CodeRule(c models.PromoCode) pricing.Rule {
	rule := termsRule(c.RuleTerms)
	rule.ID = c.ID
	rule.Source = enums.DiscountSourcePromoCode
	rule.Name = c.Name
	rule.Code = c.Code
	rule.Active = c.IsActive && !c.DeletedAt.Valid
	return rule
}

func termsRule(t models.RuleTerms) pricing.Rule {
	rule := pricing.Rule{
		Type:        t.Type,
		Value:       t.Value,
		Tiers:       t.Tiers,
		BuyQuantity: t.BuyQuantity,
		GetQuantity: t.GetQuantity,
		Scope: types.DiscountScope{
			Scope:              t.Scope,
			Categories:         uuids(t.ApplicableCategories),
			Dishes:             uuids(t.ApplicableDishes),
			ExcludedCategories: uuids(t.ExcludedCategories),
			ExcludedDishes:     uuids(t.ExcludedDishes),
		},
		StartsAt:           t.StartsAt,
		EndsAt:             t.EndsAt,
		LoyaltyLevelIDs:    uuids(t.LoyaltyLevelIDs),
		MinOrderAmount:     nullDecimal(t.MinOrderAmount),
		MaxDiscount:        nullDecimal(t.MaxDiscount),
		FirstOrderOnly:     t.FirstOrderOnly,
		BirthdayOnly:       t.BirthdayOnly,
		BirthdayDaysBefore: t.BirthdayDaysBefore,
		BirthdayDaysAfter:  t.BirthdayDaysAfter,
		UsageLimit:         t.UsageLimit,
		UsageCount:         t.UsageCount,
		PerCustomerLimit:   t.PerCustomerLimit,
		Stackable:          t.Stackable,
		Priority:           t.Priority,
	}
	if t.TimeFrom != nil {
		rule.TimeFrom = *t.TimeFrom
	}
	if t.TimeTo != nil {
		rule.TimeTo = *t.TimeTo
	}
	for _, d := range t.DaysOfWeek {
		rule.DaysOfWeek = append(rule.DaysOfWeek, int(d))
	}
	for _, ot := range t.OrderTypes {
		rule.OrderTypes = append(rule.OrderTypes, enums.OrderType(ot))
	}
	return rule
}

func uuids[T ~[]uuid.UUID](in T) []uuid.UUID {
	if len(in) == 0 {
		return nil
	}
	out := make([]uuid.UUID, len(in))
	copy(out, in)
	return out
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
