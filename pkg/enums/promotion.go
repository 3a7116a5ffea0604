package enums

import "fmt"

// PromotionType selects how a rule computes its discount amount.
type PromotionType string

const (
	PromotionTypePercent     PromotionType = "percent"
	PromotionTypeFixed       PromotionType = "fixed"
	PromotionTypeProgressive PromotionType = "progressive"
	PromotionTypeBuyXGetY    PromotionType = "buy_x_get_y"
)

var validPromotionTypes = []PromotionType{
	PromotionTypePercent,
	PromotionTypeFixed,
	PromotionTypeProgressive,
	PromotionTypeBuyXGetY,
}

// IsValid reports whether the value is a known PromotionType.
func (t PromotionType) IsValid() bool {
	for _, candidate := range validPromotionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePromotionType converts raw input into a PromotionType.
func ParsePromotionType(value string) (PromotionType, error) {
	for _, candidate := range validPromotionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion type %q", value)
}

// PromotionScope limits which order lines a rule applies to.
type PromotionScope string

const (
	PromotionScopeWholeOrder PromotionScope = "whole_order"
	PromotionScopeCategories PromotionScope = "categories"
	PromotionScopeDishes     PromotionScope = "dishes"
)

var validPromotionScopes = []PromotionScope{
	PromotionScopeWholeOrder,
	PromotionScopeCategories,
	PromotionScopeDishes,
}

// IsValid reports whether the value is a known PromotionScope.
func (s PromotionScope) IsValid() bool {
	for _, candidate := range validPromotionScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePromotionScope converts raw input into a PromotionScope.
func ParsePromotionScope(value string) (PromotionScope, error) {
	for _, candidate := range validPromotionScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion scope %q", value)
}

// DiscountSource identifies where an applied discount line came from.
type DiscountSource string

const (
	DiscountSourcePromotion DiscountSource = "promotion"
	DiscountSourcePromoCode DiscountSource = "promo_code"
	DiscountSourceLevel     DiscountSource = "level"
	DiscountSourceRounding  DiscountSource = "rounding"
)

var validDiscountSources = []DiscountSource{
	DiscountSourcePromotion,
	DiscountSourcePromoCode,
	DiscountSourceLevel,
	DiscountSourceRounding,
}

// IsValid reports whether the value is a known DiscountSource.
func (s DiscountSource) IsValid() bool {
	for _, candidate := range validDiscountSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsRule reports whether the source is a persisted rule re-validated on every recalculation.
func (s DiscountSource) IsRule() bool {
	return s == DiscountSourcePromotion || s == DiscountSourcePromoCode
}

// DiscountKind is the display type stored on an applied discount line.
type DiscountKind string

const (
	DiscountKindPercent  DiscountKind = "percent"
	DiscountKindFixed    DiscountKind = "fixed"
	DiscountKindRounding DiscountKind = "rounding"
	DiscountKindLevel    DiscountKind = "level"
)

// BonusTransactionType classifies loyalty balance changes.
type BonusTransactionType string

const (
	BonusTransactionAccrual BonusTransactionType = "accrual"
	BonusTransactionSpend   BonusTransactionType = "spend"
)

// IsValid reports whether the value is a known BonusTransactionType.
func (t BonusTransactionType) IsValid() bool {
	return t == BonusTransactionAccrual || t == BonusTransactionSpend
}
