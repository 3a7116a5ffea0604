package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/restaurant-core/pkg/db/types"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// RuleTerms are the discount, scope, schedule and limit columns shared by
// promotions and promo codes.
type RuleTerms struct {
	Type                 enums.PromotionType  `gorm:"column:type;type:varchar(16);not null"`
	Value                decimal.Decimal      `gorm:"column:value;type:numeric(12,2);not null;default:0"`
	MaxDiscount          decimal.NullDecimal  `gorm:"column:max_discount;type:numeric(12,2)"`
	Tiers                types.DiscountTiers  `gorm:"column:tiers;type:jsonb;serializer:json"`
	BuyQuantity          int                  `gorm:"column:buy_quantity;not null;default:0"`
	GetQuantity          int                  `gorm:"column:get_quantity;not null;default:0"`
	Scope                enums.PromotionScope `gorm:"column:scope;type:varchar(16);not null;default:'whole_order'"`
	ApplicableDishes     dbtypes.UUIDArray    `gorm:"column:applicable_dishes"`
	ApplicableCategories dbtypes.UUIDArray    `gorm:"column:applicable_categories"`
	ExcludedDishes       dbtypes.UUIDArray    `gorm:"column:excluded_dishes"`
	ExcludedCategories   dbtypes.UUIDArray    `gorm:"column:excluded_categories"`
	StartsAt             *time.Time           `gorm:"column:starts_at"`
	EndsAt               *time.Time           `gorm:"column:ends_at"`
	DaysOfWeek           dbtypes.IntArray     `gorm:"column:days_of_week"`
	TimeFrom             *string              `gorm:"column:time_from;type:varchar(5)"`
	TimeTo               *string              `gorm:"column:time_to;type:varchar(5)"`
	OrderTypes           dbtypes.StringArray  `gorm:"column:order_types"`
	LoyaltyLevelIDs      dbtypes.UUIDArray    `gorm:"column:loyalty_level_ids"`
	MinOrderAmount       decimal.NullDecimal  `gorm:"column:min_order_amount;type:numeric(12,2)"`
	FirstOrderOnly       bool                 `gorm:"column:first_order_only;not null;default:false"`
	BirthdayOnly         bool                 `gorm:"column:birthday_only;not null;default:false"`
	BirthdayDaysBefore   *int                 `gorm:"column:birthday_days_before"`
	BirthdayDaysAfter    *int                 `gorm:"column:birthday_days_after"`
	UsageLimit           *int                 `gorm:"column:usage_limit"`
	UsageCount           int                  `gorm:"column:usage_count;not null;default:0"`
	PerCustomerLimit     *int                 `gorm:"column:per_customer_limit"`
	Stackable            bool                 `gorm:"column:stackable;not null"`
	Priority             int                  `gorm:"column:priority;not null;default:0"`
	IsActive             bool                 `gorm:"column:is_active;not null"`
}

// Promotion is an automatically evaluated discount rule.
type Promotion struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	Description  *string   `gorm:"column:description"`
	RuleTerms
	AutoApply   bool           `gorm:"column:auto_apply;not null"`
	IsExclusive bool           `gorm:"column:is_exclusive;not null;default:false"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PromoCode is a discount rule applied when the customer supplies its code.
// Codes are stored upper-cased and unique per restaurant.
type PromoCode struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;uniqueIndex:ux_promo_codes_restaurant_code"`
	Code         string    `gorm:"column:code;type:varchar(64);not null;uniqueIndex:ux_promo_codes_restaurant_code"`
	Name         string    `gorm:"column:name;not null"`
	RuleTerms
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (p *PromoCode) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PromotionUsage records one application of a promotion or promo code to a
// completed order. usage_count is re-derived from these rows.
type PromotionUsage struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null"`
	SourceType   enums.DiscountSource `gorm:"column:source_type;type:varchar(16);not null;uniqueIndex:ux_promotion_usages_source_order"`
	SourceID     uuid.UUID            `gorm:"column:source_id;type:uuid;not null;uniqueIndex:ux_promotion_usages_source_order"`
	OrderID      uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_promotion_usages_source_order"`
	CustomerID   *uuid.UUID           `gorm:"column:customer_id;type:uuid;index"`
	Amount       decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (u *PromotionUsage) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
