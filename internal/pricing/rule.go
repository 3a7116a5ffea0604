package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// Rule is a promotion or promo code reduced to what the evaluator needs.
type Rule struct {
	ID     uuid.UUID
	Source enums.DiscountSource
	Name   string
	Code   string

	Type        enums.PromotionType
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
	Tiers       types.DiscountTiers
	BuyQuantity int
	GetQuantity int
	Scope       types.DiscountScope

	StartsAt   *time.Time
	EndsAt     *time.Time
	DaysOfWeek []int // ISO weekdays, 1 = Monday ... 7 = Sunday
	TimeFrom   string
	TimeTo     string

	OrderTypes         []enums.OrderType
	LoyaltyLevelIDs    []uuid.UUID
	MinOrderAmount     *decimal.Decimal
	FirstOrderOnly     bool
	BirthdayOnly       bool
	BirthdayDaysBefore *int
	BirthdayDaysAfter  *int

	UsageLimit       *int
	UsageCount       int
	PerCustomerLimit *int

	Stackable bool
	Exclusive bool
	Priority  int
	Active    bool
}

// Key matches the key of the discount entry the rule produces.
func (r Rule) Key() string {
	id := r.ID
	return types.DiscountKey(r.Source, &id)
}

// Line is one priced order line.
type Line struct {
	ItemID         uuid.UUID
	DishID         uuid.UUID
	CategoryID     *uuid.UUID
	UnitPrice      decimal.Decimal
	ModifiersPrice decimal.Decimal
	Quantity       int
	Status         enums.OrderItemStatus
}

// UnitTotal is the price of one unit including modifiers.
func (l Line) UnitTotal() decimal.Decimal {
	return l.UnitPrice.Add(l.ModifiersPrice)
}

// Total is the line total.
func (l Line) Total() decimal.Decimal {
	return l.UnitTotal().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Counts reports whether the line contributes to the order subtotal. Lines
// without a status count.
func (l Line) Counts() bool {
	return l.Status == "" || l.Status.CountsTowardTotal()
}

// Context describes the order and customer a rule is evaluated against. Now
// must already be expressed in the restaurant's location.
type Context struct {
	RestaurantID   uuid.UUID
	OrderID        uuid.UUID
	OrderType      enums.OrderType
	Subtotal       decimal.Decimal
	CustomerID     *uuid.UUID
	Birthday       *time.Time
	LoyaltyLevelID *uuid.UUID
	IsFirstOrder   bool
	Now            time.Time
}

// Policy carries the restaurant-level knobs that affect amounts.
type Policy struct {
	Rounding           money.RoundingMode
	BirthdayWindowDays int
}
