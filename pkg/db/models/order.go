package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// Order is the aggregate root of a sale. Every money field is derived by the
// pricing calculator from the items and applied discounts.
type Order struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID          uuid.UUID              `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Number                int64                  `gorm:"column:number;not null"`
	Type                  enums.OrderType        `gorm:"column:type;type:varchar(16);not null"`
	Status                enums.OrderStatus      `gorm:"column:status;type:varchar(16);not null;default:'new'"`
	CustomerID            *uuid.UUID             `gorm:"column:customer_id;type:uuid;index"`
	LoyaltyLevelID        *uuid.UUID             `gorm:"column:loyalty_level_id;type:uuid"`
	PromoCodeID           *uuid.UUID             `gorm:"column:promo_code_id;type:uuid"`
	Subtotal              decimal.Decimal        `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	DiscountAmount        decimal.Decimal        `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	LoyaltyDiscountAmount decimal.Decimal        `gorm:"column:loyalty_discount_amount;type:numeric(12,2);not null;default:0"`
	RoundingAmount        decimal.Decimal        `gorm:"column:rounding_amount;type:numeric(12,2);not null;default:0"`
	DeliveryFee           decimal.Decimal        `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Tips                  decimal.Decimal        `gorm:"column:tips;type:numeric(12,2);not null;default:0"`
	Total                 decimal.Decimal        `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	AppliedDiscounts      types.AppliedDiscounts `gorm:"column:applied_discounts;type:jsonb"`
	CreatedBy             *uuid.UUID             `gorm:"column:created_by;type:uuid"`
	CancelReason          *string                `gorm:"column:cancel_reason"`
	CompletedAt           *time.Time             `gorm:"column:completed_at"`
	CanceledAt            *time.Time             `gorm:"column:canceled_at"`
	Items                 []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem is a line of an order. Name, price and category are snapshotted
// from the dish when the line is added.
type OrderItem struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	DishID         uuid.UUID             `gorm:"column:dish_id;type:uuid;not null"`
	CategoryID     *uuid.UUID            `gorm:"column:category_id;type:uuid"`
	Name           string                `gorm:"column:name;not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ModifiersPrice decimal.Decimal       `gorm:"column:modifiers_price;type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Status         enums.OrderItemStatus `gorm:"column:status;type:varchar(16);not null;default:'new'"`
	Comment        *string               `gorm:"column:comment"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// LineTotal is (unit price + modifiers) x quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Add(i.ModifiersPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}
