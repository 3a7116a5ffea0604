package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

type CreateOrderInput struct {
	RestaurantID uuid.UUID       `json:"restaurant_id" validate:"required"`
	Type         enums.OrderType `json:"type" validate:"required"`
	CustomerID   *uuid.UUID      `json:"customer_id"`
	CreatedBy    *uuid.UUID      `json:"created_by"`
}

type AddItemInput struct {
	OrderID        uuid.UUID       `json:"order_id" validate:"required"`
	DishID         uuid.UUID       `json:"dish_id" validate:"required"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	ModifiersPrice decimal.Decimal `json:"modifiers_price" validate:"dec_nonneg"`
	Comment        *string         `json:"comment"`
}

type UpdateItemQuantityInput struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

type UpdateItemStatusInput struct {
	OrderID uuid.UUID             `json:"order_id" validate:"required"`
	ItemID  uuid.UUID             `json:"item_id" validate:"required"`
	Status  enums.OrderItemStatus `json:"status" validate:"required"`
}

type ApplyPromoCodeInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Code    string    `json:"code" validate:"required"`
}

type SetChargesInput struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	DeliveryFee decimal.Decimal `json:"delivery_fee" validate:"dec_nonneg"`
	Tips        decimal.Decimal `json:"tips" validate:"dec_nonneg"`
}

type AttachCustomerInput struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
}

// CompleteInput closes an order. When WarehouseID is set the recipe
// ingredients of every counted line are written off from that warehouse.
type CompleteInput struct {
	OrderID     uuid.UUID  `json:"order_id" validate:"required"`
	UserID      *uuid.UUID `json:"user_id"`
	WarehouseID *uuid.UUID `json:"warehouse_id"`
}

type CancelInput struct {
	OrderID uuid.UUID  `json:"order_id" validate:"required"`
	Reason  string     `json:"reason"`
	UserID  *uuid.UUID `json:"user_id"`
}
