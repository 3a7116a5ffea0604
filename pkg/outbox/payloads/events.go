package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// OrderCompletedEvent carries the final totals of a completed order.
type OrderCompletedEvent struct {
	OrderID               uuid.UUID       `json:"order_id"`
	RestaurantID          uuid.UUID       `json:"restaurant_id"`
	Number                int64           `json:"number"`
	CustomerID            *uuid.UUID      `json:"customer_id,omitempty"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	LoyaltyDiscountAmount decimal.Decimal `json:"loyalty_discount_amount"`
	RoundingAmount        decimal.Decimal `json:"rounding_amount"`
	Total                 decimal.Decimal `json:"total"`
	CashbackAccrued       decimal.Decimal `json:"cashback_accrued"`
	CompletedAt           time.Time       `json:"completed_at"`
}

// OrderCanceledEvent is emitted when an order is canceled before completion.
type OrderCanceledEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Reason       string    `json:"reason,omitempty"`
	CanceledAt   time.Time `json:"canceled_at"`
}

// DiscountAppliedEvent is emitted when a recalculation adds a discount source.
type DiscountAppliedEvent struct {
	OrderID      uuid.UUID            `json:"order_id"`
	RestaurantID uuid.UUID            `json:"restaurant_id"`
	Source       enums.DiscountSource `json:"source"`
	SourceID     *uuid.UUID           `json:"source_id,omitempty"`
	Name         string               `json:"name"`
	Amount       decimal.Decimal      `json:"amount"`
}

// ShiftOpenedEvent is emitted when a cashier opens a shift.
type ShiftOpenedEvent struct {
	ShiftID       uuid.UUID       `json:"shift_id"`
	RestaurantID  uuid.UUID       `json:"restaurant_id"`
	CashierID     uuid.UUID       `json:"cashier_id"`
	Number        string          `json:"number"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	OpenedAt      time.Time       `json:"opened_at"`
}

// ShiftClosedEvent reports the reconciliation of a closed shift.
type ShiftClosedEvent struct {
	ShiftID        uuid.UUID       `json:"shift_id"`
	RestaurantID   uuid.UUID       `json:"restaurant_id"`
	Number         string          `json:"number"`
	ClosingAmount  decimal.Decimal `json:"closing_amount"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Difference     decimal.Decimal `json:"difference"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	ClosedBy       *uuid.UUID      `json:"closed_by,omitempty"`
	ClosedAt       time.Time       `json:"closed_at"`
}

// InvoiceCompletedEvent is emitted once per completed stock invoice.
type InvoiceCompletedEvent struct {
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	RestaurantID      uuid.UUID         `json:"restaurant_id"`
	Number            string            `json:"number"`
	Type              enums.InvoiceType `json:"type"`
	WarehouseID       uuid.UUID         `json:"warehouse_id"`
	TargetWarehouseID *uuid.UUID        `json:"target_warehouse_id,omitempty"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	Movements         int               `json:"movements"`
	CompletedAt       time.Time         `json:"completed_at"`
}

// InventoryCheckCompletedEvent is emitted once per completed stock count.
type InventoryCheckCompletedEvent struct {
	CheckID      uuid.UUID `json:"check_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Number       string    `json:"number"`
	WarehouseID  uuid.UUID `json:"warehouse_id"`
	Adjustments  int       `json:"adjustments"`
	CompletedAt  time.Time `json:"completed_at"`
}
