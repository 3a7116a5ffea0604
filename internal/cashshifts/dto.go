package cashshifts

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

type OpenShiftInput struct {
	RestaurantID  uuid.UUID       `json:"restaurant_id" validate:"required"`
	CashierID     uuid.UUID       `json:"cashier_id" validate:"required"`
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"dec_nonneg"`
	Notes         *string         `json:"notes"`
}

type CloseShiftInput struct {
	ShiftID       uuid.UUID       `json:"shift_id" validate:"required"`
	ClosingAmount decimal.Decimal `json:"closing_amount" validate:"dec_nonneg"`
	UserID        uuid.UUID       `json:"user_id" validate:"required"`
	Notes         *string         `json:"notes"`
}

// RecordOperationInput is one till movement. A repeated IdempotencyKey
// returns the operation recorded first.
type RecordOperationInput struct {
	ShiftID        uuid.UUID               `json:"shift_id" validate:"required"`
	Type           enums.CashOperationType `json:"type" validate:"required"`
	PaymentMethod  enums.PaymentMethod     `json:"payment_method" validate:"required"`
	Amount         decimal.Decimal         `json:"amount" validate:"dec_positive"`
	OrderID        *uuid.UUID              `json:"order_id"`
	ReservationID  *uuid.UUID              `json:"reservation_id"`
	Description    *string                 `json:"description"`
	UserID         uuid.UUID               `json:"user_id" validate:"required"`
	IdempotencyKey *string                 `json:"idempotency_key" validate:"omitempty,max=128"`
}

type OrderPaymentInput struct {
	ShiftID        uuid.UUID           `json:"shift_id" validate:"required"`
	OrderID        uuid.UUID           `json:"order_id" validate:"required"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method" validate:"required"`
	Amount         decimal.Decimal     `json:"amount" validate:"dec_positive"`
	UserID         uuid.UUID           `json:"user_id" validate:"required"`
	IdempotencyKey *string             `json:"idempotency_key"`
}

type RefundInput struct {
	ShiftID        uuid.UUID           `json:"shift_id" validate:"required"`
	OrderID        *uuid.UUID          `json:"order_id"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method" validate:"required"`
	Amount         decimal.Decimal     `json:"amount" validate:"dec_positive"`
	Reason         *string             `json:"reason"`
	UserID         uuid.UUID           `json:"user_id" validate:"required"`
	IdempotencyKey *string             `json:"idempotency_key"`
}

// CashMovementInput covers deposits, withdrawals and expenses paid from the
// drawer.
type CashMovementInput struct {
	ShiftID        uuid.UUID       `json:"shift_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"dec_positive"`
	Description    *string         `json:"description"`
	UserID         uuid.UUID       `json:"user_id" validate:"required"`
	IdempotencyKey *string         `json:"idempotency_key"`
}
