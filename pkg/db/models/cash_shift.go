package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// CashShift is a till session. At most one shift per restaurant is open,
// enforced by a partial unique index on restaurant_id.
type CashShift struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID   uuid.UUID             `gorm:"column:restaurant_id;type:uuid;not null;uniqueIndex:ux_cash_shifts_one_open_per_restaurant,where:status = 'open'"`
	CashierID      uuid.UUID             `gorm:"column:cashier_id;type:uuid;not null"`
	Number         string                `gorm:"column:number;type:varchar(16);not null"`
	Status         enums.CashShiftStatus `gorm:"column:status;type:varchar(16);not null"`
	OpeningAmount  decimal.Decimal       `gorm:"column:opening_amount;type:numeric(12,2);not null"`
	ClosingAmount  decimal.NullDecimal   `gorm:"column:closing_amount;type:numeric(12,2)"`
	ExpectedAmount decimal.NullDecimal   `gorm:"column:expected_amount;type:numeric(12,2)"`
	Difference     decimal.NullDecimal   `gorm:"column:difference;type:numeric(12,2)"`
	TotalCash      decimal.Decimal       `gorm:"column:total_cash;type:numeric(12,2);not null;default:0"`
	TotalCard      decimal.Decimal       `gorm:"column:total_card;type:numeric(12,2);not null;default:0"`
	TotalOnline    decimal.Decimal       `gorm:"column:total_online;type:numeric(12,2);not null;default:0"`
	TotalRevenue   decimal.Decimal       `gorm:"column:total_revenue;type:numeric(12,2);not null;default:0"`
	RefundsCount   int                   `gorm:"column:refunds_count;not null;default:0"`
	RefundsAmount  decimal.Decimal       `gorm:"column:refunds_amount;type:numeric(12,2);not null;default:0"`
	OrdersCount    int                   `gorm:"column:orders_count;not null;default:0"`
	Notes          *string               `gorm:"column:notes"`
	OpenedAt       time.Time             `gorm:"column:opened_at;not null"`
	ClosedAt       *time.Time            `gorm:"column:closed_at"`
	ClosedBy       *uuid.UUID            `gorm:"column:closed_by;type:uuid"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *CashShift) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// IsOpen reports whether operations may still be recorded.
func (s *CashShift) IsOpen() bool {
	return s != nil && s.Status == enums.CashShiftStatusOpen
}

// CashOperation is an immutable till movement. Shift totals are re-aggregated
// from these rows, never incremented.
type CashOperation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ShiftID        uuid.UUID               `gorm:"column:shift_id;type:uuid;not null;index"`
	RestaurantID   uuid.UUID               `gorm:"column:restaurant_id;type:uuid;not null"`
	Type           enums.CashOperationType `gorm:"column:type;type:varchar(16);not null"`
	PaymentMethod  enums.PaymentMethod     `gorm:"column:payment_method;type:varchar(16);not null"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	OrderID        *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	ReservationID  *uuid.UUID              `gorm:"column:reservation_id;type:uuid"`
	Description    *string                 `gorm:"column:description"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	IdempotencyKey *string                 `gorm:"column:idempotency_key;type:varchar(128);uniqueIndex"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (o *CashOperation) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
