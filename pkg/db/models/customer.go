package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

type Customer struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID   uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name           string          `gorm:"column:name;not null"`
	Phone          *string         `gorm:"column:phone"`
	Birthday       *time.Time      `gorm:"column:birthday;type:date"`
	LoyaltyLevelID *uuid.UUID      `gorm:"column:loyalty_level_id;type:uuid"`
	BonusBalance   decimal.Decimal `gorm:"column:bonus_balance;type:numeric(12,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// LoyaltyLevel grants a flat order discount and an optional cashback rate once
// a customer's completed spend reaches MinSpent.
type LoyaltyLevel struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID    uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name            string              `gorm:"column:name;not null"`
	DiscountPercent decimal.Decimal     `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	CashbackPercent decimal.NullDecimal `gorm:"column:cashback_percent;type:numeric(5,2)"`
	MinSpent        decimal.Decimal     `gorm:"column:min_spent;type:numeric(12,2);not null;default:0"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (l *LoyaltyLevel) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// BonusSetting configures cashback accrual and spending for a restaurant.
type BonusSetting struct {
	RestaurantID       uuid.UUID           `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	Enabled            bool                `gorm:"column:enabled;not null;default:false"`
	CashbackPercent    decimal.Decimal     `gorm:"column:cashback_percent;type:numeric(5,2);not null;default:0"`
	MinOrderAmount     decimal.Decimal     `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxCashback        decimal.NullDecimal `gorm:"column:max_cashback;type:numeric(12,2)"`
	MaxSpendPercent    decimal.Decimal     `gorm:"column:max_spend_percent;type:numeric(5,2);not null;default:0"`
	AccrueOnDiscounted bool                `gorm:"column:accrue_on_discounted;not null;default:false"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BonusTransaction is an immutable loyalty balance change. One row per (order, type).
type BonusTransaction struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID                  `gorm:"column:restaurant_id;type:uuid;not null"`
	CustomerID   uuid.UUID                  `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID      *uuid.UUID                 `gorm:"column:order_id;type:uuid;uniqueIndex:ux_bonus_transactions_order_type"`
	Type         enums.BonusTransactionType `gorm:"column:type;type:varchar(16);not null;uniqueIndex:ux_bonus_transactions_order_type"`
	Amount       decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (b *BonusTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}
