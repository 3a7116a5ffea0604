package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/inventory"
	"github.com/angelmondragon/restaurant-core/internal/pricing"
	"github.com/angelmondragon/restaurant-core/internal/promotions"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Find(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error)
	CreateItem(ctx context.Context, item *models.OrderItem) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	Dish(ctx context.Context, restaurantID, dishID uuid.UUID) (*models.Dish, error)
	LiveCategories(ctx context.Context, dishIDs []uuid.UUID) (map[uuid.UUID]*uuid.UUID, error)
	Customer(ctx context.Context, restaurantID, customerID uuid.UUID) (*models.Customer, error)
	Restaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberSequence interface {
	Next(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID) (int64, error)
}

// PromotionSource supplies discount candidates and usage bookkeeping.
type PromotionSource interface {
	Candidates(ctx context.Context, tx *gorm.DB, q promotions.CandidateQuery) ([]pricing.Rule, error)
	LookupCode(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID, code string) (*models.PromoCode, error)
	RecordUsages(ctx context.Context, tx *gorm.DB, order *models.Order) error
	UsageCounter(tx *gorm.DB) pricing.UsageCounter
}

// LoyaltyProgram resolves levels and accrues cashback for customers.
type LoyaltyProgram interface {
	Level(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.LoyaltyLevel, error)
	IsFirstOrder(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (bool, error)
	Accrue(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error)
	RefreshLevel(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.LoyaltyLevel, error)
}

// StockConsumer writes off recipe ingredients for a completed order.
type StockConsumer interface {
	ConsumeForOrder(ctx context.Context, tx *gorm.DB, input inventory.ConsumeInput) ([]models.StockMovement, error)
}
