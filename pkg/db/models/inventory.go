package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

type Warehouse struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	IsDefault    bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

type Ingredient struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	Unit         string          `gorm:"column:unit;type:varchar(16);not null"`
	CostPrice    decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *Ingredient) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// IngredientStock is the current quantity of an ingredient in a warehouse. It
// only changes through stock adjustments that write a StockMovement.
type IngredientStock struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID  uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_ingredient_stocks_warehouse_ingredient"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;uniqueIndex:ux_ingredient_stocks_warehouse_ingredient"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null;default:0"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *IngredientStock) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type Invoice struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID      uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Number            string               `gorm:"column:number;type:varchar(32);not null"`
	Type              enums.InvoiceType    `gorm:"column:type;type:varchar(16);not null"`
	WarehouseID       uuid.UUID            `gorm:"column:warehouse_id;type:uuid;not null"`
	TargetWarehouseID *uuid.UUID           `gorm:"column:target_warehouse_id;type:uuid"`
	Supplier          *string              `gorm:"column:supplier"`
	Status            enums.DocumentStatus `gorm:"column:status;type:varchar(16);not null"`
	TotalAmount       decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	Notes             *string              `gorm:"column:notes"`
	CreatedBy         uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	CompletedBy       *uuid.UUID           `gorm:"column:completed_by;type:uuid"`
	CompletedAt       *time.Time           `gorm:"column:completed_at"`
	CanceledAt        *time.Time           `gorm:"column:canceled_at"`
	Items             []InvoiceItem        `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

type InvoiceItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID    uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	CostPerUnit  decimal.Decimal `gorm:"column:cost_per_unit;type:numeric(12,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *InvoiceItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

type InventoryCheck struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Number       string               `gorm:"column:number;type:varchar(32);not null"`
	WarehouseID  uuid.UUID            `gorm:"column:warehouse_id;type:uuid;not null"`
	Status       enums.DocumentStatus `gorm:"column:status;type:varchar(16);not null"`
	Notes        *string              `gorm:"column:notes"`
	CreatedBy    uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	CompletedBy  *uuid.UUID           `gorm:"column:completed_by;type:uuid"`
	CompletedAt  *time.Time           `gorm:"column:completed_at"`
	CanceledAt   *time.Time           `gorm:"column:canceled_at"`
	Items        []InventoryCheckItem `gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *InventoryCheck) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// InventoryCheckItem compares the counted quantity against stock. A nil
// ActualQuantity blocks completion of the whole check.
type InventoryCheckItem struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CheckID          uuid.UUID           `gorm:"column:check_id;type:uuid;not null;index"`
	IngredientID     uuid.UUID           `gorm:"column:ingredient_id;type:uuid;not null"`
	ExpectedQuantity decimal.Decimal     `gorm:"column:expected_quantity;type:numeric(14,3);not null;default:0"`
	ActualQuantity   decimal.NullDecimal `gorm:"column:actual_quantity;type:numeric(14,3)"`
	Difference       decimal.NullDecimal `gorm:"column:difference;type:numeric(14,3)"`
	CostPerUnit      decimal.Decimal     `gorm:"column:cost_per_unit;type:numeric(12,2);not null;default:0"`
}

func (i *InventoryCheckItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// StockMovement is the append-only audit row for one stock quantity change.
type StockMovement struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID   uuid.UUID               `gorm:"column:restaurant_id;type:uuid;not null;index"`
	WarehouseID    uuid.UUID               `gorm:"column:warehouse_id;type:uuid;not null;index:ix_stock_movements_stock"`
	IngredientID   uuid.UUID               `gorm:"column:ingredient_id;type:uuid;not null;index:ix_stock_movements_stock"`
	Type           enums.StockMovementType `gorm:"column:type;type:varchar(16);not null"`
	Quantity       decimal.Decimal         `gorm:"column:quantity;type:numeric(14,3);not null"`
	QuantityBefore decimal.Decimal         `gorm:"column:quantity_before;type:numeric(14,3);not null"`
	QuantityAfter  decimal.Decimal         `gorm:"column:quantity_after;type:numeric(14,3);not null"`
	CostPerUnit    decimal.Decimal         `gorm:"column:cost_per_unit;type:numeric(12,2);not null;default:0"`
	TotalCost      decimal.Decimal         `gorm:"column:total_cost;type:numeric(12,2);not null;default:0"`
	DocumentType   *enums.DocumentType     `gorm:"column:document_type;type:varchar(32)"`
	DocumentID     *uuid.UUID              `gorm:"column:document_id;type:uuid;index"`
	UserID         *uuid.UUID              `gorm:"column:user_id;type:uuid"`
	Reason         *string                 `gorm:"column:reason"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
