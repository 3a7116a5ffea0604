package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// AdjustStockInput describes one signed change of an ingredient stock.
// A zero CostPerUnit falls back to the ingredient cost price.
type AdjustStockInput struct {
	RestaurantID uuid.UUID               `json:"restaurant_id" validate:"required"`
	WarehouseID  uuid.UUID               `json:"warehouse_id" validate:"required"`
	IngredientID uuid.UUID               `json:"ingredient_id" validate:"required"`
	Delta        decimal.Decimal         `json:"delta"`
	Type         enums.StockMovementType `json:"type" validate:"required"`
	CostPerUnit  decimal.Decimal         `json:"cost_per_unit" validate:"dec_nonneg"`
	DocumentType *enums.DocumentType     `json:"document_type"`
	DocumentID   *uuid.UUID              `json:"document_id"`
	UserID       *uuid.UUID              `json:"user_id"`
	Reason       *string                 `json:"reason"`
}

// ConsumeInput deducts the recipe ingredients of a completed order.
type ConsumeInput struct {
	WarehouseID uuid.UUID
	Order       *models.Order
	UserID      *uuid.UUID
}

// Requirement is a quantity of one ingredient needed from a warehouse.
type Requirement struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type Shortage struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Shortage     decimal.Decimal `json:"shortage"`
}

// AvailabilityReport lists every ingredient the warehouse cannot cover.
type AvailabilityReport struct {
	Available bool       `json:"available"`
	Missing   []Shortage `json:"missing"`
}

type CreateInvoiceInput struct {
	RestaurantID      uuid.UUID         `json:"restaurant_id" validate:"required"`
	Type              enums.InvoiceType `json:"type" validate:"required"`
	WarehouseID       uuid.UUID         `json:"warehouse_id" validate:"required"`
	TargetWarehouseID *uuid.UUID        `json:"target_warehouse_id"`
	Supplier          *string           `json:"supplier"`
	Notes             *string           `json:"notes"`
	CreatedBy         uuid.UUID         `json:"created_by" validate:"required"`
}

type AddInvoiceItemInput struct {
	InvoiceID    uuid.UUID       `json:"invoice_id" validate:"required"`
	IngredientID uuid.UUID       `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"dec_positive"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit" validate:"dec_nonneg"`
}

// CreateInventoryCheckInput counts every stocked ingredient of the warehouse
// when IngredientIDs is empty.
type CreateInventoryCheckInput struct {
	RestaurantID  uuid.UUID   `json:"restaurant_id" validate:"required"`
	WarehouseID   uuid.UUID   `json:"warehouse_id" validate:"required"`
	IngredientIDs []uuid.UUID `json:"ingredient_ids"`
	Notes         *string     `json:"notes"`
	CreatedBy     uuid.UUID   `json:"created_by" validate:"required"`
}

type SetActualQuantityInput struct {
	CheckID        uuid.UUID       `json:"check_id" validate:"required"`
	ItemID         uuid.UUID       `json:"item_id" validate:"required"`
	ActualQuantity decimal.Decimal `json:"actual_quantity" validate:"dec_nonneg"`
}
