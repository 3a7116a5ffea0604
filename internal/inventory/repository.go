package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
)

// Repository persists stock rows, invoices and inventory checks.
type Repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

func (r *Repository) Warehouse(ctx context.Context, restaurantID, id uuid.UUID) (*models.Warehouse, error) {
	var w models.Warehouse
	if err := r.base.DB(ctx).Where("id = ? AND restaurant_id = ?", id, restaurantID).Take(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) Ingredient(ctx context.Context, restaurantID, id uuid.UUID) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := r.base.DB(ctx).Where("id = ? AND restaurant_id = ?", id, restaurantID).Take(&ing).Error; err != nil {
		return nil, err
	}
	return &ing, nil
}

func (r *Repository) Ingredients(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Ingredient
	err := r.base.DB(ctx).Where("restaurant_id = ? AND id IN ?", restaurantID, ids).Find(&rows).Error
	return rows, err
}

func (r *Repository) SetIngredientCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal) error {
	return r.base.DB(ctx).Model(&models.Ingredient{}).Where("id = ?", id).Update("cost_price", cost).Error
}

// LockStock returns the stock row for the pair, creating an empty one first
// when none exists. The row stays locked until the transaction ends.
func (r *Repository) LockStock(ctx context.Context, warehouseID, ingredientID uuid.UUID) (*models.IngredientStock, error) {
	conn := r.base.DB(ctx)
	seed := models.IngredientStock{WarehouseID: warehouseID, IngredientID: ingredientID, Quantity: decimal.Zero}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var stock models.IngredientStock
	if err := db.ForUpdate(conn).
		Where("warehouse_id = ? AND ingredient_id = ?", warehouseID, ingredientID).
		Take(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *Repository) SetStockQuantity(ctx context.Context, stockID uuid.UUID, quantity decimal.Decimal) error {
	return r.base.DB(ctx).Model(&models.IngredientStock{}).Where("id = ?", stockID).Update("quantity", quantity).Error
}

// Stocks returns the warehouse stock rows, optionally narrowed to ingredients.
func (r *Repository) Stocks(ctx context.Context, warehouseID uuid.UUID, ingredientIDs []uuid.UUID) ([]models.IngredientStock, error) {
	q := r.base.DB(ctx).Where("warehouse_id = ?", warehouseID)
	if ingredientIDs != nil {
		if len(ingredientIDs) == 0 {
			return nil, nil
		}
		q = q.Where("ingredient_id IN ?", ingredientIDs)
	}
	var rows []models.IngredientStock
	err := q.Order("ingredient_id").Find(&rows).Error
	return rows, err
}

func (r *Repository) Recipes(ctx context.Context, dishIDs []uuid.UUID) ([]models.RecipeItem, error) {
	if len(dishIDs) == 0 {
		return nil, nil
	}
	var rows []models.RecipeItem
	err := r.base.DB(ctx).Where("dish_id IN ?", dishIDs).Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return r.base.DB(ctx).Omit("Items").Create(inv).Error
}

func (r *Repository) Invoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.base.DB(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		Take(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) LockInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.base.Locked(ctx).Where("id = ?", id).Take(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) InvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	var rows []models.InvoiceItem
	err := r.base.DB(ctx).Where("invoice_id = ?", invoiceID).Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateInvoiceItem(ctx context.Context, item *models.InvoiceItem) error {
	return r.base.DB(ctx).Create(item).Error
}

func (r *Repository) UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) CreateCheck(ctx context.Context, check *models.InventoryCheck) error {
	return r.base.DB(ctx).Omit("Items").Create(check).Error
}

func (r *Repository) CreateCheckItems(ctx context.Context, items []models.InventoryCheckItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&items).Error
}

func (r *Repository) Check(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	var check models.InventoryCheck
	err := r.base.DB(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("ingredient_id") }).
		Where("id = ?", id).
		Take(&check).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *Repository) LockCheck(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error) {
	var check models.InventoryCheck
	if err := r.base.Locked(ctx).Where("id = ?", id).Take(&check).Error; err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *Repository) CheckItems(ctx context.Context, checkID uuid.UUID) ([]models.InventoryCheckItem, error) {
	var rows []models.InventoryCheckItem
	err := r.base.DB(ctx).Where("check_id = ?", checkID).Order("ingredient_id").Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateCheckItem(ctx context.Context, checkID, itemID uuid.UUID, updates map[string]any) (int64, error) {
	res := r.base.DB(ctx).Model(&models.InventoryCheckItem{}).
		Where("id = ? AND check_id = ?", itemID, checkID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) UpdateCheck(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.InventoryCheck{}).Where("id = ?", id).Updates(updates).Error
}
