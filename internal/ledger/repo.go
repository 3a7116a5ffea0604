package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/pagination"
)

// Repository manages persistence for stock movements. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByDocument(ctx context.Context, documentType enums.DocumentType, documentID uuid.UUID) ([]models.StockMovement, error)
	List(ctx context.Context, query listQuery) ([]models.StockMovement, *pagination.Cursor, error)
}

type listQuery struct {
	RestaurantID uuid.UUID
	WarehouseID  *uuid.UUID
	IngredientID *uuid.UUID
	DocumentID   *uuid.UUID
	Type         *enums.StockMovementType
	Limit        int
	Cursor       *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByDocument(ctx context.Context, documentType enums.DocumentType, documentID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_id = ?", documentType, documentID).
		Order("created_at ASC, id ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// List returns movements newest first. The returned cursor is non-nil when
// another page exists.
func (r *repository) List(ctx context.Context, query listQuery) ([]models.StockMovement, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.StockMovement{}).Where("restaurant_id = ?", query.RestaurantID)
	if query.WarehouseID != nil {
		q = q.Where("warehouse_id = ?", *query.WarehouseID)
	}
	if query.IngredientID != nil {
		q = q.Where("ingredient_id = ?", *query.IngredientID)
	}
	if query.DocumentID != nil {
		q = q.Where("document_id = ?", *query.DocumentID)
	}
	if query.Type != nil {
		q = q.Where("type = ?", *query.Type)
	}
	if query.Cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var movements []models.StockMovement
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(query.Limit)).Find(&movements).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(movements, query.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}
