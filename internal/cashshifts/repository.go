package cashshifts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// OpenShiftIndex is the partial unique index allowing one open shift per
// restaurant.
const OpenShiftIndex = "ux_cash_shifts_one_open_per_restaurant"

// openShiftColumns is how sqlite names the same index in its errors.
const openShiftColumns = "cash_shifts.restaurant_id"

type Repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// LockRestaurant serializes shift opening for one restaurant.
func (r *Repository) LockRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.base.Locked(ctx).Where("id = ?", restaurantID).Take(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *Repository) OpenShift(ctx context.Context, restaurantID uuid.UUID) (*models.CashShift, error) {
	var shift models.CashShift
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND status = ?", restaurantID, enums.CashShiftStatusOpen).
		Take(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// CountOpenedBetween counts shifts opened in [from, to).
func (r *Repository) CountOpenedBetween(ctx context.Context, restaurantID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.CashShift{}).
		Where("restaurant_id = ? AND opened_at >= ? AND opened_at < ?", restaurantID, from, to).
		Count(&n).Error
	return n, err
}

func (r *Repository) CreateShift(ctx context.Context, shift *models.CashShift) error {
	return r.base.DB(ctx).Create(shift).Error
}

func (r *Repository) Shift(ctx context.Context, id uuid.UUID) (*models.CashShift, error) {
	var shift models.CashShift
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *Repository) LockShift(ctx context.Context, id uuid.UUID) (*models.CashShift, error) {
	var shift models.CashShift
	if err := r.base.Locked(ctx).Where("id = ?", id).Take(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *Repository) UpdateShift(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.CashShift{}).Where("id = ?", id).Updates(updates).Error
}

// ShiftIDs returns the ids of shifts with the given status.
func (r *Repository) ShiftIDs(ctx context.Context, status enums.CashShiftStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).Model(&models.CashShift{}).Where("status = ?", status).Order("opened_at").Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) Operations(ctx context.Context, shiftID uuid.UUID) ([]models.CashOperation, error) {
	var rows []models.CashOperation
	err := r.base.DB(ctx).Where("shift_id = ?", shiftID).Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) OperationByKey(ctx context.Context, key string) (*models.CashOperation, error) {
	var op models.CashOperation
	if err := r.base.DB(ctx).Where("idempotency_key = ?", key).Take(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *Repository) CreateOperation(ctx context.Context, op *models.CashOperation) error {
	return r.base.DB(ctx).Create(op).Error
}

func (r *Repository) OrderExists(ctx context.Context, restaurantID, orderID uuid.UUID) (bool, error) {
	var n int64
	err := r.base.DB(ctx).Model(&models.Order{}).Where("id = ? AND restaurant_id = ?", orderID, restaurantID).Count(&n).Error
	return n > 0, err
}
