package settings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
)

// Repository persists restaurant_settings rows.
type Repository struct {
	base repo.Base
}

// NewRepository binds a repository to the provided connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// Get returns the raw value and whether it exists.
func (r *Repository) Get(ctx context.Context, restaurantID uuid.UUID, key string) (string, bool, error) {
	var row models.RestaurantSetting
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND key = ?", restaurantID, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// Upsert writes value for (restaurant, key).
func (r *Repository) Upsert(ctx context.Context, restaurantID uuid.UUID, key, value string) error {
	row := models.RestaurantSetting{RestaurantID: restaurantID, Key: key, Value: value}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Delete removes the override so the default applies again.
func (r *Repository) Delete(ctx context.Context, restaurantID uuid.UUID, key string) error {
	return r.base.DB(ctx).
		Where("restaurant_id = ? AND key = ?", restaurantID, key).
		Delete(&models.RestaurantSetting{}).Error
}

// List returns every override of a restaurant keyed by setting key.
func (r *Repository) List(ctx context.Context, restaurantID uuid.UUID) (map[string]string, error) {
	var rows []models.RestaurantSetting
	if err := r.base.DB(ctx).Where("restaurant_id = ?", restaurantID).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
