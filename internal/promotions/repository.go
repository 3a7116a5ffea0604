package promotions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// Repository reads and writes promotions, promo codes and their usage rows.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// NormalizeCode is the stored form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Repository) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	return r.base.DB(ctx).Create(p).Error
}

func (r *Repository) CreatePromoCode(ctx context.Context, c *models.PromoCode) error {
	c.Code = NormalizeCode(c.Code)
	return r.base.DB(ctx).Create(c).Error
}

// ActiveAutoPromotions returns active auto-apply promotions that have not
// ended. Schedule and audience filters are left to the evaluator.
func (r *Repository) ActiveAutoPromotions(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.Promotion, error) {
	var rows []models.Promotion
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND is_active = ? AND auto_apply = ?", restaurantID, true, true).
		Where("ends_at IS NULL OR ends_at >= ?", now).
		Order("priority DESC, id").
		Find(&rows).Error
	return rows, err
}

// PromotionsByIDs skips soft-deleted rows.
func (r *Repository) PromotionsByIDs(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]models.Promotion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Promotion
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND id IN ?", restaurantID, ids).
		Find(&rows).Error
	return rows, err
}

// PromoCodeByID returns gorm.ErrRecordNotFound for missing or deleted codes.
func (r *Repository) PromoCodeByID(ctx context.Context, restaurantID, id uuid.UUID) (*models.PromoCode, error) {
	var row models.PromoCode
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindCode looks a code up case-insensitively.
func (r *Repository) FindCode(ctx context.Context, restaurantID uuid.UUID, code string) (*models.PromoCode, error) {
	var row models.PromoCode
	err := r.base.DB(ctx).
		Where("restaurant_id = ? AND UPPER(code) = ?", restaurantID, NormalizeCode(code)).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CustomerUsageCount counts completed orders of a customer that used the rule.
func (r *Repository) CustomerUsageCount(ctx context.Context, source enums.DiscountSource, ruleID, customerID uuid.UUID) (int, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.PromotionUsage{}).
		Where("source_type = ? AND source_id = ? AND customer_id = ?", source, ruleID, customerID).
		Count(&count).Error
	return int(count), err
}

// RecordUsage inserts a usage row once per (source, order). It reports
// whether a new row was written.
func (r *Repository) RecordUsage(ctx context.Context, usage *models.PromotionUsage) (bool, error) {
	res := r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}, {Name: "order_id"}},
		DoNothing: true,
	}).Create(usage)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RefreshUsageCount re-derives usage_count from the usage rows.
func (r *Repository) RefreshUsageCount(ctx context.Context, source enums.DiscountSource, id uuid.UUID) error {
	var count int64
	if err := r.base.DB(ctx).
		Model(&models.PromotionUsage{}).
		Where("source_type = ? AND source_id = ?", source, id).
		Count(&count).Error; err != nil {
		return err
	}

	var model any
	switch source {
	case enums.DiscountSourcePromotion:
		model = &models.Promotion{}
	case enums.DiscountSourcePromoCode:
		model = &models.PromoCode{}
	default:
		return errors.New("usage count: unsupported source " + string(source))
	}
	return r.base.DB(ctx).
		Unscoped().
		Model(model).
		Where("id = ?", id).
		UpdateColumn("usage_count", count).Error
}

// DeactivateExpired switches off promotions and codes whose window ended
// before now and returns how many rows changed.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, model := range []any{&models.Promotion{}, &models.PromoCode{}} {
		res := r.base.DB(ctx).
			Model(model).
			Where("is_active = ? AND ends_at IS NOT NULL AND ends_at < ?", true, now).
			Update("is_active", false)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
