package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

type Repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// Setting returns nil when the restaurant has no bonus program configured.
func (r *Repository) Setting(ctx context.Context, restaurantID uuid.UUID) (*models.BonusSetting, error) {
	var row models.BonusSetting
	err := r.base.DB(ctx).Where("restaurant_id = ?", restaurantID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) SaveSetting(ctx context.Context, setting *models.BonusSetting) error {
	return r.base.DB(ctx).Save(setting).Error
}

// Level returns nil for a missing level.
func (r *Repository) Level(ctx context.Context, id uuid.UUID) (*models.LoyaltyLevel, error) {
	var row models.LoyaltyLevel
	err := r.base.DB(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Levels are ordered from the highest threshold down.
func (r *Repository) Levels(ctx context.Context, restaurantID uuid.UUID) ([]models.LoyaltyLevel, error) {
	var rows []models.LoyaltyLevel
	err := r.base.DB(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("min_spent DESC, id").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Customer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var row models.Customer
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) LockCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var row models.Customer
	if err := r.base.Locked(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CompletedSpend sums the totals of a customer's completed orders.
func (r *Repository) CompletedSpend(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Select("SUM(total)").
		Where("customer_id = ? AND status = ?", customerID, enums.OrderStatusCompleted).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CompletedOrders counts a customer's completed orders.
func (r *Repository) CompletedOrders(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("customer_id = ? AND status = ?", customerID, enums.OrderStatusCompleted).
		Count(&count).Error
	return count, err
}

// InsertTransaction writes at most one row per (order, type) and reports
// whether a row was written.
func (r *Repository) InsertTransaction(ctx context.Context, tx *models.BonusTransaction) (bool, error) {
	res := r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Balance re-derives a customer's bonus balance from the transactions.
func (r *Repository) Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var rows []struct {
		Type  enums.BonusTransactionType
		Total decimal.NullDecimal
	}
	err := r.base.DB(ctx).
		Model(&models.BonusTransaction{}).
		Select("type, SUM(amount) AS total").
		Where("customer_id = ?", customerID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, row := range rows {
		if !row.Total.Valid {
			continue
		}
		switch row.Type {
		case enums.BonusTransactionAccrual:
			balance = balance.Add(row.Total.Decimal)
		case enums.BonusTransactionSpend:
			balance = balance.Sub(row.Total.Decimal)
		}
	}
	return balance, nil
}

func (r *Repository) UpdateCustomer(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates).Error
}
