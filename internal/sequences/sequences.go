// Package sequences hands out per-restaurant document numbers from a locked
// counter row.
package sequences

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/restaurant-core/internal/repo"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

const numberWidth = 6

type Repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// Next increments and returns the counter. It must run inside the caller's
// transaction so the row lock is held until commit.
func (r *Repository) Next(ctx context.Context, restaurantID uuid.UUID, kind enums.SequenceKind) (int64, error) {
	conn := r.base.DB(ctx)
	seed := models.DocumentSequence{RestaurantID: restaurantID, Kind: kind}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("seed %s sequence: %w", kind, err)
	}

	var seq models.DocumentSequence
	if err := db.ForUpdate(conn).
		Where("restaurant_id = ? AND kind = ?", restaurantID, kind).
		Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("lock %s sequence: %w", kind, err)
	}
	next := seq.LastValue + 1
	if err := conn.Model(&models.DocumentSequence{}).
		Where("restaurant_id = ? AND kind = ?", restaurantID, kind).
		Update("last_value", next).Error; err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", kind, err)
	}
	return next, nil
}

// NextNumber returns the next printed number, e.g. INV-000001.
func (r *Repository) NextNumber(ctx context.Context, restaurantID uuid.UUID, kind enums.SequenceKind) (string, error) {
	n, err := r.Next(ctx, restaurantID, kind)
	if err != nil {
		return "", err
	}
	return Format(kind, n), nil
}

func Format(kind enums.SequenceKind, n int64) string {
	return fmt.Sprintf("%s-%0*d", kind.Prefix(), numberWidth, n)
}

// Counter is a Repository bound to one document kind.
type Counter struct {
	repo *Repository
	kind enums.SequenceKind
}

func (r *Repository) Counter(kind enums.SequenceKind) *Counter {
	return &Counter{repo: r, kind: kind}
}

// Next allocates the next value inside tx.
func (c *Counter) Next(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID) (int64, error) {
	return c.repo.WithTx(tx).Next(ctx, restaurantID, c.kind)
}
