package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/internal/pricing"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// Service assembles evaluator candidates and maintains usage bookkeeping.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Repository exposes the underlying repository, e.g. as a usage counter.
func (s *Service) Repository() *Repository {
	return s.repo
}

type CandidateQuery struct {
	RestaurantID uuid.UUID
	PromoCodeID  *uuid.UUID
	Previous     types.AppliedDiscounts
	Now          time.Time
}

// Candidates returns the rules to evaluate for an order: active automatic
// promotions, promotions applied before (so they can be re-validated) and the
// attached promo code. Sources that no longer exist are simply absent.
func (s *Service) Candidates(ctx context.Context, tx *gorm.DB, q CandidateQuery) ([]pricing.Rule, error) {
	repo := s.repo.WithTx(tx)

	active, err := repo.ActiveAutoPromotions(ctx, q.RestaurantID, q.Now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active promotions")
	}
	rules := make([]pricing.Rule, 0, len(active)+1)
	loaded := make(map[uuid.UUID]bool, len(active))
	for _, p := range active {
		rules = append(rules, PromotionRule(p))
		loaded[p.ID] = true
	}

	var missing []uuid.UUID
	for _, d := range q.Previous {
		id := d.Line().SourceID
		if d.Source() != enums.DiscountSourcePromotion || id == nil || loaded[*id] {
			continue
		}
		loaded[*id] = true
		missing = append(missing, *id)
	}
	previous, err := repo.PromotionsByIDs(ctx, q.RestaurantID, missing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load applied promotions")
	}
	for _, p := range previous {
		rules = append(rules, PromotionRule(p))
	}

	if q.PromoCodeID != nil {
		code, err := repo.PromoCodeByID(ctx, q.RestaurantID, *q.PromoCodeID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logg.Warn(s.logg.WithField(ctx, "promo_code_id", q.PromoCodeID.String()), "attached promo code no longer exists")
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
		default:
			rules = append(rules, CodeRule(*code))
		}
	}
	return rules, nil
}

// LookupCode resolves a customer-supplied code.
func (s *Service) LookupCode(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID, code string) (*models.PromoCode, error) {
	if NormalizeCode(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	row, err := s.repo.WithTx(tx).FindCode(ctx, restaurantID, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find promo code")
	}
	return row, nil
}

// RecordUsages writes one usage row per applied promotion or code of a
// completed order and re-derives each rule's usage_count.
func (s *Service) RecordUsages(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	for _, d := range order.AppliedDiscounts.Rules() {
		line := d.Line()
		if line.SourceID == nil {
			continue
		}
		usage := &models.PromotionUsage{
			RestaurantID: order.RestaurantID,
			SourceType:   d.Source(),
			SourceID:     *line.SourceID,
			OrderID:      order.ID,
			CustomerID:   order.CustomerID,
			Amount:       line.Amount,
		}
		if _, err := repo.RecordUsage(ctx, usage); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record promotion usage")
		}
		if err := repo.RefreshUsageCount(ctx, d.Source(), *line.SourceID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh usage count")
		}
	}
	return nil
}

// ExpireStale deactivates rules past their end date.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, now)
	if err != nil {
		return n, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate expired promotions")
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deactivated", n), "expired promotions deactivated")
	}
	return n, nil
}

// UsageCounter returns a per-customer usage counter bound to tx.
func (s *Service) UsageCounter(tx *gorm.DB) pricing.UsageCounter {
	return s.repo.WithTx(tx)
}
