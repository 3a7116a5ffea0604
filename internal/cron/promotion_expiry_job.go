package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/restaurant-core/pkg/logger"
)

type promotionExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type PromotionExpiryJobParams struct {
	Logger     *logger.Logger
	Promotions promotionExpirer
	Clock      func() time.Time
}

// NewPromotionExpiryJob deactivates promotions and promo codes whose end
// date has passed.
func NewPromotionExpiryJob(params PromotionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Promotions == nil {
		return nil, fmt.Errorf("promotion service required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &promotionExpiryJob{logg: params.Logger, promotions: params.Promotions, now: clock}, nil
}

type promotionExpiryJob struct {
	logg       *logger.Logger
	promotions promotionExpirer
	now        func() time.Time
}

func (j *promotionExpiryJob) Name() string { return "promotion-expiry" }

func (j *promotionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	n, err := j.promotions.ExpireStale(ctx, now)
	if err != nil {
		return fmt.Errorf("expire promotions: %w", err)
	}
	if n > 0 {
		j.logg.Info(j.logg.WithField(ctx, "deactivated", n), "stale promotions deactivated")
	}
	return nil
}
