package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-core/pkg/db/models"
	dbtypes "github.com/angelmondragon/restaurant-core/pkg/db/types"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

func percentTerms(pct int64) models.RuleTerms {
	return models.RuleTerms{
		Type:      enums.PromotionTypePercent,
		Value:     decimal.NewFromInt(pct),
		Scope:     enums.PromotionScopeWholeOrder,
		Stackable: true,
		IsActive:  true,
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func TestCandidatesIncludesActivePreviousAndCode(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := svc.Repository()

	auto := &models.Promotion{RestaurantID: restaurantID, Name: "auto", RuleTerms: percentTerms(10), AutoApply: true}
	manual := &models.Promotion{RestaurantID: restaurantID, Name: "manual", RuleTerms: percentTerms(5), AutoApply: false}
	ended := now.Add(-time.Hour)
	expired := &models.Promotion{RestaurantID: restaurantID, Name: "expired", RuleTerms: percentTerms(5), AutoApply: true}
	expired.EndsAt = &ended
	for _, p := range []*models.Promotion{auto, manual, expired} {
		require.NoError(t, repo.CreatePromotion(ctx, p))
	}
	code := &models.PromoCode{RestaurantID: restaurantID, Code: " spring ", Name: "spring", RuleTerms: percentTerms(3)}
	require.NoError(t, repo.CreatePromoCode(ctx, code))
	require.Equal(t, "SPRING", code.Code)

	previous := types.AppliedDiscounts{
		types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "manual", SourceID: &manual.ID}},
	}
	rules, err := svc.Candidates(ctx, conn, CandidateQuery{
		RestaurantID: restaurantID,
		PromoCodeID:  &code.ID,
		Previous:     previous,
		Now:          now,
	})
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, r := range rules {
		byName[r.Name] = r.Active
	}
	require.Len(t, rules, 3)
	require.True(t, byName["auto"])
	require.False(t, byName["manual"])
	require.True(t, byName["spring"])
}

func TestCandidatesSkipsDeletedSources(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()

	p := &models.Promotion{RestaurantID: restaurantID, Name: "gone", RuleTerms: percentTerms(10), AutoApply: true}
	require.NoError(t, svc.Repository().CreatePromotion(ctx, p))
	require.NoError(t, conn.Delete(p).Error)

	missingCode := uuid.New()
	rules, err := svc.Candidates(ctx, conn, CandidateQuery{
		RestaurantID: restaurantID,
		PromoCodeID:  &missingCode,
		Previous: types.AppliedDiscounts{
			types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "gone", SourceID: &p.ID}},
		},
		Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestLookupCodeIsCaseInsensitive(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()

	code := &models.PromoCode{RestaurantID: restaurantID, Code: "Welcome10", Name: "welcome", RuleTerms: percentTerms(10)}
	require.NoError(t, svc.Repository().CreatePromoCode(ctx, code))

	found, err := svc.LookupCode(ctx, conn, restaurantID, "welcome10")
	require.NoError(t, err)
	require.Equal(t, code.ID, found.ID)

	_, err = svc.LookupCode(ctx, conn, restaurantID, "nope")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.LookupCode(ctx, conn, restaurantID, "  ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordUsagesRederivesCounts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()
	customerID := uuid.New()
	repo := svc.Repository()

	p := &models.Promotion{RestaurantID: restaurantID, Name: "auto", RuleTerms: percentTerms(10), AutoApply: true}
	require.NoError(t, repo.CreatePromotion(ctx, p))
	code := &models.PromoCode{RestaurantID: restaurantID, Code: "ONCE", Name: "once", RuleTerms: percentTerms(5)}
	require.NoError(t, repo.CreatePromoCode(ctx, code))

	order := &models.Order{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		CustomerID:   &customerID,
		AppliedDiscounts: types.AppliedDiscounts{
			types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "auto", Amount: decimal.NewFromInt(100), SourceID: &p.ID}},
			types.CodeDiscount{DiscountLine: types.DiscountLine{Name: "once", Amount: decimal.NewFromInt(45), SourceID: &code.ID}, Code: "ONCE"},
			types.RoundingDiscount{DiscountLine: types.DiscountLine{Name: "Rounding", Amount: decimal.RequireFromString("0.5")}, Step: 1},
		},
	}
	require.NoError(t, svc.RecordUsages(ctx, conn, order))
	// Completing twice must not double count.
	require.NoError(t, svc.RecordUsages(ctx, conn, order))

	var reloaded models.Promotion
	require.NoError(t, conn.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 1, reloaded.UsageCount)

	var reloadedCode models.PromoCode
	require.NoError(t, conn.First(&reloadedCode, "id = ?", code.ID).Error)
	require.Equal(t, 1, reloadedCode.UsageCount)

	n, err := repo.CustomerUsageCount(ctx, enums.DiscountSourcePromoCode, code.ID, customerID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestExpireStale(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	restaurantID := uuid.New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	old := &models.Promotion{RestaurantID: restaurantID, Name: "old", RuleTerms: percentTerms(10), AutoApply: true}
	old.EndsAt = &past
	current := &models.Promotion{RestaurantID: restaurantID, Name: "current", RuleTerms: percentTerms(10), AutoApply: true}
	current.EndsAt = &future
	require.NoError(t, svc.Repository().CreatePromotion(ctx, old))
	require.NoError(t, svc.Repository().CreatePromotion(ctx, current))
	oldCode := &models.PromoCode{RestaurantID: restaurantID, Code: "OLD", Name: "old", RuleTerms: percentTerms(5)}
	oldCode.EndsAt = &past
	require.NoError(t, svc.Repository().CreatePromoCode(ctx, oldCode))

	n, err := svc.ExpireStale(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	var reloaded models.Promotion
	require.NoError(t, conn.First(&reloaded, "id = ?", current.ID).Error)
	require.True(t, reloaded.IsActive)
}

func TestRuleConversion(t *testing.T) {
	from, to := "22:00", "02:00"
	minimum := decimal.NullDecimal{Decimal: decimal.NewFromInt(300), Valid: true}
	category := uuid.New()

	terms := percentTerms(15)
	terms.Scope = enums.PromotionScopeCategories
	terms.ApplicableCategories = dbtypes.UUIDArray{category}
	terms.DaysOfWeek = dbtypes.IntArray{5, 6}
	terms.OrderTypes = dbtypes.StringArray{string(enums.OrderTypeDelivery)}
	terms.TimeFrom = &from
	terms.TimeTo = &to
	terms.MinOrderAmount = minimum

	rule := PromotionRule(models.Promotion{ID: uuid.New(), Name: "late", RuleTerms: terms, AutoApply: true, IsExclusive: true})
	require.True(t, rule.Active)
	require.True(t, rule.Exclusive)
	require.Equal(t, enums.DiscountSourcePromotion, rule.Source)
	require.Equal(t, []int{5, 6}, rule.DaysOfWeek)
	require.Equal(t, []enums.OrderType{enums.OrderTypeDelivery}, rule.OrderTypes)
	require.Equal(t, []uuid.UUID{category}, rule.Scope.Categories)
	require.Equal(t, "22:00", rule.TimeFrom)
	require.NotNil(t, rule.MinOrderAmount)
	require.True(t, rule.MinOrderAmount.Equal(decimal.NewFromInt(300)))
	require.Nil(t, rule.MaxDiscount)

	codeRule := CodeRule(models.PromoCode{ID: uuid.New(), Code: "X", RuleTerms: terms})
	require.Equal(t, enums.DiscountSourcePromoCode, codeRule.Source)
	require.Equal(t, "X", codeRule.Code)
	require.False(t, codeRule.Exclusive)
}
