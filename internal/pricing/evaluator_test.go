package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// Friday.
var testNow = time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got.String())
}

func percentRule(name string, pct int64, priority int) Rule {
	return Rule{
		ID:        uuid.New(),
		Source:    enums.DiscountSourcePromotion,
		Name:      name,
		Type:      enums.PromotionTypePercent,
		Value:     decimal.NewFromInt(pct),
		Stackable: true,
		Priority:  priority,
		Active:    true,
	}
}

func line(price string, qty int) Line {
	return Line{ItemID: uuid.New(), DishID: uuid.New(), UnitPrice: dec(price), Quantity: qty}
}

func evalContext(subtotal string) Context {
	return Context{
		RestaurantID: uuid.New(),
		OrderID:      uuid.New(),
		OrderType:    enums.OrderTypeDineIn,
		Subtotal:     dec(subtotal),
		Now:          testNow,
	}
}

func evaluate(t *testing.T, e *Evaluator, in EvaluateInput) Evaluation {
	t.Helper()
	if in.Policy.Rounding == "" {
		in.Policy = Policy{Rounding: money.RoundHalfUp, BirthdayWindowDays: 7}
	}
	out, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	return out
}

func TestEvaluateStacksByPriority(t *testing.T) {
	low := percentRule("low", 5, 1)
	high := percentRule("high", 10, 10)

	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("1000"),
		Lines:      []Line{line("1000", 1)},
		Candidates: []Rule{low, high},
	})

	require.Equal(t, []string{high.Key(), low.Key()}, out.Applied.Keys())
	requireDec(t, "150", out.Total)
	require.Len(t, out.Added, 2)
	require.Empty(t, out.Dropped)
}

func TestEvaluateNonStackableTerminatesSelection(t *testing.T) {
	first := percentRule("first", 10, 10)
	first.Stackable = false
	second := percentRule("second", 5, 1)

	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("1000"),
		Lines:      []Line{line("1000", 1)},
		Candidates: []Rule{second, first},
	})

	require.Equal(t, []string{first.Key()}, out.Applied.Keys())
	requireDec(t, "100", out.Total)
}

func TestEvaluateExclusiveRules(t *testing.T) {
	t.Run("exclusive skipped once something is selected", func(t *testing.T) {
		top := percentRule("top", 10, 10)
		exclusive := percentRule("exclusive", 50, 1)
		exclusive.Exclusive = true

		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context:    evalContext("1000"),
			Lines:      []Line{line("1000", 1)},
			Candidates: []Rule{top, exclusive},
		})
		require.Equal(t, []string{top.Key()}, out.Applied.Keys())
	})

	t.Run("exclusive first suppresses everything else", func(t *testing.T) {
		exclusive := percentRule("exclusive", 20, 10)
		exclusive.Exclusive = true
		code := percentRule("code", 5, 1)
		code.Source = enums.DiscountSourcePromoCode
		code.Code = "SPRING"

		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context:    evalContext("1000"),
			Lines:      []Line{line("1000", 1)},
			Candidates: []Rule{code, exclusive},
		})
		require.Equal(t, []string{exclusive.Key()}, out.Applied.Keys())
		requireDec(t, "200", out.Total)
	})
}

func TestEvaluateCapsAtRemainingSubtotal(t *testing.T) {
	fixed := Rule{
		ID: uuid.New(), Source: enums.DiscountSourcePromotion, Name: "fixed",
		Type: enums.PromotionTypeFixed, Value: dec("150"), Stackable: true, Priority: 5, Active: true,
	}
	pct := percentRule("half", 50, 1)

	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("200"),
		Lines:      []Line{line("200", 1)},
		Candidates: []Rule{fixed, pct},
	})

	requireDec(t, "200", out.Total)
	require.Len(t, out.Applied, 2)
	requireDec(t, "150", out.Applied[0].Line().Amount)
	requireDec(t, "50", out.Applied[1].Line().Amount)
}

func TestEvaluateSelfHealing(t *testing.T) {
	a := percentRule("a", 5, 1)
	b := percentRule("b", 5, 1)
	gone := percentRule("gone", 5, 1)
	expired := percentRule("expired", 5, 1)
	past := testNow.Add(-time.Hour)
	expired.EndsAt = &past

	first := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("1000"),
		Lines:      []Line{line("1000", 1)},
		Candidates: []Rule{b, gone},
	})
	// gone disappears and expired stops qualifying on the next pass.
	previous := append(types.AppliedDiscounts{}, first.Applied...)
	previous = append(previous, types.PromotionDiscount{DiscountLine: types.DiscountLine{
		Name: expired.Name, Amount: dec("50"), SourceID: &expired.ID,
	}})

	fresh := percentRule("fresh", 5, 1)
	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("1000"),
		Lines:      []Line{line("1000", 1)},
		Candidates: []Rule{a, fresh, expired, b},
		Previous:   previous,
	})

	require.Equal(t, b.Key(), out.Applied[0].Key())
	require.Len(t, out.Applied, 3)
	require.ElementsMatch(t, []string{a.Key(), fresh.Key()}, out.Added.Keys())

	reasons := map[string]string{}
	for _, d := range out.Dropped {
		reasons[d.Key] = d.Reason
	}
	require.Equal(t, ReasonSourceMissing, reasons[gone.Key()])
	require.Equal(t, ReasonExpired, reasons[expired.Key()])
}

func TestEvaluateSurvivorsKeepPriorOrder(t *testing.T) {
	a := percentRule("a", 5, 1)
	b := percentRule("b", 5, 1)
	previous := types.AppliedDiscounts{
		types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "b", Amount: dec("50"), SourceID: &b.ID}},
		types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "a", Amount: dec("50"), SourceID: &a.ID}},
	}

	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("1000"),
		Lines:      []Line{line("1000", 1)},
		Candidates: []Rule{a, b},
		Previous:   previous,
	})

	require.Equal(t, []string{b.Key(), a.Key()}, out.Applied.Keys())
	require.Empty(t, out.Added)
}

func TestEvaluateZeroSubtotalDropsEverything(t *testing.T) {
	a := percentRule("a", 5, 1)
	previous := types.AppliedDiscounts{
		types.PromotionDiscount{DiscountLine: types.DiscountLine{Name: "a", Amount: dec("5"), SourceID: &a.ID}},
	}

	out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
		Context:    evalContext("0"),
		Candidates: []Rule{a},
		Previous:   previous,
	})

	require.Empty(t, out.Applied)
	require.Len(t, out.Dropped, 1)
	require.Equal(t, ReasonEmptyOrder, out.Dropped[0].Reason)
}

func TestEvaluateAmounts(t *testing.T) {
	t.Run("percent capped by max discount", func(t *testing.T) {
		r := percentRule("capped", 50, 1)
		limit := dec("120")
		r.MaxDiscount = &limit
		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context: evalContext("1000"), Lines: []Line{line("1000", 1)}, Candidates: []Rule{r},
		})
		requireDec(t, "120", out.Total)
	})

	t.Run("progressive picks highest reached tier", func(t *testing.T) {
		r := percentRule("tiers", 0, 1)
		r.Type = enums.PromotionTypeProgressive
		r.Tiers = types.DiscountTiers{
			{Threshold: dec("500"), Percent: dec("5")},
			{Threshold: dec("1000"), Percent: dec("10")},
		}
		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context: evalContext("800"), Lines: []Line{line("800", 1)}, Candidates: []Rule{r},
		})
		requireDec(t, "40", out.Total)
		require.NotNil(t, out.Applied[0].Line().Percent)
		requireDec(t, "5", *out.Applied[0].Line().Percent)
	})

	t.Run("buy x get y frees cheapest unit of every group", func(t *testing.T) {
		r := percentRule("2+1", 0, 1)
		r.Type = enums.PromotionTypeBuyXGetY
		r.BuyQuantity = 2
		r.GetQuantity = 1
		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context:    evalContext("500"),
			Lines:      []Line{line("100", 4), line("50", 2)},
			Candidates: []Rule{r},
		})
		requireDec(t, "150", out.Total)
	})

	t.Run("category scope skips lines without category", func(t *testing.T) {
		category := uuid.New()
		r := percentRule("drinks", 10, 1)
		r.Scope = types.DiscountScope{Scope: enums.PromotionScopeCategories, Categories: []uuid.UUID{category}}
		drink := line("200", 1)
		drink.CategoryID = &category
		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context:    evalContext("700"),
			Lines:      []Line{drink, line("500", 1)},
			Candidates: []Rule{r},
		})
		requireDec(t, "20", out.Total)
	})

	t.Run("excluded dish removed from whole order", func(t *testing.T) {
		skip := line("300", 1)
		r := percentRule("most", 10, 1)
		r.Scope = types.DiscountScope{Scope: enums.PromotionScopeWholeOrder, ExcludedDishes: []uuid.UUID{skip.DishID}}
		out := evaluate(t, NewEvaluator(nil, nil), EvaluateInput{
			Context:    evalContext("1000"),
			Lines:      []Line{skip, line("700", 1)},
			Candidates: []Rule{r},
		})
		requireDec(t, "70", out.Total)
	})
}

func TestInSchedule(t *testing.T) {
	overnight := Rule{TimeFrom: "22:00", TimeTo: "02:00", DaysOfWeek: []int{5}}

	saturdayEarly := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	require.True(t, inSchedule(overnight, saturdayEarly))

	saturdayLate := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	require.False(t, inSchedule(overnight, saturdayLate))

	fridayLate := time.Date(2026, 3, 13, 22, 30, 0, 0, time.UTC)
	require.True(t, inSchedule(overnight, fridayLate))

	fridayNoon := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	require.False(t, inSchedule(overnight, fridayNoon))

	lunch := Rule{TimeFrom: "11:00", TimeTo: "15:00", DaysOfWeek: []int{7}}
	sunday := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	require.True(t, inSchedule(lunch, sunday))
}

func TestBirthdayWindowCrossesYearBoundary(t *testing.T) {
	birthday := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	r := percentRule("birthday", 15, 1)
	r.BirthdayOnly = true

	pctx := evalContext("1000")
	customer := uuid.New()
	pctx.CustomerID = &customer
	pctx.Birthday = &birthday
	pctx.Now = time.Date(2026, 12, 30, 18, 0, 0, 0, time.UTC)

	e := NewEvaluator(nil, nil)
	reason, err := e.qualify(context.Background(), r, pctx, Policy{BirthdayWindowDays: 7}, nil)
	require.NoError(t, err)
	require.Empty(t, reason)

	before := 1
	r.BirthdayDaysBefore = &before
	reason, err = e.qualify(context.Background(), r, pctx, Policy{BirthdayWindowDays: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, ReasonBirthdayOnly, reason)
}

type fakeUsage struct {
	counts map[uuid.UUID]int
}

func (f fakeUsage) CustomerUsageCount(_ context.Context, _ enums.DiscountSource, ruleID, _ uuid.UUID) (int, error) {
	return f.counts[ruleID], nil
}

func TestPerCustomerLimit(t *testing.T) {
	r := percentRule("once", 10, 1)
	limit := 1
	r.PerCustomerLimit = &limit

	pctx := evalContext("1000")
	e := NewEvaluator(fakeUsage{counts: map[uuid.UUID]int{r.ID: 1}}, nil)

	reason, err := e.qualify(context.Background(), r, pctx, Policy{}, nil)
	require.NoError(t, err)
	require.Equal(t, ReasonCustomerRequired, reason)

	customer := uuid.New()
	pctx.CustomerID = &customer
	reason, err = e.qualify(context.Background(), r, pctx, Policy{}, nil)
	require.NoError(t, err)
	require.Equal(t, ReasonPerCustomerLimit, reason)
}

func TestQualifyFilters(t *testing.T) {
	level := uuid.New()
	minimum := dec("500")
	usageLimit := 3

	cases := []struct {
		name   string
		mutate func(*Rule)
		want   string
	}{
		{"inactive", func(r *Rule) { r.Active = false }, ReasonInactive},
		{"order type", func(r *Rule) { r.OrderTypes = []enums.OrderType{enums.OrderTypeDelivery} }, ReasonOrderType},
		{"loyalty level", func(r *Rule) { r.LoyaltyLevelIDs = []uuid.UUID{level} }, ReasonLoyaltyLevel},
		{"minimum", func(r *Rule) { r.MinOrderAmount = &minimum }, ReasonMinOrderAmount},
		{"first order", func(r *Rule) { r.FirstOrderOnly = true }, ReasonFirstOrderOnly},
		{"usage limit", func(r *Rule) { r.UsageLimit = &usageLimit; r.UsageCount = 3 }, ReasonUsageLimit},
		{"passes", func(*Rule) {}, ""},
	}

	e := NewEvaluator(nil, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := percentRule(tc.name, 10, 1)
			tc.mutate(&r)
			reason, err := e.qualify(context.Background(), r, evalContext("300"), Policy{}, nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, reason)
		})
	}
}
