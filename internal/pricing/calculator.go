package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/internal/settings"
	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

const roundingLineName = "Rounding"

// Calculator derives every money field of an order from its lines, the
// candidate rules and the restaurant's pricing settings.
type Calculator struct {
	evaluator *Evaluator
	settings  settings.Provider
	defaults  config.PricingConfig
}

func NewCalculator(evaluator *Evaluator, provider settings.Provider, defaults config.PricingConfig) *Calculator {
	if provider == nil {
		provider = settings.Static{}
	}
	return &Calculator{evaluator: evaluator, settings: provider, defaults: defaults}
}

// Level is the loyalty level attached to the order.
type Level struct {
	ID      uuid.UUID
	Name    string
	Percent decimal.Decimal
}

type CalculateInput struct {
	Context     Context
	Lines       []Line
	Candidates  []Rule
	Previous    types.AppliedDiscounts
	Level       *Level
	DeliveryFee decimal.Decimal
	Tips        decimal.Decimal
	Usage       UsageCounter
}

type Totals struct {
	Subtotal              decimal.Decimal
	DiscountAmount        decimal.Decimal
	LoyaltyDiscountAmount decimal.Decimal
	RoundingAmount        decimal.Decimal
	DeliveryFee           decimal.Decimal
	Tips                  decimal.Decimal
	Total                 decimal.Decimal
	Applied               types.AppliedDiscounts
	Added                 types.AppliedDiscounts
	Dropped               []Dropped
}

// Subtotal sums the lines that count toward the order.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Counts() {
			total = total.Add(line.Total())
		}
	}
	return money.Store(total)
}

// Policy resolves the pricing knobs for a restaurant.
func (c *Calculator) Policy(ctx context.Context, restaurantID uuid.UUID) (Policy, bool, error) {
	mode, err := c.settings.String(ctx, restaurantID, settings.KeyRoundingMode, c.defaults.RoundingMode)
	if err != nil {
		return Policy{}, false, fmt.Errorf("rounding mode setting: %w", err)
	}
	days, err := c.settings.Decimal(ctx, restaurantID, settings.KeyBirthdayDays, decimal.NewFromInt(int64(c.defaults.BirthdayWindowDays)))
	if err != nil {
		return Policy{}, false, fmt.Errorf("birthday window setting: %w", err)
	}
	roundToTen, err := c.settings.Bool(ctx, restaurantID, settings.KeyRoundToTen, c.defaults.RoundToTen)
	if err != nil {
		return Policy{}, false, fmt.Errorf("round to ten setting: %w", err)
	}
	return Policy{
		Rounding:           money.ParseRoundingMode(mode),
		BirthdayWindowDays: int(days.IntPart()),
	}, roundToTen, nil
}

func (c *Calculator) Calculate(ctx context.Context, in CalculateInput) (Totals, error) {
	policy, roundToTen, err := c.Policy(ctx, in.Context.RestaurantID)
	if err != nil {
		return Totals{}, err
	}

	subtotal := Subtotal(in.Lines)
	pctx := in.Context
	pctx.Subtotal = subtotal

	eval, err := c.evaluator.Evaluate(ctx, EvaluateInput{
		Context:    pctx,
		Lines:      in.Lines,
		Candidates: in.Candidates,
		Previous:   in.Previous,
		Policy:     policy,
		Usage:      in.Usage,
	})
	if err != nil {
		return Totals{}, err
	}

	applied := make(types.AppliedDiscounts, 0, len(eval.Applied)+2)
	applied = append(applied, eval.Applied...)

	ruleTotal := money.Min(eval.Total, subtotal)
	levelAmount := decimal.Zero
	if in.Level != nil && in.Level.Percent.IsPositive() && subtotal.IsPositive() {
		levelAmount = money.RoundUnit(money.Percent(subtotal, in.Level.Percent), policy.Rounding)
		levelAmount = money.Store(money.Clamp(levelAmount, decimal.Zero, subtotal.Sub(ruleTotal)))
		if levelAmount.IsPositive() {
			id := in.Level.ID
			pct := in.Level.Percent
			applied = append(applied, types.LevelDiscount{DiscountLine: types.DiscountLine{
				Name:     in.Level.Name,
				Kind:     enums.DiscountKindLevel,
				Amount:   levelAmount,
				Percent:  &pct,
				SourceID: &id,
			}})
		}
	}

	deliveryFee := money.Store(money.NonNegative(in.DeliveryFee))
	tips := money.Store(money.NonNegative(in.Tips))
	pre := money.NonNegative(subtotal.Sub(ruleTotal).Sub(levelAmount).Add(deliveryFee).Add(tips))

	step := int64(1)
	if roundToTen {
		step = 10
	}
	rounding := money.Store(pre.Sub(money.FloorTo(pre, step)))
	if rounding.IsPositive() {
		applied = append(applied, types.RoundingDiscount{
			DiscountLine: types.DiscountLine{
				Name:   roundingLineName,
				Kind:   enums.DiscountKindRounding,
				Amount: rounding,
			},
			Step: step,
		})
	}

	return Totals{
		Subtotal:              subtotal,
		DiscountAmount:        money.Store(ruleTotal),
		LoyaltyDiscountAmount: levelAmount,
		RoundingAmount:        rounding,
		DeliveryFee:           deliveryFee,
		Tips:                  tips,
		Total:                 money.Store(pre.Sub(rounding)),
		Applied:               applied,
		Added:                 eval.Added,
		Dropped:               eval.Dropped,
	}, nil
}

// Explain resolves the restaurant policy and reports whether rule applies.
func (c *Calculator) Explain(ctx context.Context, rule Rule, pctx Context, lines []Line, usage UsageCounter) (decimal.Decimal, string, error) {
	policy, _, err := c.Policy(ctx, pctx.RestaurantID)
	if err != nil {
		return decimal.Zero, "", err
	}
	pctx.Subtotal = Subtotal(lines)
	return c.evaluator.Explain(ctx, rule, pctx, lines, policy, usage)
}
