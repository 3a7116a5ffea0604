package pricing

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/money"
	"github.com/angelmondragon/restaurant-core/pkg/types"
)

// Evaluator selects the promotion and promo-code discounts that apply to an
// order and re-validates the ones applied before.
type Evaluator struct {
	usage UsageCounter
	logg  *logger.Logger
}

func NewEvaluator(usage UsageCounter, logg *logger.Logger) *Evaluator {
	return &Evaluator{usage: usage, logg: logg}
}

type EvaluateInput struct {
	Context    Context
	Lines      []Line
	Candidates []Rule
	Previous   types.AppliedDiscounts
	Policy     Policy

	// Usage overrides the evaluator's counter, typically with a
	// transaction-bound one.
	Usage UsageCounter
}

// Dropped describes a previously applied rule that no longer applies.
type Dropped struct {
	Key      string
	Source   enums.DiscountSource
	SourceID *uuid.UUID
	Name     string
	Reason   string
}

type Evaluation struct {
	// Applied holds rule entries: survivors in their prior order, then new ones.
	Applied types.AppliedDiscounts
	Added   types.AppliedDiscounts
	Dropped []Dropped
	Total   decimal.Decimal
}

type scored struct {
	rule       Rule
	applicable decimal.Decimal
	amount     decimal.Decimal
	prevIndex  int
}

func (e *Evaluator) Evaluate(ctx context.Context, in EvaluateInput) (Evaluation, error) {
	previous := in.Previous.Rules()
	prevIndex := make(map[string]int, len(previous))
	for i, d := range previous {
		prevIndex[d.Key()] = i
	}

	out := Evaluation{Applied: types.AppliedDiscounts{}, Total: decimal.Zero}
	if !in.Context.Subtotal.IsPositive() {
		for _, d := range previous {
			out.Dropped = append(out.Dropped, droppedFrom(d, ReasonEmptyOrder))
		}
		e.logDropped(ctx, in.Context, out.Dropped)
		return out, nil
	}

	reasons := make(map[string]string, len(in.Candidates))
	seen := make(map[string]bool, len(in.Candidates))
	qualified := make([]scored, 0, len(in.Candidates))
	for _, rule := range in.Candidates {
		key := rule.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		reason, err := e.qualify(ctx, rule, in.Context, in.Policy, in.Usage)
		if err != nil {
			return Evaluation{}, err
		}
		if reason != "" {
			reasons[key] = reason
			continue
		}
		applicable := ApplicableTotal(rule, in.Lines, in.Context.Subtotal)
		amount := Amount(rule, in.Lines, applicable, in.Policy.Rounding)
		if !amount.IsPositive() {
			reasons[key] = ReasonNoDiscount
			continue
		}
		idx, wasApplied := prevIndex[key]
		if !wasApplied {
			idx = -1
		}
		qualified = append(qualified, scored{rule: rule, applicable: applicable, amount: amount, prevIndex: idx})
	}

	sortCandidates(qualified)
	selected := selectRules(qualified, in.Context.Subtotal)

	chosen := make(map[string]scored, len(selected))
	for _, s := range selected {
		chosen[s.rule.Key()] = s
	}
	for _, s := range qualified {
		if _, ok := chosen[s.rule.Key()]; !ok {
			reasons[s.rule.Key()] = ReasonNotSelected
		}
	}

	survivors := make([]scored, 0, len(selected))
	added := make([]scored, 0, len(selected))
	for _, s := range selected {
		if s.prevIndex >= 0 {
			survivors = append(survivors, s)
		} else {
			added = append(added, s)
		}
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].prevIndex < survivors[j].prevIndex
	})

	for _, s := range survivors {
		out.Applied = append(out.Applied, discountEntry(s))
		out.Total = out.Total.Add(s.amount)
	}
	for _, s := range added {
		entry := discountEntry(s)
		out.Applied = append(out.Applied, entry)
		out.Added = append(out.Added, entry)
		out.Total = out.Total.Add(s.amount)
	}

	for _, d := range previous {
		if _, ok := chosen[d.Key()]; ok {
			continue
		}
		reason, ok := reasons[d.Key()]
		if !ok {
			reason = ReasonSourceMissing
		}
		out.Dropped = append(out.Dropped, droppedFrom(d, reason))
	}
	e.logDropped(ctx, in.Context, out.Dropped)
	return out, nil
}

// Explain reports why a single rule does not apply to the order, or the
// amount it would grant when it does.
func (e *Evaluator) Explain(ctx context.Context, rule Rule, pctx Context, lines []Line, policy Policy, usage UsageCounter) (decimal.Decimal, string, error) {
	if !pctx.Subtotal.IsPositive() {
		return decimal.Zero, ReasonEmptyOrder, nil
	}
	reason, err := e.qualify(ctx, rule, pctx, policy, usage)
	if err != nil || reason != "" {
		return decimal.Zero, reason, err
	}
	amount := Amount(rule, lines, ApplicableTotal(rule, lines, pctx.Subtotal), policy.Rounding)
	if !amount.IsPositive() {
		return decimal.Zero, ReasonNoDiscount, nil
	}
	return amount, "", nil
}

// sortCandidates orders by priority, then previously applied rules in their
// prior order, then source and id so ties resolve the same way every time.
func sortCandidates(list []scored) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.rule.Priority != b.rule.Priority {
			return a.rule.Priority > b.rule.Priority
		}
		aPrev, bPrev := a.prevIndex >= 0, b.prevIndex >= 0
		if aPrev != bPrev {
			return aPrev
		}
		if aPrev && a.prevIndex != b.prevIndex {
			return a.prevIndex < b.prevIndex
		}
		if a.rule.Source != b.rule.Source {
			return a.rule.Source < b.rule.Source
		}
		return a.rule.ID.String() < b.rule.ID.String()
	})
}

// selectRules applies exclusivity and stacking. Amounts are capped at what is
// left of the subtotal.
func selectRules(ordered []scored, subtotal decimal.Decimal) []scored {
	remaining := subtotal
	selected := make([]scored, 0, len(ordered))
	for _, s := range ordered {
		if s.rule.Exclusive && len(selected) > 0 {
			continue
		}
		amount := money.Min(s.amount, remaining)
		if !amount.IsPositive() {
			continue
		}
		s.amount = amount
		selected = append(selected, s)
		remaining = remaining.Sub(amount)
		if s.rule.Exclusive || !s.rule.Stackable {
			break
		}
	}
	return selected
}

func discountEntry(s scored) types.Discount {
	id := s.rule.ID
	line := types.DiscountLine{
		Name:      s.rule.Name,
		Kind:      enums.DiscountKindFixed,
		Amount:    s.amount,
		Stackable: s.rule.Stackable,
		SourceID:  &id,
	}
	switch s.rule.Type {
	case enums.PromotionTypePercent:
		pct := s.rule.Value
		line.Kind = enums.DiscountKindPercent
		line.Percent = &pct
	case enums.PromotionTypeProgressive:
		if tier, ok := s.rule.Tiers.Match(s.applicable); ok {
			pct := tier.Percent
			line.Kind = enums.DiscountKindPercent
			line.Percent = &pct
		}
	}

	if s.rule.Source == enums.DiscountSourcePromoCode {
		return types.CodeDiscount{
			DiscountLine: line,
			Code:         s.rule.Code,
			Scope:        s.rule.Scope,
			Priority:     s.rule.Priority,
		}
	}
	return types.PromotionDiscount{
		DiscountLine: line,
		Scope:        s.rule.Scope,
		Priority:     s.rule.Priority,
		Exclusive:    s.rule.Exclusive,
	}
}

func droppedFrom(d types.Discount, reason string) Dropped {
	line := d.Line()
	return Dropped{
		Key:      d.Key(),
		Source:   d.Source(),
		SourceID: line.SourceID,
		Name:     line.Name,
		Reason:   reason,
	}
}

func (e *Evaluator) logDropped(ctx context.Context, pctx Context, dropped []Dropped) {
	for _, d := range dropped {
		fields := map[string]any{
			"restaurant_id": pctx.RestaurantID.String(),
			"order_id":      pctx.OrderID.String(),
			"discount_key":  d.Key,
			"reason":        d.Reason,
		}
		e.logg.Info(e.logg.WithFields(ctx, fields), "discount dropped")
	}
}
