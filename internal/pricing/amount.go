package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
	"github.com/angelmondragon/restaurant-core/pkg/money"
)

// ApplicableTotal sums the lines a rule is scoped to. Whole-order rules
// without exclusions use the subtotal directly.
func ApplicableTotal(rule Rule, lines []Line, subtotal decimal.Decimal) decimal.Decimal {
	if wholeOrder(rule) && !hasExclusions(rule) {
		return subtotal
	}
	total := decimal.Zero
	for _, line := range applicableLines(rule, lines) {
		total = total.Add(line.Total())
	}
	return total
}

func wholeOrder(rule Rule) bool {
	return rule.Scope.Scope == "" || rule.Scope.Scope == enums.PromotionScopeWholeOrder
}

func hasExclusions(rule Rule) bool {
	return len(rule.Scope.ExcludedDishes) > 0 || len(rule.Scope.ExcludedCategories) > 0
}

func applicableLines(rule Rule, lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if !line.Counts() || line.Quantity <= 0 {
			continue
		}
		if matchesScope(rule, line) && !excluded(rule, line) {
			out = append(out, line)
		}
	}
	return out
}

func matchesScope(rule Rule, line Line) bool {
	switch rule.Scope.Scope {
	case enums.PromotionScopeDishes:
		return containsID(rule.Scope.Dishes, line.DishID)
	case enums.PromotionScopeCategories:
		return line.CategoryID != nil && containsID(rule.Scope.Categories, *line.CategoryID)
	default:
		return true
	}
}

func excluded(rule Rule, line Line) bool {
	if containsID(rule.Scope.ExcludedDishes, line.DishID) {
		return true
	}
	return line.CategoryID != nil && containsID(rule.Scope.ExcludedCategories, *line.CategoryID)
}

// Amount computes the discount a rule grants on its applicable total. The
// result is never negative and never above the applicable total.
func Amount(rule Rule, lines []Line, applicable decimal.Decimal, mode money.RoundingMode) decimal.Decimal {
	if !applicable.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch rule.Type {
	case enums.PromotionTypePercent:
		amount = percentOff(applicable, rule.Value, rule.MaxDiscount, mode)
	case enums.PromotionTypeFixed:
		amount = money.Min(rule.Value, applicable)
	case enums.PromotionTypeProgressive:
		tier, ok := rule.Tiers.Match(applicable)
		if !ok {
			return decimal.Zero
		}
		amount = percentOff(applicable, tier.Percent, rule.MaxDiscount, mode)
	case enums.PromotionTypeBuyXGetY:
		amount = freeUnitsValue(applicableLines(rule, lines), rule.BuyQuantity, rule.GetQuantity)
		if rule.MaxDiscount != nil {
			amount = money.Min(amount, *rule.MaxDiscount)
		}
	default:
		return decimal.Zero
	}
	return money.Store(money.Clamp(amount, decimal.Zero, applicable))
}

func percentOff(base, pct decimal.Decimal, maxDiscount *decimal.Decimal, mode money.RoundingMode) decimal.Decimal {
	if !pct.IsPositive() {
		return decimal.Zero
	}
	amount := money.RoundUnit(money.Percent(base, pct), mode)
	if maxDiscount != nil {
		amount = money.Min(amount, *maxDiscount)
	}
	return amount
}

// freeUnitsValue orders units by price, most expensive first, and frees the
// last get units of every full group of buy+get. Units are counted per price
// run, never expanded one by one.
func freeUnitsValue(lines []Line, buy, get int) decimal.Decimal {
	if buy <= 0 || get <= 0 {
		return decimal.Zero
	}
	type run struct {
		price decimal.Decimal
		count int64
	}
	runs := make([]run, 0, len(lines))
	var units int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		runs = append(runs, run{price: line.UnitTotal(), count: int64(line.Quantity)})
		units += int64(line.Quantity)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].price.GreaterThan(runs[j].price)
	})

	group := int64(buy + get)
	limit := units / group * group
	// freeBefore counts free positions in [0, n).
	freeBefore := func(n int64) int64 {
		n = min(n, limit)
		return n/group*int64(get) + max(0, n%group-int64(buy))
	}

	total := decimal.Zero
	var pos int64
	for _, r := range runs {
		if free := freeBefore(pos+r.count) - freeBefore(pos); free > 0 {
			total = total.Add(r.price.Mul(decimal.NewFromInt(free)))
		}
		pos += r.count
	}
	return total
}
