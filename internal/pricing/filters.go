package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// UsageCounter reports how many times a customer has already used a rule on
// completed orders.
type UsageCounter interface {
	CustomerUsageCount(ctx context.Context, source enums.DiscountSource, ruleID, customerID uuid.UUID) (int, error)
}

// Reasons reported for rules that do not qualify.
const (
	ReasonInactive         = "rule is inactive"
	ReasonNotStarted       = "rule has not started yet"
	ReasonExpired          = "rule has expired"
	ReasonOutsideSchedule  = "outside rule schedule"
	ReasonOrderType        = "order type not eligible"
	ReasonLoyaltyLevel     = "loyalty level not eligible"
	ReasonMinOrderAmount   = "order below minimum amount"
	ReasonFirstOrderOnly   = "rule applies to first order only"
	ReasonBirthdayOnly     = "rule applies around the customer's birthday only"
	ReasonUsageLimit       = "usage limit reached"
	ReasonCustomerRequired = "rule requires a customer"
	ReasonPerCustomerLimit = "customer usage limit reached"
	ReasonNoDiscount       = "no discount for this order"
	ReasonSourceMissing    = "discount source no longer exists"
	ReasonNotSelected      = "superseded by another discount"
	ReasonEmptyOrder       = "order subtotal is zero"
)

const (
	defaultBirthdayWindow = 7
	minutesPerDay         = 24 * 60
	isoSunday             = 7
)

// qualify runs every applicability filter. An empty reason means the rule
// qualifies.
func (e *Evaluator) qualify(ctx context.Context, rule Rule, pctx Context, policy Policy, usage UsageCounter) (string, error) {
	if !rule.Active {
		return ReasonInactive, nil
	}
	now := pctx.Now
	if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
		return ReasonNotStarted, nil
	}
	if rule.EndsAt != nil && now.After(*rule.EndsAt) {
		return ReasonExpired, nil
	}
	if !inSchedule(rule, now) {
		return ReasonOutsideSchedule, nil
	}
	if len(rule.OrderTypes) > 0 && !containsOrderType(rule.OrderTypes, pctx.OrderType) {
		return ReasonOrderType, nil
	}
	if len(rule.LoyaltyLevelIDs) > 0 {
		if pctx.LoyaltyLevelID == nil || !containsID(rule.LoyaltyLevelIDs, *pctx.LoyaltyLevelID) {
			return ReasonLoyaltyLevel, nil
		}
	}
	if rule.MinOrderAmount != nil && pctx.Subtotal.LessThan(*rule.MinOrderAmount) {
		return ReasonMinOrderAmount, nil
	}
	if rule.FirstOrderOnly && (pctx.CustomerID == nil || !pctx.IsFirstOrder) {
		return ReasonFirstOrderOnly, nil
	}
	if rule.BirthdayOnly && !inBirthdayWindow(rule, pctx, policy) {
		return ReasonBirthdayOnly, nil
	}
	if rule.UsageLimit != nil && rule.UsageCount >= *rule.UsageLimit {
		return ReasonUsageLimit, nil
	}
	if rule.PerCustomerLimit != nil {
		if pctx.CustomerID == nil {
			return ReasonCustomerRequired, nil
		}
		if usage == nil {
			usage = e.usage
		}
		used := 0
		if usage != nil {
			n, err := usage.CustomerUsageCount(ctx, rule.Source, rule.ID, *pctx.CustomerID)
			if err != nil {
				return "", fmt.Errorf("customer usage for %s: %w", rule.Key(), err)
			}
			used = n
		}
		if used >= *rule.PerCustomerLimit {
			return ReasonPerCustomerLimit, nil
		}
	}
	return "", nil
}

// inSchedule checks the day-of-week and time-of-day window. For windows that
// wrap midnight the early-morning part belongs to the previous day.
func inSchedule(rule Rule, now time.Time) bool {
	day := isoWeekday(now)
	from, hasFrom := parseClock(rule.TimeFrom)
	to, hasTo := parseClock(rule.TimeTo)

	if hasFrom || hasTo {
		if !hasFrom {
			from = 0
		}
		if !hasTo {
			to = minutesPerDay - 1
		}
		minute := now.Hour()*60 + now.Minute()
		switch {
		case from <= to:
			if minute < from || minute > to {
				return false
			}
		default:
			switch {
			case minute >= from:
			case minute <= to:
				day = previousISODay(day)
			default:
				return false
			}
		}
	}

	if len(rule.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range rule.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return isoSunday
	}
	return wd
}

func previousISODay(day int) int {
	if day == 1 {
		return isoSunday
	}
	return day - 1
}

// parseClock reads "HH:MM" (seconds are ignored) into minutes after midnight.
func parseClock(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// inBirthdayWindow checks now against the birthday in the previous, current
// and next year so windows spanning New Year match.
func inBirthdayWindow(rule Rule, pctx Context, policy Policy) bool {
	if pctx.Birthday == nil {
		return false
	}
	window := policy.BirthdayWindowDays
	if window < 0 {
		window = defaultBirthdayWindow
	}
	before, after := window, window
	if rule.BirthdayDaysBefore != nil {
		before = *rule.BirthdayDaysBefore
	}
	if rule.BirthdayDaysAfter != nil {
		after = *rule.BirthdayDaysAfter
	}

	loc := pctx.Now.Location()
	today := time.Date(pctx.Now.Year(), pctx.Now.Month(), pctx.Now.Day(), 0, 0, 0, 0, loc)
	b := *pctx.Birthday
	for _, year := range []int{today.Year() - 1, today.Year(), today.Year() + 1} {
		day := time.Date(year, b.Month(), b.Day(), 0, 0, 0, 0, loc)
		start := day.AddDate(0, 0, -before)
		end := day.AddDate(0, 0, after)
		if !today.Before(start) && !today.After(end) {
			return true
		}
	}
	return false
}

func containsOrderType(list []enums.OrderType, t enums.OrderType) bool {
	for _, candidate := range list {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsID(list []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range list {
		if candidate == id {
			return true
		}
	}
	return false
}
