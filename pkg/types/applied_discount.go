package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-core/pkg/enums"
)

// Discount is one entry of an order's applied discounts. Each source has its
// own concrete type; the JSON form carries a "source" discriminator.
type Discount interface {
	Source() enums.DiscountSource
	Line() DiscountLine
	Key() string
}

// DiscountLine holds the fields shared by every discount source.
type DiscountLine struct {
	Name      string             `json:"name"`
	Kind      enums.DiscountKind `json:"type"`
	Amount    decimal.Decimal    `json:"amount"`
	Percent   *decimal.Decimal   `json:"percent,omitempty"`
	Stackable bool               `json:"stackable"`
	SourceID  *uuid.UUID         `json:"source_id,omitempty"`
}

// DiscountScope snapshots the rule filters at application time.
type DiscountScope struct {
	Scope              enums.PromotionScope `json:"scope,omitempty"`
	Categories         []uuid.UUID          `json:"categories,omitempty"`
	Dishes             []uuid.UUID          `json:"dishes,omitempty"`
	ExcludedCategories []uuid.UUID          `json:"excluded_categories,omitempty"`
	ExcludedDishes     []uuid.UUID          `json:"excluded_dishes,omitempty"`
}

type PromotionDiscount struct {
	DiscountLine
	Scope     DiscountScope `json:"filters"`
	Priority  int           `json:"priority"`
	Exclusive bool          `json:"exclusive,omitempty"`
}

type CodeDiscount struct {
	DiscountLine
	Code     string        `json:"code"`
	Scope    DiscountScope `json:"filters"`
	Priority int           `json:"priority"`
}

type LevelDiscount struct {
	DiscountLine
}

// RoundingDiscount moves the fractional remainder (and optionally the units
// below ten) of the total into a customer-favourable discount line.
type RoundingDiscount struct {
	DiscountLine
	Step int64 `json:"step"`
}

func (d PromotionDiscount) Source() enums.DiscountSource { return enums.DiscountSourcePromotion }
func (d CodeDiscount) Source() enums.DiscountSource      { return enums.DiscountSourcePromoCode }
func (d LevelDiscount) Source() enums.DiscountSource     { return enums.DiscountSourceLevel }
func (d RoundingDiscount) Source() enums.DiscountSource  { return enums.DiscountSourceRounding }

func (d PromotionDiscount) Line() DiscountLine { return d.DiscountLine }
func (d CodeDiscount) Line() DiscountLine      { return d.DiscountLine }
func (d LevelDiscount) Line() DiscountLine     { return d.DiscountLine }
func (d RoundingDiscount) Line() DiscountLine  { return d.DiscountLine }

func (d PromotionDiscount) Key() string { return DiscountKey(d.Source(), d.SourceID) }
func (d CodeDiscount) Key() string      { return DiscountKey(d.Source(), d.SourceID) }
func (d LevelDiscount) Key() string     { return DiscountKey(d.Source(), d.SourceID) }
func (d RoundingDiscount) Key() string  { return DiscountKey(d.Source(), d.SourceID) }

// DiscountKey identifies a discount by source type and id.
func DiscountKey(source enums.DiscountSource, id *uuid.UUID) string {
	if id == nil {
		return string(source)
	}
	return string(source) + ":" + id.String()
}

// AppliedDiscounts is the ordered audit trail persisted on an order.
type AppliedDiscounts []Discount

// Total sums the amounts of every entry.
func (a AppliedDiscounts) Total() decimal.Decimal {
	total := decimal.Zero
	for _, d := range a {
		total = total.Add(d.Line().Amount)
	}
	return total
}

// TotalFor sums the amounts of entries from the given sources.
func (a AppliedDiscounts) TotalFor(sources ...enums.DiscountSource) decimal.Decimal {
	total := decimal.Zero
	for _, d := range a {
		for _, s := range sources {
			if d.Source() == s {
				total = total.Add(d.Line().Amount)
				break
			}
		}
	}
	return total
}

// Rules returns only promotion and promo-code entries, in order.
func (a AppliedDiscounts) Rules() AppliedDiscounts {
	out := make(AppliedDiscounts, 0, len(a))
	for _, d := range a {
		if d.Source().IsRule() {
			out = append(out, d)
		}
	}
	return out
}

// Keys returns the ordered discount keys.
func (a AppliedDiscounts) Keys() []string {
	keys := make([]string, 0, len(a))
	for _, d := range a {
		keys = append(keys, d.Key())
	}
	return keys
}

func (a AppliedDiscounts) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	entries := make([]json.RawMessage, 0, len(a))
	for _, d := range a {
		raw, err := marshalDiscount(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, raw)
	}
	return json.Marshal(entries)
}

func (a *AppliedDiscounts) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("applied discounts: %w", err)
	}
	out := make(AppliedDiscounts, 0, len(raw))
	for _, entry := range raw {
		d, err := unmarshalDiscount(entry)
		if err != nil {
			return err
		}
		out = append(out, d)
	}
	*a = out
	return nil
}

// Value implements driver.Valuer for the jsonb column.
func (a AppliedDiscounts) Value() (driver.Value, error) {
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for the jsonb column.
func (a *AppliedDiscounts) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = AppliedDiscounts{}
		return nil
	case []byte:
		if len(v) == 0 {
			*a = AppliedDiscounts{}
			return nil
		}
		return a.UnmarshalJSON(v)
	case string:
		if v == "" {
			*a = AppliedDiscounts{}
			return nil
		}
		return a.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("AppliedDiscounts: unsupported Scan type %T", src)
	}
}

func marshalDiscount(d Discount) (json.RawMessage, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("applied discount %s: %w", d.Source(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("applied discount %s: %w", d.Source(), err)
	}
	source, err := json.Marshal(d.Source())
	if err != nil {
		return nil, err
	}
	fields["source"] = source
	return json.Marshal(fields)
}

func unmarshalDiscount(raw json.RawMessage) (Discount, error) {
	var head struct {
		Source enums.DiscountSource `json:"source"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("applied discount: %w", err)
	}

	var (
		target Discount
		err    error
	)
	switch head.Source {
	case enums.DiscountSourcePromotion:
		var d PromotionDiscount
		err = json.Unmarshal(raw, &d)
		target = d
	case enums.DiscountSourcePromoCode:
		var d CodeDiscount
		err = json.Unmarshal(raw, &d)
		target = d
	case enums.DiscountSourceLevel:
		var d LevelDiscount
		err = json.Unmarshal(raw, &d)
		target = d
	case enums.DiscountSourceRounding:
		var d RoundingDiscount
		err = json.Unmarshal(raw, &d)
		target = d
	default:
		return nil, fmt.Errorf("applied discount: unknown source %q", head.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("applied discount %s: %w", head.Source, err)
	}
	return target, nil
}
