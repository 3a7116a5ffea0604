package settings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Static serves the same values to every restaurant.
type Static map[string]string

func (s Static) Bool(_ context.Context, _ uuid.UUID, key string, def bool) (bool, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	return parseBool(raw, def), nil
}

func (s Static) String(_ context.Context, _ uuid.UUID, key string, def string) (string, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	return raw, nil
}

func (s Static) Decimal(_ context.Context, _ uuid.UUID, key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	return parseDecimal(raw, def), nil
}
