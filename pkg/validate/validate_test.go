package validate

import (
	"testing"

	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	RestaurantID uuid.UUID       `json:"restaurant_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"dec_positive"`
	Opening      decimal.Decimal `json:"opening_amount" validate:"dec_nonneg"`
	Method       string          `json:"payment_method" validate:"omitempty,oneof=cash card online"`
	Quantity     int             `json:"quantity" validate:"min=1"`
}

func TestStructValid(t *testing.T) {
	err := Struct(sampleInput{
		RestaurantID: uuid.New(),
		Amount:       decimal.NewFromInt(10),
		Opening:      decimal.Zero,
		Method:       "card",
		Quantity:     1,
	})
	require.NoError(t, err)
}

func TestStructCollectsFieldDetails(t *testing.T) {
	err := Struct(sampleInput{
		Amount:   decimal.Zero,
		Opening:  decimal.NewFromInt(-1),
		Method:   "cheque",
		Quantity: 0,
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["restaurant_id"])
	require.Equal(t, "must be greater than 0", details["amount"])
	require.Equal(t, "must not be negative", details["opening_amount"])
	require.Equal(t, "must be one of cash card online", details["payment_method"])
	require.Equal(t, "must be at least 1", details["quantity"])
}

func TestStructRejectsNonStruct(t *testing.T) {
	err := Struct(42)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
