package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayRoundTripThroughLiteral(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	value, err := UUIDArray{a, b}.Value()
	require.NoError(t, err)

	var scanned UUIDArray
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, UUIDArray{a, b}, scanned)
	assert.True(t, scanned.Contains(b))
	assert.False(t, scanned.Contains(uuid.New()))
}

func TestUUIDArrayScanEmpty(t *testing.T) {
	var scanned UUIDArray
	require.NoError(t, scanned.Scan("{}"))
	assert.Empty(t, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)
	require.Error(t, scanned.Scan(42))
}

func TestStringAndIntArrays(t *testing.T) {
	var types StringArray
	require.NoError(t, types.Scan([]byte(`{dine_in,delivery}`)))
	assert.True(t, types.Contains("delivery"))
	assert.False(t, types.Contains("pickup"))

	var days IntArray
	require.NoError(t, days.Scan([]byte(`{1,5,7}`)))
	assert.True(t, days.Contains(7))

	value, err := IntArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)
}
