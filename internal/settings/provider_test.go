package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/restaurant-core/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
)

type fakeCache struct {
	data    map[string]string
	getErr  error
	gets    int
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.gets++
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.data[key] = value.(string)
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *fakeCache) SettingsKey(restaurantID, key string) string {
	return "resto:settings:" + restaurantID + ":" + key
}

func newService(t *testing.T, cache Cache) (*Service, *Repository) {
	t.Helper()
	repository := NewRepository(dbtest.Open(t))
	svc, err := NewService(repository, cache, time.Minute, nil)
	require.NoError(t, err)
	return svc, repository
}

func TestServiceDefaultsWhenUnset(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	restaurantID := uuid.New()

	on, err := svc.Bool(ctx, restaurantID, KeyRoundToTen, true)
	require.NoError(t, err)
	require.True(t, on)

	mode, err := svc.String(ctx, restaurantID, KeyRoundingMode, "half_up")
	require.NoError(t, err)
	require.Equal(t, "half_up", mode)

	days, err := svc.Decimal(ctx, restaurantID, KeyBirthdayDays, decimal.NewFromInt(7))
	require.NoError(t, err)
	require.True(t, days.Equal(decimal.NewFromInt(7)))
}

func TestServiceSetOverridesPerRestaurant(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, svc.Set(ctx, first, KeyRoundToTen, "true"))
	require.NoError(t, svc.Set(ctx, first, KeyRoundToTen, "false"))
	require.NoError(t, svc.Set(ctx, first, KeyBirthdayDays, "3"))

	on, err := svc.Bool(ctx, first, KeyRoundToTen, true)
	require.NoError(t, err)
	require.False(t, on)

	days, err := svc.Decimal(ctx, first, KeyBirthdayDays, decimal.NewFromInt(7))
	require.NoError(t, err)
	require.True(t, days.Equal(decimal.NewFromInt(3)))

	other, err := svc.Bool(ctx, second, KeyRoundToTen, false)
	require.NoError(t, err)
	require.False(t, other)
}

func TestServiceInvalidValueFallsBackToDefault(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	restaurantID := uuid.New()

	require.NoError(t, svc.Set(ctx, restaurantID, KeyAllowNegativeStock, "maybe"))
	allowed, err := svc.Bool(ctx, restaurantID, KeyAllowNegativeStock, true)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestServiceReadThroughCache(t *testing.T) {
	cache := newFakeCache()
	svc, repository := newService(t, cache)
	ctx := context.Background()
	restaurantID := uuid.New()

	require.NoError(t, repository.Upsert(ctx, restaurantID, KeyRoundingMode, "half_even"))

	mode, err := svc.String(ctx, restaurantID, KeyRoundingMode, "half_up")
	require.NoError(t, err)
	require.Equal(t, "half_even", mode)
	require.Equal(t, "half_even", cache.data[cache.SettingsKey(restaurantID.String(), KeyRoundingMode)])

	// a direct write is hidden by the cache until invalidated
	require.NoError(t, repository.Upsert(ctx, restaurantID, KeyRoundingMode, "half_up"))
	mode, err = svc.String(ctx, restaurantID, KeyRoundingMode, "")
	require.NoError(t, err)
	require.Equal(t, "half_even", mode)

	require.NoError(t, svc.Invalidate(ctx, restaurantID, KeyRoundingMode))
	mode, err = svc.String(ctx, restaurantID, KeyRoundingMode, "")
	require.NoError(t, err)
	require.Equal(t, "half_up", mode)
}

func TestServiceCachesMisses(t *testing.T) {
	cache := newFakeCache()
	svc, _ := newService(t, cache)
	ctx := context.Background()
	restaurantID := uuid.New()

	_, err := svc.Bool(ctx, restaurantID, KeyRoundToTen, false)
	require.NoError(t, err)
	require.Equal(t, absent, cache.data[cache.SettingsKey(restaurantID.String(), KeyRoundToTen)])

	require.NoError(t, svc.Set(ctx, restaurantID, KeyRoundToTen, "true"))
	require.Contains(t, cache.deleted, cache.SettingsKey(restaurantID.String(), KeyRoundToTen))

	on, err := svc.Bool(ctx, restaurantID, KeyRoundToTen, false)
	require.NoError(t, err)
	require.True(t, on)
}

func TestServiceCacheOutageFallsBackToStore(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	svc, repository := newService(t, cache)
	ctx := context.Background()
	restaurantID := uuid.New()
	require.NoError(t, repository.Upsert(ctx, restaurantID, KeyRoundToTen, "true"))

	on, err := svc.Bool(ctx, restaurantID, KeyRoundToTen, false)
	require.NoError(t, err)
	require.True(t, on)
}

func TestServiceUnset(t *testing.T) {
	svc, repository := newService(t, nil)
	ctx := context.Background()
	restaurantID := uuid.New()

	require.NoError(t, svc.Set(ctx, restaurantID, KeyRoundToTen, "true"))
	require.NoError(t, svc.Unset(ctx, restaurantID, KeyRoundToTen))

	all, err := repository.List(ctx, restaurantID)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestServiceSetValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	err := svc.Set(context.Background(), uuid.Nil, KeyRoundToTen, "true")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	static := Static{KeyRoundToTen: "true", KeyBirthdayDays: "2", KeyRoundingMode: "half_even"}

	on, err := static.Bool(ctx, uuid.New(), KeyRoundToTen, false)
	require.NoError(t, err)
	require.True(t, on)

	days, err := static.Decimal(ctx, uuid.New(), KeyBirthdayDays, decimal.Zero)
	require.NoError(t, err)
	require.True(t, days.Equal(decimal.NewFromInt(2)))

	mode, err := static.String(ctx, uuid.New(), KeyRoundingMode, "half_up")
	require.NoError(t, err)
	require.Equal(t, "half_even", mode)

	allowed, err := static.Bool(ctx, uuid.New(), KeyAllowNegativeStock, true)
	require.NoError(t, err)
	require.True(t, allowed)
}
