package settings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/redis"
)

// Provider resolves restaurant-level settings. Missing or unparsable values
// resolve to the supplied default.
type Provider interface {
	Bool(ctx context.Context, restaurantID uuid.UUID, key string, def bool) (bool, error)
	String(ctx context.Context, restaurantID uuid.UUID, key string, def string) (string, error)
	Decimal(ctx context.Context, restaurantID uuid.UUID, key string, def decimal.Decimal) (decimal.Decimal, error)
}

// Cache is the redis surface used for read-through caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SettingsKey(restaurantID, key string) string
}

// Store is the persistence surface behind Service.
type Store interface {
	Get(ctx context.Context, restaurantID uuid.UUID, key string) (string, bool, error)
	Upsert(ctx context.Context, restaurantID uuid.UUID, key, value string) error
	Delete(ctx context.Context, restaurantID uuid.UUID, key string) error
}

// absent is cached for keys without an override so misses are not re-read.
const absent = "\x00"

// Service reads settings from the database through an optional Redis cache.
type Service struct {
	store Store
	cache Cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds a settings provider. cache may be nil.
func NewService(store Store, cache Cache, ttl time.Duration, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settings store is required")
	}
	return &Service{store: store, cache: cache, ttl: ttl, logg: logg}, nil
}

func (s *Service) Bool(ctx context.Context, restaurantID uuid.UUID, key string, def bool) (bool, error) {
	raw, ok, err := s.lookup(ctx, restaurantID, key)
	if err != nil || !ok {
		return def, err
	}
	return parseBool(raw, def), nil
}

func (s *Service) String(ctx context.Context, restaurantID uuid.UUID, key string, def string) (string, error) {
	raw, ok, err := s.lookup(ctx, restaurantID, key)
	if err != nil || !ok {
		return def, err
	}
	return raw, nil
}

func (s *Service) Decimal(ctx context.Context, restaurantID uuid.UUID, key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.lookup(ctx, restaurantID, key)
	if err != nil || !ok {
		return def, err
	}
	return parseDecimal(raw, def), nil
}

// Set stores an override and drops the cached copy.
func (s *Service) Set(ctx context.Context, restaurantID uuid.UUID, key, value string) error {
	key = strings.TrimSpace(key)
	if restaurantID == uuid.Nil || key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id and key are required")
	}
	if err := s.store.Upsert(ctx, restaurantID, key, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save setting")
	}
	return s.Invalidate(ctx, restaurantID, key)
}

// Unset removes an override.
func (s *Service) Unset(ctx context.Context, restaurantID uuid.UUID, key string) error {
	if err := s.store.Delete(ctx, restaurantID, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete setting")
	}
	return s.Invalidate(ctx, restaurantID, key)
}

// Invalidate evicts the cached value of key.
func (s *Service) Invalidate(ctx context.Context, restaurantID uuid.UUID, key string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, s.cache.SettingsKey(restaurantID.String(), key)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate setting cache")
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, restaurantID uuid.UUID, key string) (string, bool, error) {
	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.SettingsKey(restaurantID.String(), key)
		cached, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if cached == absent {
				return "", false, nil
			}
			return cached, true, nil
		case !redis.IsMiss(err):
			// cache outage falls through to the database
			s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "settings cache read failed: "+err.Error())
		}
	}

	value, ok, err := s.store.Get(ctx, restaurantID, key)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load setting")
	}
	if s.cache != nil {
		cached := value
		if !ok {
			cached = absent
		}
		if err := s.cache.Set(ctx, cacheKey, cached, s.ttl); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "settings cache write failed: "+err.Error())
		}
	}
	return value, ok, nil
}

func parseBool(raw string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func parseDecimal(raw string, def decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}
