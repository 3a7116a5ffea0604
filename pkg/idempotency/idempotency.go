package idempotency

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/restaurant-core/pkg/errors"
	"github.com/angelmondragon/restaurant-core/pkg/redis"
)

// Guard claims (scope, key) pairs with Redis SETNX so a duplicate submission
// can be detected before any state changes.
// Keys follow the `resto:idempotency:<scope>:<key>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a guard whose claims expire after ttl.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency store is required")
	}
	if ttl < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim records the key and reports whether it was already claimed. value is
// stored so a retry can look up the original result.
func (g *Guard) Claim(ctx context.Context, scope, key, value string) (bool, error) {
	storeKey, err := g.key(scope, key)
	if err != nil {
		return false, err
	}
	if value == "" {
		value = "1"
	}
	set, err := g.store.SetNX(ctx, storeKey, value, g.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return !set, nil
}

// Lookup returns the value stored by the first claim of (scope, key).
func (g *Guard) Lookup(ctx context.Context, scope, key string) (string, bool, error) {
	storeKey, err := g.key(scope, key)
	if err != nil {
		return "", false, err
	}
	value, err := g.store.Get(ctx, storeKey)
	if redis.IsMiss(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key")
	}
	return value, true, nil
}

// Release drops a claim so a failed attempt can be retried.
func (g *Guard) Release(ctx context.Context, scope, key string) error {
	storeKey, err := g.key(scope, key)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, storeKey)
}

func (g *Guard) key(scope, key string) (string, error) {
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency scope is required")
	}
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	return g.store.IdempotencyKey(scope, key), nil
}
