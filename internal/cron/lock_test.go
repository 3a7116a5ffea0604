package cron

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if v, ok := m.values[key]; ok && v == expected {
		delete(m.values, key)
		return true, nil
	}
	return false, nil
}

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a, err := NewRedisLock(store, "resto:lock:cron", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	b, _ := NewRedisLock(store, "resto:lock:cron", 0)

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, got %v %v", ok, err)
	}
	if store.ttls["resto:lock:cron"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["resto:lock:cron"])
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail")
	}
	// b never owned the key, so its release must not free a's lease
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release b: %v", err)
	}
	if _, ok := store.values["resto:lock:cron"]; !ok {
		t.Fatal("lock released by non-owner")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// lease expired and another worker took over
	store.values["k"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatal("released a lock owned by another worker")
	}
}

func TestLockTTL(t *testing.T) {
	if got := LockTTL(10 * time.Minute); got != 15*time.Minute {
		t.Fatalf("expected 15m, got %s", got)
	}
	if got := LockTTL(0); got != defaultLockTTL {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(newMemoryStore(), "", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
}
