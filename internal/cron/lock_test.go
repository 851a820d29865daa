package cron

import (
	"context"
	"testing"
	"time"

	"github.com/foodway/foodway-backend/pkg/redis"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryLockStore) LockKey(name string) string { return "fw:lock:" + name }

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	ctx := context.Background()
	release, ok, err := lock.Acquire(ctx, "assignment-expiry")
	if err != nil || !ok {
		t.Fatalf("expected acquire: ok=%v err=%v", ok, err)
	}
	if store.ttls["fw:lock:cron:assignment-expiry"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v", store.ttls)
	}
	if _, ok, _ := lock.Acquire(ctx, "assignment-expiry"); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, exists := store.values["fw:lock:cron:assignment-expiry"]; exists {
		t.Fatalf("expected key removed")
	}
}

func TestRedisLockReleaseKeepsForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, time.Second)
	ctx := context.Background()
	release, ok, _ := lock.Acquire(ctx, "otp-sweep")
	if !ok {
		t.Fatalf("expected acquire")
	}
	// lock expired and another instance took it
	store.values["fw:lock:cron:otp-sweep"] = "someone-else"
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["fw:lock:cron:otp-sweep"] != "someone-else" {
		t.Fatalf("foreign lock must not be deleted")
	}
}

func TestNewRedisLockRequiresClient(t *testing.T) {
	if _, err := NewRedisLock(nil, time.Second); err == nil {
		t.Fatalf("expected error")
	}
}
