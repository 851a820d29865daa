package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/foodway/foodway-backend/pkg/redis"
)

// Roster stores each worker's self-reported on-duty flag. Unknown workers are off duty.
type Roster interface {
	SetOnDuty(ctx context.Context, workerID string, onDuty bool) error
	IsOnDuty(ctx context.Context, workerID string) (bool, error)
}

type MemoryRoster struct {
	flags sync.Map // workerID -> bool
}

func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{}
}

func (r *MemoryRoster) SetOnDuty(_ context.Context, workerID string, onDuty bool) error {
	r.flags.Store(workerID, onDuty)
	return nil
}

func (r *MemoryRoster) IsOnDuty(_ context.Context, workerID string) (bool, error) {
	v, ok := r.flags.Load(workerID)
	if !ok {
		return false, nil
	}
	return v.(bool), nil
}

type dutyKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DutyKey(workerID string) string
}

// RedisRoster shares duty flags across API instances. A TTL, when set, makes a worker
// drop off duty if the app stops refreshing the flag.
type RedisRoster struct {
	kv  dutyKV
	ttl time.Duration
}

func NewRedisRoster(kv dutyKV, ttl time.Duration) (*RedisRoster, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisRoster{kv: kv, ttl: ttl}, nil
}

func (r *RedisRoster) SetOnDuty(ctx context.Context, workerID string, onDuty bool) error {
	return r.kv.Set(ctx, r.kv.DutyKey(workerID), strconv.FormatBool(onDuty), r.ttl)
}

func (r *RedisRoster) IsOnDuty(ctx context.Context, workerID string) (bool, error) {
	raw, err := r.kv.Get(ctx, r.kv.DutyKey(workerID))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	onDuty, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse duty flag for %s: %w", workerID, err)
	}
	return onDuty, nil
}
