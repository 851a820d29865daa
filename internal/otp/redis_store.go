package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/foodway/foodway-backend/pkg/redis"
)

const defaultWatchRetries = 5

type redisTxClient interface {
	OTPKey(purpose, subject string) string
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Watch(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error
}

// RedisStore keeps records as JSON with a TTL covering the window plus ExpiredRetention.
// Update runs inside WATCH/MULTI so concurrent verifies of one key serialize.
type RedisStore struct {
	client  redisTxClient
	retries int
	now     func() time.Time
}

func NewRedisStore(client redisTxClient, retries int) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if retries <= 0 {
		retries = defaultWatchRetries
	}
	return &RedisStore{client: client, retries: retries, now: time.Now}, nil
}

func (s *RedisStore) Save(ctx context.Context, key Key, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.redisKey(key), data, s.ttlFor(rec))
}

func (s *RedisStore) Update(ctx context.Context, key Key, fn UpdateFunc) error {
	rk := s.redisKey(key)
	var result error
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, rk).Result()
		var working *Record
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			rec, decErr := decodeRecord(raw)
			if decErr != nil {
				return decErr
			}
			working = &rec
		}

		changed, res := fn(working)
		result = res
		if !changed || working == nil {
			return nil
		}
		data, err := encodeRecord(*working)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, rk, data, s.ttlFor(*working))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.ErrTxConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("otp update %s: %w", key, err)
		}
		return result
	}
	return fmt.Errorf("otp update %s: %w", key, redis.ErrTxConflict)
}

// Sweep is a no-op; Redis expires keys itself.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) redisKey(key Key) string {
	return s.client.OTPKey(key.Purpose.String(), key.Subject)
}

func (s *RedisStore) ttlFor(rec Record) time.Duration {
	ttl := rec.retentionDeadline().Sub(s.now())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func encodeRecord(rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode otp record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode otp record: %w", err)
	}
	return rec, nil
}
