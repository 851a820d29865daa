package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/pkg/redis"
)

// State is where an event stands for one consumer.
type State int

const (
	// Started means the caller now owns the event and must Complete or Release it.
	Started State = iota
	// InProgress means another delivery of the event is being handled right now.
	InProgress
	// Done means the event was handled before.
	Done
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	}
	return "unknown"
}

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultLease = time.Minute
)

// Manager guards event handlers against Pub/Sub redelivery. An event is first leased with
// a short TTL, so a crash mid-handler frees it for the next delivery, then marked done
// for the full TTL. Keys look like fw:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl and in-flight leases for lease (a minute when zero).
func NewManager(store redis.IdempotencyStore, ttl, lease time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 || lease < 0 {
		return nil, errors.New("ttl and lease must be non-negative")
	}
	if lease == 0 {
		lease = defaultLease
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Begin leases eventID for consumer, or reports who already has it.
func (m *Manager) Begin(ctx context.Context, consumer, eventID string) (State, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return 0, err
	}
	leased, err := m.store.SetNX(ctx, key, markerProcessing, m.lease)
	if err != nil {
		return 0, fmt.Errorf("lease event %s: %w", eventID, err)
	}
	if leased {
		return Started, nil
	}

	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// lease expired between SETNX and GET; the next delivery will take it
		return InProgress, nil
	case err != nil:
		return 0, fmt.Errorf("read event %s: %w", eventID, err)
	case marker == markerDone:
		return Done, nil
	}
	return InProgress, nil
}

// Complete marks a Started event as handled.
func (m *Manager) Complete(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops the lease so a redelivery is handled again, used before a nack.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID), nil
}
