package assignments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/enums"
)

type memoryEntry struct {
	mu sync.Mutex
	a  models.DeliveryAssignment
}

// MemoryStore keeps assignments in process. The index lock only guards membership;
// state changes take the per-assignment mutex.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*memoryEntry
	bySubOrder map[string]uuid.UUID

	countersMu sync.Mutex
	counters   map[string]map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       map[uuid.UUID]*memoryEntry{},
		bySubOrder: map[string]uuid.UUID{},
		counters:   map[string]map[string]int64{},
	}
}

func (s *MemoryStore) Insert(_ context.Context, a *models.DeliveryAssignment) error {
	key := a.OrderID + ":" + a.SubOrderID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySubOrder[key]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byID[a.ID]; ok {
		return ErrDuplicate
	}
	s.byID[a.ID] = &memoryEntry{a: cloneAssignment(*a)}
	s.bySubOrder[key] = a.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	e := s.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := cloneAssignment(e.a)
	return &out, nil
}

func (s *MemoryStore) ListAvailable(_ context.Context, now time.Time) ([]models.DeliveryAssignment, error) {
	out := s.collect(func(a *models.DeliveryAssignment) bool {
		return a.State == enums.AssignmentStateAvailable && a.DispatchDeadline.After(now)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListClaimedBy(_ context.Context, workerID string) ([]models.DeliveryAssignment, error) {
	out := s.collect(func(a *models.DeliveryAssignment) bool {
		return a.State == enums.AssignmentStateClaimed && a.ClaimedBy != nil && *a.ClaimedBy == workerID
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimedAt.Before(*out[j].ClaimedAt)
	})
	return out, nil
}

func (s *MemoryStore) Claim(_ context.Context, id uuid.UUID, workerID string, at time.Time) (*models.DeliveryAssignment, error) {
	e := s.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.a.State != enums.AssignmentStateAvailable || e.a.ClaimedBy != nil {
		return nil, claimRejection(&e.a)
	}
	if !e.a.DispatchDeadline.After(at) {
		return nil, ErrNotAvailable
	}
	claimant := workerID
	claimedAt := at
	e.a.State = enums.AssignmentStateClaimed
	e.a.ClaimedBy = &claimant
	e.a.ClaimedAt = &claimedAt
	e.a.UpdatedAt = at
	out := cloneAssignment(e.a)
	return &out, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time, monthBucket string) (*models.DeliveryAssignment, error) {
	e := s.entry(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.a.State.CanTransitionTo(enums.AssignmentStateDelivered) {
		return nil, ErrNotClaimed
	}
	deliveredAt := at
	e.a.State = enums.AssignmentStateDelivered
	e.a.DeliveredAt = &deliveredAt
	e.a.UpdatedAt = at

	s.countersMu.Lock()
	buckets := s.counters[*e.a.ClaimedBy]
	if buckets == nil {
		buckets = map[string]int64{}
		s.counters[*e.a.ClaimedBy] = buckets
	}
	buckets[models.CounterBucketTotal]++
	buckets[monthBucket]++
	s.countersMu.Unlock()

	out := cloneAssignment(e.a)
	return &out, nil
}

func (s *MemoryStore) ExpireDue(_ context.Context, now time.Time) ([]models.DeliveryAssignment, error) {
	var expired []models.DeliveryAssignment
	for _, e := range s.entries() {
		e.mu.Lock()
		if e.a.State == enums.AssignmentStateAvailable && !e.a.DispatchDeadline.After(now) {
			expiredAt := now
			e.a.State = enums.AssignmentStateExpired
			e.a.ExpiredAt = &expiredAt
			e.a.UpdatedAt = now
			expired = append(expired, cloneAssignment(e.a))
		}
		e.mu.Unlock()
	}
	return expired, nil
}

func (s *MemoryStore) ListDelivered(_ context.Context, workerID string, from, to time.Time) ([]models.DeliveryAssignment, error) {
	out := s.collect(func(a *models.DeliveryAssignment) bool {
		if a.State != enums.AssignmentStateDelivered || a.ClaimedBy == nil || *a.ClaimedBy != workerID {
			return false
		}
		return !a.DeliveredAt.Before(from) && a.DeliveredAt.Before(to)
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeliveredAt.After(*out[j].DeliveredAt)
	})
	return out, nil
}

func (s *MemoryStore) Counters(_ context.Context, workerID string, buckets ...string) (map[string]int64, error) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b] = s.counters[workerID][b]
	}
	return out, nil
}

func (s *MemoryStore) entry(id uuid.UUID) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

func (s *MemoryStore) entries() []*memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*memoryEntry, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	return out
}

// collect copies every matching record, each under its own lock.
func (s *MemoryStore) collect(match func(*models.DeliveryAssignment) bool) []models.DeliveryAssignment {
	var out []models.DeliveryAssignment
	for _, e := range s.entries() {
		e.mu.Lock()
		if match(&e.a) {
			out = append(out, cloneAssignment(e.a))
		}
		e.mu.Unlock()
	}
	return out
}

func cloneAssignment(a models.DeliveryAssignment) models.DeliveryAssignment {
	out := a
	if a.Items != nil {
		out.Items = append([]models.AssignmentLineItem(nil), a.Items...)
	}
	out.ClaimedBy = clonePtr(a.ClaimedBy)
	out.ClaimedAt = clonePtr(a.ClaimedAt)
	out.DeliveredAt = clonePtr(a.DeliveredAt)
	out.ExpiredAt = clonePtr(a.ExpiredAt)
	out.CustomerChatID = clonePtr(a.CustomerChatID)
	out.AddressLat = clonePtr(a.AddressLat)
	out.AddressLng = clonePtr(a.AddressLng)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
