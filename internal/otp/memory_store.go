package otp

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	mu      sync.Mutex
	rec     *Record
	removed bool
}

// MemoryStore keeps records in process with one mutex per key.
type MemoryStore struct {
	entries sync.Map // Key -> *memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, key Key, rec Record) error {
	return s.withEntry(key, func(e *memoryEntry) error {
		copied := rec
		e.rec = &copied
		return nil
	})
}

func (s *MemoryStore) Update(ctx context.Context, key Key, fn UpdateFunc) error {
	return s.withEntry(key, func(e *memoryEntry) error {
		var working *Record
		if e.rec != nil {
			copied := *e.rec
			working = &copied
		}
		changed, result := fn(working)
		if changed && working != nil {
			e.rec = working
		}
		return result
	})
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	s.entries.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		e := v.(*memoryEntry)
		e.mu.Lock()
		if e.rec == nil || now.After(e.rec.retentionDeadline()) {
			e.removed = true
			s.entries.Delete(k)
			if e.rec != nil {
				removed++
			}
		}
		e.mu.Unlock()
		return true
	})
	return removed, ctx.Err()
}

// withEntry locks the entry for key, retrying if a sweep removed it in between.
func (s *MemoryStore) withEntry(key Key, fn func(e *memoryEntry) error) error {
	for {
		v, _ := s.entries.LoadOrStore(key, &memoryEntry{})
		e := v.(*memoryEntry)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		err := fn(e)
		e.mu.Unlock()
		return err
	}
}
