package broadcast

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

const (
	DefaultBufferSize   = 64
	DefaultTombstoneTTL = 10 * time.Minute

	publishStripes = 64
)

// Publisher is the narrow surface the assignment registry depends on.
type Publisher interface {
	Publish(evt *Event)
}

// BrokerParams wires the broker dependencies.
type BrokerParams struct {
	Logger       *logger.Logger
	Metrics      *metrics.DispatchMetrics
	BufferSize   int
	TombstoneTTL time.Duration
	Now          func() time.Time
}

// Broker fans assignment lifecycle events out to worker subscribers. Events for one assignment
// are published under that assignment's stripe lock so a retraction can never overtake its Created.
type Broker struct {
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics
	now     func() time.Time

	bufferSize   int
	tombstoneTTL time.Duration

	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	stripes [publishStripes]sync.Mutex

	tombMu     sync.Mutex
	tombstones map[string]time.Time
	lastPrune  time.Time

	published  atomic.Int64
	delivered  atomic.Int64
	dropped    atomic.Int64
	suppressed atomic.Int64
}

// Stats is a point-in-time view of broker counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
	Suppressed  int64 `json:"suppressed"`
	Tombstones  int   `json:"tombstones"`
}

func NewBroker(p BrokerParams) (*Broker, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.BufferSize <= 0 {
		p.BufferSize = DefaultBufferSize
	}
	if p.TombstoneTTL <= 0 {
		p.TombstoneTTL = DefaultTombstoneTTL
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Broker{
		logg:         p.Logger,
		metrics:      p.Metrics,
		now:          p.Now,
		bufferSize:   p.BufferSize,
		tombstoneTTL: p.TombstoneTTL,
		subscribers:  make(map[string]*Subscriber),
		tombstones:   make(map[string]time.Time),
	}, nil
}

// Subscribe opens the live channel for workerID, closing any channel it already had.
func (b *Broker) Subscribe(workerID string, onDuty bool) *Subscriber {
	sub := newSubscriber(workerID, b.bufferSize, onDuty)

	b.mu.Lock()
	prev := b.subscribers[workerID]
	b.subscribers[workerID] = sub
	count := len(b.subscribers)
	b.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	b.metrics.SetSessions(count)
	return sub
}

// Unsubscribe removes sub if it is still the worker's current channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	if current, ok := b.subscribers[sub.workerID]; ok && current == sub {
		delete(b.subscribers, sub.workerID)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	sub.close()
	b.metrics.SetSessions(count)
}

// SetOnDuty flips the duty flag of the worker's live channel. Returns false when not connected.
func (b *Broker) SetOnDuty(workerID string, onDuty bool) bool {
	b.mu.RLock()
	sub := b.subscribers[workerID]
	b.mu.RUnlock()
	if sub == nil {
		return false
	}
	sub.setOnDuty(onDuty)
	return true
}

// Publish fans evt out without blocking. Created goes to on-duty subscribers; retractions go
// only to subscribers that were offered the assignment, never to the worker that caused them.
func (b *Broker) Publish(evt *Event) {
	if evt == nil || evt.AssignmentID == "" {
		return
	}
	stripe := b.stripeFor(evt.AssignmentID)
	stripe.Lock()
	defer stripe.Unlock()

	b.published.Add(1)
	b.metrics.AddBroadcast(evt.Type.String(), "published", 1)

	retraction := evt.Type.IsRetraction()
	if retraction {
		b.markTombstone(evt.AssignmentID)
	} else if b.isTombstoned(evt.AssignmentID) {
		b.suppressed.Add(1)
		b.metrics.AddBroadcast(evt.Type.String(), "suppressed", 1)
		return
	}

	var delivered, dropped int
	for _, sub := range b.snapshotSubscribers() {
		var res deliveryResult
		if retraction {
			res = sub.retract(evt)
		} else {
			res = sub.offer(evt)
		}
		switch res {
		case resultDelivered:
			delivered++
		case resultDropped:
			dropped++
			if retraction {
				ctx := b.logg.WithFields(context.Background(), map[string]any{
					"worker_id":     sub.workerID,
					"assignment_id": evt.AssignmentID,
					"event":         evt.Type.String(),
				})
				b.logg.Warn(ctx, "broadcast.retraction_dropped")
			}
		}
	}

	b.delivered.Add(int64(delivered))
	b.dropped.Add(int64(dropped))
	b.metrics.AddBroadcast(evt.Type.String(), "delivered", delivered)
	b.metrics.AddBroadcast(evt.Type.String(), "dropped", dropped)
}

// ToggleDuty flips the worker's duty flag and tells the live session, which refreshes its
// snapshot when the worker comes on duty. Returns false when not connected.
func (b *Broker) ToggleDuty(workerID string, onDuty bool) bool {
	b.mu.RLock()
	sub := b.subscribers[workerID]
	b.mu.RUnlock()
	if sub == nil {
		return false
	}
	sub.setOnDuty(onDuty)
	return b.Push(sub, enums.DispatchEventDutyChanged, DutyPayload{OnDuty: onDuty})
}

// CompleteSnapshot reconciles a ListAvailable read taken after sub.BeginSnapshot (or Subscribe)
// and returns the ids that are still safe to show.
func (b *Broker) CompleteSnapshot(sub *Subscriber, ids []string) []string {
	if sub == nil {
		return nil
	}
	return sub.completeSnapshot(ids, b.isTombstoned)
}

// Push sends a session-local frame to the worker's channel.
func (b *Broker) Push(sub *Subscriber, evtType enums.DispatchEventType, payload any) bool {
	if sub == nil {
		return false
	}
	return sub.push(&Event{
		Type:      evtType,
		Timestamp: b.now().UTC(),
		Data:      mustMarshal(payload),
	})
}

func (b *Broker) Stats() Stats {
	b.mu.RLock()
	subs := len(b.subscribers)
	b.mu.RUnlock()

	b.tombMu.Lock()
	tombs := len(b.tombstones)
	b.tombMu.Unlock()

	return Stats{
		Subscribers: subs,
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Suppressed:  b.suppressed.Load(),
		Tombstones:  tombs,
	}
}

// Close drops every subscriber, ending their sessions.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.metrics.SetSessions(0)
}

func (b *Broker) snapshotSubscribers() []*Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		out = append(out, sub)
	}
	return out
}

func (b *Broker) stripeFor(assignmentID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(assignmentID))
	return &b.stripes[h.Sum32()%publishStripes]
}

func (b *Broker) markTombstone(assignmentID string) {
	now := b.now()
	b.tombMu.Lock()
	defer b.tombMu.Unlock()
	b.tombstones[assignmentID] = now
	if now.Sub(b.lastPrune) < b.tombstoneTTL/2 {
		return
	}
	for id, at := range b.tombstones {
		if now.Sub(at) > b.tombstoneTTL {
			delete(b.tombstones, id)
		}
	}
	b.lastPrune = now
}

func (b *Broker) isTombstoned(assignmentID string) bool {
	b.tombMu.Lock()
	defer b.tombMu.Unlock()
	at, ok := b.tombstones[assignmentID]
	if !ok {
		return false
	}
	return b.now().Sub(at) <= b.tombstoneTTL
}
