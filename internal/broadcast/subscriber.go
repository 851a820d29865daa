package broadcast

import "sync"

// Subscriber is one worker's live channel. A worker has at most one.
type Subscriber struct {
	workerID string
	ch       chan *Event

	mu     sync.Mutex
	closed bool
	onDuty bool
	// seen holds assignments offered to this subscriber that have not been retracted yet.
	seen map[string]struct{}
	// pending collects retractions observed while a snapshot is being assembled.
	snapshotting bool
	pending      map[string]struct{}
}

func newSubscriber(workerID string, bufferSize int, onDuty bool) *Subscriber {
	return &Subscriber{
		workerID:     workerID,
		ch:           make(chan *Event, bufferSize),
		onDuty:       onDuty,
		seen:         make(map[string]struct{}),
		snapshotting: true,
		pending:      make(map[string]struct{}),
	}
}

// WorkerID returns the worker bound to this channel.
func (s *Subscriber) WorkerID() string { return s.workerID }

// C returns the read-only event channel. It is closed when the subscriber is replaced or removed.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// OnDuty reports the current duty flag.
func (s *Subscriber) OnDuty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDuty
}

// BeginSnapshot starts recording retractions so a snapshot read afterwards can be reconciled.
func (s *Subscriber) BeginSnapshot() {
	s.mu.Lock()
	s.snapshotting = true
	s.pending = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *Subscriber) setOnDuty(onDuty bool) {
	s.mu.Lock()
	s.onDuty = onDuty
	s.mu.Unlock()
}

// offer delivers a Created event when on duty. Caller holds the assignment stripe lock.
func (s *Subscriber) offer(evt *Event) deliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.onDuty {
		return resultSkipped
	}
	if !s.trySend(evt) {
		return resultDropped
	}
	s.seen[evt.AssignmentID] = struct{}{}
	return resultDelivered
}

// retract delivers a retraction only if the matching Created reached this subscriber.
func (s *Subscriber) retract(evt *Event) deliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return resultSkipped
	}
	_, offered := s.seen[evt.AssignmentID]
	delete(s.seen, evt.AssignmentID)
	if !offered {
		if s.snapshotting {
			s.pending[evt.AssignmentID] = struct{}{}
		}
		return resultSkipped
	}
	if evt.ActorID != "" && evt.ActorID == s.workerID {
		return resultSkipped
	}
	if !s.trySend(evt) {
		return resultDropped
	}
	return resultDelivered
}

// completeSnapshot marks ids as offered, dropping the ones retracted meanwhile.
func (s *Subscriber) completeSnapshot(ids []string, tombstoned func(string) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, gone := s.pending[id]; gone {
			continue
		}
		if tombstoned(id) {
			continue
		}
		s.seen[id] = struct{}{}
		kept = append(kept, id)
	}
	s.snapshotting = false
	s.pending = make(map[string]struct{})
	return kept
}

// push sends a session-local frame (snapshot, pong, duty ack) through the same channel.
func (s *Subscriber) push(evt *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.trySend(evt)
}

func (s *Subscriber) trySend(evt *Event) bool {
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// close is idempotent.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type deliveryResult int

const (
	resultSkipped deliveryResult = iota
	resultDelivered
	resultDropped
)
