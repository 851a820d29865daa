package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

const (
	defaultQueueSize   = 256
	defaultWorkers     = 4
	defaultSendTimeout = 10 * time.Second
)

// DispatcherParams wires the async dispatcher.
type DispatcherParams struct {
	Notifier    Notifier
	Logger      *logger.Logger
	Metrics     *metrics.DispatchMetrics
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher decouples callers from notifier latency and failures. Enqueue never blocks;
// send errors are logged as notify.send_failed and never surface to the caller.
type Dispatcher struct {
	notifier    Notifier
	logg        *logger.Logger
	metrics     *metrics.DispatchMetrics
	queue       chan Message
	workers     int
	sendTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(p DispatcherParams) (*Dispatcher, error) {
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.QueueSize <= 0 {
		p.QueueSize = defaultQueueSize
	}
	if p.Workers <= 0 {
		p.Workers = defaultWorkers
	}
	if p.SendTimeout <= 0 {
		p.SendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		notifier:    p.Notifier,
		logg:        p.Logger,
		metrics:     p.Metrics,
		queue:       make(chan Message, p.QueueSize),
		workers:     p.Workers,
		sendTimeout: p.SendTimeout,
	}, nil
}

// Enqueue hands msg to the workers. It reports false when the queue is full or stopped.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logDrop(ctx, msg, "stopped")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logDrop(ctx, msg, "queue_full")
		return false
	}
}

// Run processes the queue until ctx is cancelled, then drains what is already queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range d.queue {
				d.deliver(msg)
			}
		}()
	}

	<-ctx.Done()
	d.mu.Lock()
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	wg.Wait()
	d.logg.Info(context.Background(), "notify dispatcher stopped")
	return nil
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err := d.notifier.Send(ctx, msg.To, msg.Subject, msg.Body)
	if err == nil {
		return
	}
	logCtx := d.logg.WithFields(ctx, d.fields(msg))
	if errors.Is(err, ErrNoAddress) {
		d.metrics.IncNotify("none", "no_address")
		d.logg.Warn(logCtx, "notify.no_address")
		return
	}
	d.logg.Error(logCtx, "notify.send_failed", err)
}

func (d *Dispatcher) logDrop(ctx context.Context, msg Message, reason string) {
	d.metrics.IncNotify("queue", reason)
	fields := d.fields(msg)
	fields["reason"] = reason
	d.logg.Warn(d.logg.WithFields(ctx, fields), "notify.dropped")
}

func (d *Dispatcher) fields(msg Message) map[string]any {
	fields := map[string]any{"subject": msg.Subject}
	for k, v := range msg.Tags {
		fields[k] = v
	}
	return fields
}
