package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/foodway/foodway-backend/pkg/metrics"
)

// Multi fans a message out to every channel able to reach the recipient.
// Failures of individual channels are combined; the others still send.
type Multi struct {
	channels []Channel
	metrics  *metrics.DispatchMetrics
}

func NewMulti(m *metrics.DispatchMetrics, channels ...Channel) *Multi {
	kept := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &Multi{channels: kept, metrics: m}
}

// Channels returns the configured channel names.
func (m *Multi) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (m *Multi) Send(ctx context.Context, to Recipient, subject, body string) error {
	var (
		errs      error
		attempted int
	)
	for _, ch := range m.channels {
		if !ch.Accepts(to) {
			continue
		}
		attempted++
		if err := ch.Send(ctx, to, subject, body); err != nil {
			m.metrics.IncNotify(ch.Name(), "failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		m.metrics.IncNotify(ch.Name(), "sent")
	}
	if attempted == 0 {
		return ErrNoAddress
	}
	return errs
}
