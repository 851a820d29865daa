package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics covers claims, OTP outcomes, broadcast fan-out and notifications.
type DispatchMetrics struct {
	claims    *prometheus.CounterVec
	otp       *prometheus.CounterVec
	broadcast *prometheus.CounterVec
	notify    *prometheus.CounterVec
	sessions  prometheus.Gauge
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodway_assignment_claims_total",
		Help: "Claim attempts by outcome.",
	}, []string{"outcome"})
	otp := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodway_otp_operations_total",
		Help: "OTP issue and verify operations by purpose and outcome.",
	}, []string{"purpose", "operation", "outcome"})
	broadcast := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodway_broadcast_events_total",
		Help: "Broadcast events by type and result (published, delivered, dropped, suppressed).",
	}, []string{"event", "result"})
	notify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodway_notifications_total",
		Help: "Notification sends by channel and result.",
	}, []string{"channel", "result"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "foodway_worker_sessions",
		Help: "Live worker sessions attached to the broadcaster.",
	})
	reg.MustRegister(claims, otp, broadcast, notify, sessions)
	return &DispatchMetrics{
		claims:    claims,
		otp:       otp,
		broadcast: broadcast,
		notify:    notify,
		sessions:  sessions,
	}
}

func (d *DispatchMetrics) IncClaim(outcome string) {
	if d == nil || d.claims == nil {
		return
	}
	d.claims.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (d *DispatchMetrics) IncOTP(purpose, operation, outcome string) {
	if d == nil || d.otp == nil {
		return
	}
	d.otp.WithLabelValues(normalizeLabel(purpose), normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (d *DispatchMetrics) AddBroadcast(event, result string, n int) {
	if d == nil || d.broadcast == nil || n <= 0 {
		return
	}
	d.broadcast.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Add(float64(n))
}

func (d *DispatchMetrics) IncNotify(channel, result string) {
	if d == nil || d.notify == nil {
		return
	}
	d.notify.WithLabelValues(normalizeLabel(channel), normalizeLabel(result)).Inc()
}

func (d *DispatchMetrics) SetSessions(n int) {
	if d == nil || d.sessions == nil {
		return
	}
	d.sessions.Set(float64(n))
}
