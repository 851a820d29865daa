package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDispatchMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.IncClaim("won")
	m.IncClaim("won")
	m.IncClaim("already_claimed")
	m.IncOTP("delivery", "verify", "mismatch")
	m.AddBroadcast("assignment.created", "delivered", 3)
	m.AddBroadcast("assignment.created", "dropped", 0)
	m.IncNotify("", "failed")
	m.SetSessions(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "foodway_assignment_claims_total", "outcome", "won"); err != nil || got != 2 {
		t.Fatalf("expected won=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "foodway_broadcast_events_total", "result", "delivered"); err != nil || got != 3 {
		t.Fatalf("expected delivered=3, got %f err=%v", got, err)
	}
	if _, err := fetchCounterValue(mfs, "foodway_broadcast_events_total", "result", "dropped"); err == nil {
		t.Fatalf("zero adds should not create a series")
	}
	if got, err := fetchCounterValue(mfs, "foodway_notifications_total", "channel", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown channel=1, got %f err=%v", got, err)
	}
	if mf := findMetricFamily(mfs, "foodway_worker_sessions"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected sessions gauge 2")
	}
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.IncClaim("won")
	m.SetSessions(1)
	NewDispatchMetrics(nil).AddBroadcast("x", "y", 1)
}
