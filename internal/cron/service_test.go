package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foodway/foodway-backend/pkg/logger"
)

type fakeLock struct {
	held     map[string]bool
	err      error
	released []string
}

func newFakeLock() *fakeLock { return &fakeLock{held: map[string]bool{}} }

func (f *fakeLock) Acquire(_ context.Context, name string) (func(context.Context) error, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[name] {
		return nil, false, nil
	}
	f.held[name] = true
	return func(context.Context) error {
		delete(f.held, name)
		f.released = append(f.released, name)
		return nil
	}, true, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, registry *Registry, lock Lock, clock *fixedClock) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	registry := NewRegistry()
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	_ = registry.Register(success, "*/1 * * * *")
	_ = registry.Register(failure, "*/1 * * * *")
	lock := newFakeLock()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, lock, clock)

	if ran := service.runCycle(context.Background()); ran != 2 {
		t.Fatalf("expected 2 jobs to run, got %d", ran)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", success.runs, failure.runs)
	}
	if len(lock.released) != 2 {
		t.Fatalf("expected both locks released, got %v", lock.released)
	}
}

func TestServiceRunCycleHonoursSchedule(t *testing.T) {
	registry := NewRegistry()
	job := &testJob{name: "sweep"}
	_ = registry.Register(job, "*/10 * * * *")
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, newFakeLock(), clock)

	service.runCycle(context.Background())
	clock.now = clock.now.Add(5 * time.Minute)
	service.runCycle(context.Background())
	if job.runs != 1 {
		t.Fatalf("expected job to wait for its schedule, ran %d", job.runs)
	}
	clock.now = clock.now.Add(5 * time.Minute)
	service.runCycle(context.Background())
	if job.runs != 2 {
		t.Fatalf("expected second run at 10:10, ran %d", job.runs)
	}
}

func TestServiceSkipsJobHeldElsewhere(t *testing.T) {
	registry := NewRegistry()
	job := &testJob{name: "expiry"}
	_ = registry.Register(job, "*/1 * * * *")
	lock := newFakeLock()
	lock.held["expiry"] = true
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, lock, clock)

	if ran := service.runCycle(context.Background()); ran != 0 {
		t.Fatalf("expected no runs while lock held, got %d", ran)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
}

func TestServiceLockErrorSkipsJob(t *testing.T) {
	registry := NewRegistry()
	job := &testJob{name: "expiry"}
	_ = registry.Register(job, "*/1 * * * *")
	lock := newFakeLock()
	lock.err = errors.New("redis down")
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, lock, clock)

	service.runCycle(context.Background())
	if job.runs != 0 {
		t.Fatalf("job must not run when the lock errors")
	}
}

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (f funcJob) Name() string { return f.name }
func (f funcJob) Run(ctx context.Context) error { return f.run(ctx) }

func TestServiceRecoversPanickingJob(t *testing.T) {
	registry := NewRegistry()
	after := &testJob{name: "after"}
	_ = registry.Register(funcJob{name: "panics", run: func(context.Context) error { panic("nil map") }}, "*/1 * * * *")
	_ = registry.Register(after, "*/1 * * * *")
	lock := newFakeLock()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, lock, clock)

	if ran := service.runCycle(context.Background()); ran != 2 {
		t.Fatalf("expected both jobs to run, got %d", ran)
	}
	if after.runs != 1 {
		t.Fatalf("job after a panic must still run")
	}
	if len(lock.released) != 2 {
		t.Fatalf("expected locks released after panic, got %v", lock.released)
	}
}

func TestServiceAppliesJobTimeout(t *testing.T) {
	registry := NewRegistry()
	var deadline time.Time
	_ = registry.Register(funcJob{name: "expiry", run: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}}, "*/1 * * * *")
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   registry,
		Lock:       newFakeLock(),
		JobTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	service.runCycle(context.Background())
	if deadline.IsZero() || time.Until(deadline) > 30*time.Second {
		t.Fatalf("expected a 30s deadline, got %v", deadline)
	}
}

func TestServiceStopsCycleOnCancel(t *testing.T) {
	registry := NewRegistry()
	job := &testJob{name: "expiry"}
	_ = registry.Register(job, "*/1 * * * *")
	clock := &fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, newFakeLock(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("no job should start after cancel, ran %d", job.runs)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: newFakeLock()}); err == nil {
		t.Fatalf("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})}); err == nil {
		t.Fatalf("expected lock error")
	}
}

func TestLocalLockPreventsOverlap(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	release, ok, err := lock.Acquire(ctx, "job")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := lock.Acquire(ctx, "job"); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if _, ok, _ := lock.Acquire(ctx, "other"); !ok {
		t.Fatalf("expected distinct job lock to succeed")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := lock.Acquire(ctx, "job"); !ok {
		t.Fatalf("expected acquire after release")
	}
}
