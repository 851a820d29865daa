package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// ServiceParams configure the cron service. JobTimeout bounds one job run and should stay
// below the lock TTL so a slow run cannot overlap the next holder.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
	Now        func() time.Time
}

// Service checks the registry on a fixed tick and runs every job whose schedule is due.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
		now:        params.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run ticks until ctx is canceled. The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	names := make([]string, 0)
	for _, job := range s.registry.Jobs() {
		names = append(names, job.Name())
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":     names,
		"interval": s.interval.String(),
	}), "cron.started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns the number of jobs that ran.
func (s *Service) runCycle(ctx context.Context) int {
	ran := 0
	for _, job := range s.registry.due(s.now()) {
		if ctx.Err() != nil {
			break
		}
		if s.runLocked(ctx, job) {
			ran++
		}
	}
	return ran
}

func (s *Service) runLocked(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	release, ok, err := s.lock.Acquire(jobCtx, job.Name())
	switch {
	case err != nil:
		s.logg.Error(jobCtx, "cron.lock_failed", err)
		s.metrics.IncOutcome(job.Name(), metrics.CronOutcomeFailure)
		return false
	case !ok:
		s.logg.Debug(jobCtx, "cron.job_held_elsewhere")
		s.metrics.IncOutcome(job.Name(), metrics.CronOutcomeSkipped)
		return false
	}
	defer func() {
		if relErr := release(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Error(jobCtx, "cron.unlock_failed", relErr)
		}
	}()

	start := time.Now()
	err = s.runJob(jobCtx, job)
	duration := time.Since(start)
	s.metrics.ObserveRun(job.Name(), err, duration, s.now())

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
	} else {
		s.logg.Info(jobCtx, "cron.job_completed")
	}
	return true
}

// runJob applies the job timeout and turns a panic into an error so one bad job cannot
// stop the loop.
func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stack", string(debug.Stack())), "cron.job_panicked")
			err = fmt.Errorf("job %s panicked: %v", job.Name(), rec)
		}
	}()
	return job.Run(ctx)
}
