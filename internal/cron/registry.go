package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Job represents a scheduled task run by the API process.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// standard 5-field expressions plus descriptors such as "@every 30s"
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return scheduleParser.Parse(expr)
}

type entry struct {
	job      Job
	spec     string
	schedule cronlib.Schedule
	next     time.Time
}

// Registry tracks jobs with their schedules.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds job on the given cron expression. Jobs are due immediately after registration.
func (r *Registry) Register(job Job, spec string) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name(), spec, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &entry{job: job, spec: spec, schedule: schedule})
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// due returns jobs whose next run is at or before now and advances their schedule.
func (r *Registry) due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []Job
	for _, e := range r.entries {
		if e.next.After(now) {
			continue
		}
		jobs = append(jobs, e.job)
		e.next = e.schedule.Next(now)
	}
	return jobs
}
