package cron

import (
	"context"
	"fmt"

	"github.com/foodway/foodway-backend/pkg/logger"
)

const assignmentExpiryJobName = "assignment-expiry"

type staleExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// AssignmentExpiryJob retracts available assignments nobody claimed within the dispatch window.
type AssignmentExpiryJob struct {
	logg        *logger.Logger
	assignments staleExpirer
}

func NewAssignmentExpiryJob(logg *logger.Logger, assignments staleExpirer) (*AssignmentExpiryJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if assignments == nil {
		return nil, fmt.Errorf("assignment service required")
	}
	return &AssignmentExpiryJob{logg: logg, assignments: assignments}, nil
}

func (j *AssignmentExpiryJob) Name() string { return assignmentExpiryJobName }

func (j *AssignmentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.assignments.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire stale assignments: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "stale assignments retracted")
	}
	return nil
}
