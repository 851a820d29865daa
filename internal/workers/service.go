package workers

import (
	"context"
	"strings"

	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// SessionToggler mirrors duty changes onto the worker's live session, if any.
type SessionToggler interface {
	ToggleDuty(workerID string, onDuty bool) bool
}

type Service interface {
	SetOnDuty(ctx context.Context, workerID string, onDuty bool) (*DutyStatus, error)
	IsOnDuty(ctx context.Context, workerID string) (bool, error)
}

type DutyStatus struct {
	WorkerID         string `json:"workerId"`
	OnDuty           bool   `json:"onDuty"`
	SessionConnected bool   `json:"sessionConnected"`
}

type service struct {
	roster   Roster
	sessions SessionToggler
	logg     *logger.Logger
}

func NewService(roster Roster, sessions SessionToggler, logg *logger.Logger) (Service, error) {
	if roster == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "duty roster required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{roster: roster, sessions: sessions, logg: logg}, nil
}

func (s *service) SetOnDuty(ctx context.Context, workerID string, onDuty bool) (*DutyStatus, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	if err := s.roster.SetOnDuty(ctx, workerID, onDuty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store duty flag")
	}

	connected := false
	if s.sessions != nil {
		connected = s.sessions.ToggleDuty(workerID, onDuty)
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithWorkerID(ctx, workerID), map[string]any{
		"on_duty":           onDuty,
		"session_connected": connected,
	}), "worker.duty_changed")
	return &DutyStatus{WorkerID: workerID, OnDuty: onDuty, SessionConnected: connected}, nil
}

func (s *service) IsOnDuty(ctx context.Context, workerID string) (bool, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	onDuty, err := s.roster.IsOnDuty(ctx, workerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load duty flag")
	}
	return onDuty, nil
}
