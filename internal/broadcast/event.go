package broadcast

import (
	"encoding/json"
	"time"

	"github.com/foodway/foodway-backend/pkg/enums"
)

// Event is one frame pushed to a worker session.
type Event struct {
	Type         enums.DispatchEventType `json:"type"`
	Timestamp    time.Time               `json:"ts"`
	AssignmentID string                  `json:"assignmentId,omitempty"`
	Data         json.RawMessage         `json:"data,omitempty"`

	// ActorID is the worker that caused a retraction; it never receives its own retraction.
	ActorID string `json:"-"`
}

// Created offers a new assignment; payload is the JSON view of the assignment.
func Created(assignmentID string, payload any, at time.Time) *Event {
	return &Event{
		Type:         enums.DispatchEventAssignmentCreated,
		Timestamp:    at.UTC(),
		AssignmentID: assignmentID,
		Data:         mustMarshal(payload),
	}
}

// Claimed retracts an assignment taken by workerID.
func Claimed(assignmentID, workerID string, at time.Time) *Event {
	return &Event{
		Type:         enums.DispatchEventAssignmentClaimed,
		Timestamp:    at.UTC(),
		AssignmentID: assignmentID,
		ActorID:      workerID,
	}
}

// Expired retracts an assignment whose dispatch deadline elapsed.
func Expired(assignmentID string, at time.Time) *Event {
	return &Event{
		Type:         enums.DispatchEventAssignmentExpired,
		Timestamp:    at.UTC(),
		AssignmentID: assignmentID,
	}
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// DutyPayload is the data of duty.changed frames.
type DutyPayload struct {
	OnDuty bool `json:"onDuty"`
}
