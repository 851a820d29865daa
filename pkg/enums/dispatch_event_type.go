package enums

// DispatchEventType names the frames pushed to worker sessions.
type DispatchEventType string

const (
	DispatchEventAssignmentCreated DispatchEventType = "assignment.created"
	DispatchEventAssignmentClaimed DispatchEventType = "assignment.claimed"
	DispatchEventAssignmentExpired DispatchEventType = "assignment.expired"
	DispatchEventSnapshot          DispatchEventType = "assignments.snapshot"
	DispatchEventDutyChanged       DispatchEventType = "duty.changed"
	DispatchEventPong              DispatchEventType = "pong"
	DispatchEventError             DispatchEventType = "error"
)

func (t DispatchEventType) String() string {
	return string(t)
}

// IsRetraction reports whether the event withdraws a previously offered assignment.
func (t DispatchEventType) IsRetraction() bool {
	return t == DispatchEventAssignmentClaimed || t == DispatchEventAssignmentExpired
}
