package enums

import "fmt"

// AssignmentState maps to the assignment_state enum in Postgres.
type AssignmentState string

const (
	AssignmentStateAvailable AssignmentState = "available"
	AssignmentStateClaimed   AssignmentState = "claimed"
	AssignmentStateDelivered AssignmentState = "delivered"
	AssignmentStateExpired   AssignmentState = "expired"
)

var validAssignmentStates = []AssignmentState{
	AssignmentStateAvailable,
	AssignmentStateClaimed,
	AssignmentStateDelivered,
	AssignmentStateExpired,
}

func (s AssignmentState) String() string {
	return string(s)
}

// IsValid checks whether the state matches the canonical enum.
func (s AssignmentState) IsValid() bool {
	for _, candidate := range validAssignmentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s AssignmentState) IsTerminal() bool {
	return s == AssignmentStateDelivered || s == AssignmentStateExpired
}

// CanTransitionTo encodes the assignment lifecycle:
// available -> claimed -> delivered, available -> expired.
func (s AssignmentState) CanTransitionTo(next AssignmentState) bool {
	switch s {
	case AssignmentStateAvailable:
		return next == AssignmentStateClaimed || next == AssignmentStateExpired
	case AssignmentStateClaimed:
		return next == AssignmentStateDelivered
	default:
		return false
	}
}

// ParseAssignmentState converts raw strings into AssignmentState.
func ParseAssignmentState(value string) (AssignmentState, error) {
	for _, candidate := range validAssignmentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment state %q", value)
}
