// Package runstate tracks the lifecycle state of sweep runs shared between the
// heartbeat poller and the dispatcher.
package runstate

import "errors"

// State is the lifecycle state of a run. Values match the backend's run
// status names.
type State string

const (
	Queued  State = "QUEUED"
	Running State = "RUNNING"
	Stopped State = "STOPPED"
	Errored State = "ERRORED"
	Done    State = "DONE"
)

// ErrInvalidTransition is returned when a write would move a run backwards or
// out of a stopped/terminal state.
var ErrInvalidTransition = errors.New("invalid run state transition")

// Terminal reports whether s is DONE or ERRORED.
func (s State) Terminal() bool {
	return s == Done || s == Errored
}

// Live reports whether s counts towards the heartbeat liveness report.
func (s State) Live() bool {
	return s == Queued || s == Running
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case Queued, Running, Stopped, Errored, Done:
		return true
	}
	return false
}

// CanTransition reports whether a run currently in from (or absent, when
// known is false) may move to to.
func CanTransition(from State, known bool, to State) bool {
	if !to.Valid() {
		return false
	}
	if !known {
		return to == Queued || to == Running || to == Stopped
	}
	switch from {
	case Queued:
		return to == Running || to == Stopped || to == Errored
	case Running:
		return to == Done || to == Errored || to == Stopped
	default:
		// STOPPED, DONE and ERRORED are final for this controller.
		return false
	}
}
