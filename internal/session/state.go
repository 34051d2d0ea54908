package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateAttached
	StateExporting
	StateDestroyed
	// StateUnavailable means the engine is missing or failed. Parameter
	// calls become local-only and exports are disabled.
	StateUnavailable
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateInitializing:  "initializing",
	StateReady:         "ready",
	StateAttached:      "attached",
	StateExporting:     "exporting",
	StateDestroyed:     "destroyed",
	StateUnavailable:   "unavailable",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrInvalidTransition marks a call made in a state that does not allow it.
// It indicates a bug in the caller, not an engine problem.
var ErrInvalidTransition = errors.New("invalid session transition")

// TransitionError reports which operation was refused and from which state.
type TransitionError struct {
	Op     string
	From   State
	Reason error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("session: %s from %s: %v", e.Op, e.From, ErrInvalidTransition)
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	return msg
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func (e *TransitionError) Unwrap() error { return e.Reason }
