package engine

import (
	"errors"
	"fmt"
	"strings"
)

// State is the tracking lifecycle position.
type State int

const (
	Idle State = iota
	Tracking
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name for JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "idle":
		*s = Idle
	case "tracking":
		*s = Tracking
	case "paused":
		*s = Paused
	case "stopped":
		*s = Stopped
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Active reports whether a route is being recorded.
func (s State) Active() bool {
	return s == Tracking || s == Paused
}

var (
	// ErrCapabilityUnavailable means the position source refused to start.
	ErrCapabilityUnavailable = errors.New("position capability unavailable")
	// ErrInvalidTransition is wrapped by TransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNoPosition is returned by Annotate before any fix was accepted.
	ErrNoPosition = errors.New("no accepted position yet")
	// ErrClosed is returned once Shutdown has run.
	ErrClosed = errors.New("engine is shut down")
)

// TransitionError reports an operation attempted from the wrong state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func transitionErr(op string, state State) error {
	return &TransitionError{Op: op, State: state}
}
