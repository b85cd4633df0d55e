// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateInactive is the initial state and the state after deactivation.
	StateInactive State = iota
	// StateActivating indicates Activate was called and setup is in progress.
	StateActivating
	// StateActive indicates the component is serving requests.
	StateActive
	// StateDeactivating indicates teardown is in progress.
	StateDeactivating
)

var (
	// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
	ErrInvalidState = errors.New("invalid state")
	// ErrTransition is the sentinel error wrapped by TransitionError.
	ErrTransition = errors.New("invalid lifecycle transition")
)

type (
	// State represents the lifecycle state of a component.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	// It wraps ErrInvalidState for errors.Is() compatibility.
	InvalidStateError struct {
		Value State
	}

	// TransitionError is returned when a lifecycle call is made from a state
	// that does not allow it.
	TransitionError struct {
		Op    string
		State State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=inactive, 1=activating, 2=active, 3=deactivating)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// Unwrap returns ErrTransition.
func (e *TransitionError) Unwrap() error {
	return ErrTransition
}

// Validate returns nil if the State is one of the defined lifecycle states,
// or an error wrapping ErrInvalidState if it is not.
func (s State) Validate() error {
	switch s {
	case StateInactive, StateActivating, StateActive, StateDeactivating:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsSettled reports whether no transition is in progress.
func (s State) IsSettled() bool {
	return s == StateInactive || s == StateActive
}
