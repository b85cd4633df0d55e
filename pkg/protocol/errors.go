// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is the sentinel error wrapped by AlreadyActiveError.
	ErrAlreadyActive = errors.New("protocol already active")
	// ErrNamespaceMismatch is the sentinel error wrapped by NamespaceMismatchError.
	ErrNamespaceMismatch = errors.New("namespace mismatch")
	// ErrResourceUnavailable is the sentinel error wrapped by ResourceUnavailableError.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInactive is the sentinel error wrapped by InactiveError.
	ErrInactive = errors.New("protocol inactive")

	errOutsideRoot = errors.New("path escapes package root")
)

type (
	// AlreadyActiveError is returned when a scheme is already registered or
	// a Server is activated twice.
	AlreadyActiveError struct {
		Scheme string
	}

	// NamespaceMismatchError is returned for addresses outside the active
	// app's scheme and namespace. Such requests never touch the cache.
	NamespaceMismatchError struct {
		Address string
		Want    string
	}

	// ResourceUnavailableError is the single failure kind for resource reads.
	// Err keeps the underlying cause for logging; callers should not branch
	// on it.
	ResourceUnavailableError struct {
		Address string
		Err     error
	}

	// InactiveError is returned when no active handler serves a scheme.
	InactiveError struct {
		Scheme string
	}
)

// Error implements the error interface.
func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("protocol %q is already active", e.Scheme)
}

// Unwrap returns ErrAlreadyActive so callers can use errors.Is for programmatic detection.
func (e *AlreadyActiveError) Unwrap() error { return ErrAlreadyActive }

// Error implements the error interface.
func (e *NamespaceMismatchError) Error() string {
	return fmt.Sprintf("address %q is outside namespace %q", e.Address, e.Want)
}

// Unwrap returns ErrNamespaceMismatch so callers can use errors.Is for programmatic detection.
func (e *NamespaceMismatchError) Unwrap() error { return ErrNamespaceMismatch }

// Error implements the error interface.
func (e *ResourceUnavailableError) Error() string {
	return fmt.Sprintf("resource %s unavailable", e.Address)
}

// Unwrap returns ErrResourceUnavailable only. The cause is deliberately not
// part of the chain.
func (e *ResourceUnavailableError) Unwrap() error { return ErrResourceUnavailable }

// Error implements the error interface.
func (e *InactiveError) Error() string {
	if e.Scheme == "" {
		return "protocol is not active"
	}
	return fmt.Sprintf("protocol %q is not active", e.Scheme)
}

// Unwrap returns ErrInactive so callers can use errors.Is for programmatic detection.
func (e *InactiveError) Unwrap() error { return ErrInactive }
