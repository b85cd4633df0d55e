// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the command layer and the
// packages it drives. It imports only the standard library.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitOK is a clean shutdown.
	ExitOK ExitCode = 0
	// ExitFailure covers every failure without a dedicated code.
	ExitFailure ExitCode = 1
	// ExitManifestParse means the selected manifest could not be parsed.
	ExitManifestParse ExitCode = 2
	// ExitNoPackage means no source yielded an app package.
	ExitNoPackage ExitCode = 3
	// ExitMissingKey means a package was found but no identifier could be
	// resolved for it.
	ExitMissingKey ExitCode = 4
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the range 0-255.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether c is ExitOK.
func (c ExitCode) IsSuccess() bool { return c == ExitOK }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
