// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
	"github.com/crxhost/crxhost/pkg/types"
)

// ExitError carries a specific exit code out of a RunE handler.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps startup failures onto their documented exit codes.
func exitCodeFor(err error) types.ExitCode {
	var exitErr *ExitError
	switch {
	case err == nil:
		return types.ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, manifest.ErrManifestParse):
		return types.ExitManifestParse
	case errors.Is(err, locator.ErrNoPackageFound):
		return types.ExitNoPackage
	case errors.Is(err, appid.ErrMissingKey):
		return types.ExitMissingKey
	default:
		return types.ExitFailure
	}
}
