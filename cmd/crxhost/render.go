// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
)

// issueError tags an error with the catalog entry that explains it.
type issueError struct {
	id  issue.Id
	err error
}

func (e *issueError) Error() string { return e.err.Error() }

func (e *issueError) Unwrap() error { return e.err }

func withIssue(id issue.Id, err error) error {
	if err == nil {
		return nil
	}
	return &issueError{id: id, err: err}
}

// issueFor picks the catalog entry for err, or 0 when none applies.
func issueFor(err error) issue.Id {
	if id := issue.IssueOf(err); id != 0 {
		return id
	}
	var ie *issueError
	switch {
	case errors.As(err, &ie):
		return ie.id
	case errors.Is(err, manifest.ErrManifestParse):
		return issue.ManifestParseErrorId
	case errors.Is(err, locator.ErrNoPackageFound):
		return issue.NoPackageFoundId
	case errors.Is(err, appid.ErrMissingKey):
		return issue.MissingKeyId
	default:
		return 0
	}
}

// formatErrorForDisplay formats an error for the user. ActionableErrors
// render their suggestions; verbose mode shows the whole chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderError writes err to w. In verbose mode the matching catalog entry is
// rendered as markdown below it.
func renderError(w io.Writer, err error, verbose bool) {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	if !verbose {
		return
	}
	id := issueFor(err)
	if id == 0 {
		return
	}
	iss := issue.Get(id)
	if iss == nil {
		return
	}
	if rendered, renderErr := iss.Render("dark"); renderErr == nil {
		fmt.Fprint(w, rendered)
	}
}
