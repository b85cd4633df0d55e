// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("unexpected EOF")
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "start bridge"}, "failed to start bridge"},
		{"with resource", &ActionableError{Operation: "read host descriptor", Resource: "host.toml"}, "failed to read host descriptor: host.toml"},
		{"with cause", &ActionableError{Operation: "install app archive", Cause: cause}, "failed to install app archive: unexpected EOF"},
		{"everything", &ActionableError{Operation: "install app archive", Resource: "app.crx", Cause: cause}, "failed to install app archive: app.crx: unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().WithOperation("load manifest").Wrap(fmt.Errorf("open: %w", fs.ErrNotExist)).BuildError()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is should see through ActionableError, got %v", err)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("load configuration").
		WithResource("config.cue").
		WithSuggestion("Check the CUE syntax").
		WithSuggestion("Run 'crxhost config show'").
		Wrap(fmt.Errorf("decode: %w", errors.New("field not allowed"))).
		Build()

	quiet := err.Format(false)
	for _, want := range []string{"failed to load configuration: config.cue", "  • Check the CUE syntax", "  • Run 'crxhost config show'"} {
		if !strings.Contains(quiet, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, quiet)
		}
	}
	if strings.Contains(quiet, "Error chain") {
		t.Error("Format(false) should not show the error chain")
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. decode: field not allowed", "2. field not allowed"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should be nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil interface", err)
	}

	ctx := NewErrorContext().WithOperation("install").WithSuggestion("first")
	a := ctx.Build()
	ctx.WithSuggestion("second")
	if len(a.Suggestions) != 1 {
		t.Errorf("built error shares suggestions with its builder: %v", a.Suggestions)
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	inner := NewErrorContext().WithOperation("parse").WithIssue(ManifestParseErrorId).Wrap(errors.New("x")).BuildError()
	outer := NewErrorContext().WithOperation("start").Wrap(fmt.Errorf("locate: %w", inner)).BuildError()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"nil", nil, 0},
		{"plain", errors.New("plain"), 0},
		{"direct", inner, ManifestParseErrorId},
		{"nested", outer, ManifestParseErrorId},
		{"outer wins", NewErrorContext().WithOperation("install").WithIssue(InstallFailedId).Wrap(inner).BuildError(), InstallFailedId},
	}
	for _, tt := range tests {
		if got := IssueOf(tt.err); got != tt.want {
			t.Errorf("%s: IssueOf() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
