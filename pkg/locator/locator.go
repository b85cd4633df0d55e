// SPDX-License-Identifier: MPL-2.0

// Package locator selects the single app package a run operates on.
//
// Candidates come from three sources, in precedence order:
//
//  1. an explicit directory (--app-dir); always wins, never superseded
//  2. the embedded default bundle shipped with the host
//  3. the highest installed version for the resolved identifier
//
// An installed package supersedes the embedded bundle only when its version
// is strictly greater; the embedded bundle wins ties. The locator only reads:
// installation and unpacking belong to the store behind InstalledLookup.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/manifest"
	"github.com/crxhost/crxhost/pkg/version"
)

const (
	// SourceExplicit marks a package loaded from an explicit directory.
	SourceExplicit Source = "explicit"
	// SourceEmbedded marks the embedded default bundle.
	SourceEmbedded Source = "embedded"
	// SourceInstalled marks a previously installed (unpacked) package.
	SourceInstalled Source = "installed"
)

// ErrNoPackageFound is the sentinel error wrapped by NoPackageFoundError.
var ErrNoPackageFound = errors.New("no package found")

type (
	// Source identifies where a candidate package came from.
	Source string

	// Candidate is one discoverable, loadable package instance.
	Candidate struct {
		ID       appid.ID
		Version  string
		Dir      string
		Manifest *manifest.Manifest
	}

	// ResolvedApp is the package chosen for this run. It is never mutated
	// after Locate returns; reloading means relaunching the process.
	ResolvedApp struct {
		ID       appid.ID
		Manifest *manifest.Manifest
		// Dir is absolute and cleaned.
		Dir    string
		Source Source
	}

	// InstalledLookup queries previously installed packages. Implementations
	// must not modify the store. A nil candidate with a nil error means none
	// is installed for id.
	InstalledLookup interface {
		Lookup(ctx context.Context, id appid.ID) (*Candidate, error)
	}

	// LookupFunc adapts a function to InstalledLookup.
	LookupFunc func(ctx context.Context, id appid.ID) (*Candidate, error)

	// Request carries the inputs collected from the command line and the
	// packaging step. All fields are optional.
	Request struct {
		ExplicitDir string
		ExplicitID  string
		EmbeddedDir string
		Installed   InstalledLookup
	}

	// NoPackageFoundError is returned when no source yields a package. ID is
	// set when an identifier was resolved, so the caller can fetch and
	// install that app and retry.
	NoPackageFoundError struct {
		ID appid.ID
	}

	// Locator resolves packages. The zero value is not usable; call New.
	Locator struct {
		logger *log.Logger
	}

	// Option configures a Locator.
	Option func(*Locator)
)

// Error implements the error interface.
func (e *NoPackageFoundError) Error() string {
	if e.ID == "" {
		return "no app package found: give --app-dir or --app-id"
	}
	return fmt.Sprintf("no app package found for id %s", e.ID)
}

// Unwrap returns ErrNoPackageFound so callers can use errors.Is for programmatic detection.
func (e *NoPackageFoundError) Unwrap() error { return ErrNoPackageFound }

// Lookup calls f(ctx, id).
func (f LookupFunc) Lookup(ctx context.Context, id appid.ID) (*Candidate, error) {
	return f(ctx, id)
}

// WithLogger sets the logger used to report resolution decisions.
func WithLogger(l *log.Logger) Option {
	return func(loc *Locator) {
		loc.logger = l
	}
}

// New creates a Locator. Without WithLogger, decisions are discarded.
func New(opts ...Option) *Locator {
	loc := &Locator{}
	for _, opt := range opts {
		opt(loc)
	}
	if loc.logger == nil {
		loc.logger = log.New(io.Discard)
	}
	return loc
}

// Locate applies the precedence rules and returns the package to run.
//
// Errors:
//   - *manifest.ParseError when the explicit directory's manifest is invalid
//   - *appid.MissingKeyError / *appid.InvalidKeyError when a package was
//     selected but no identifier can be resolved for it
//   - *NoPackageFoundError when no source yields a package
func (l *Locator) Locate(ctx context.Context, req Request) (*ResolvedApp, error) {
	if req.ExplicitDir != "" {
		return l.locateExplicit(ctx, req)
	}

	baseline := l.embeddedCandidate(req.EmbeddedDir)

	var baselineManifest *manifest.Manifest
	if baseline != nil {
		baselineManifest = baseline.Manifest
	}

	id, idErr := appid.Resolve(req.ExplicitID, baselineManifest)
	if idErr != nil {
		if baseline == nil {
			return nil, &NoPackageFoundError{}
		}
		// A baseline exists but cannot be addressed without an id.
		return nil, idErr
	}

	var selected *Candidate
	if baseline != nil {
		baseline.ID = id
		selected = baseline
	}

	if installed := l.lookup(ctx, req.Installed, id); installed != nil {
		switch {
		case selected == nil:
			l.logger.Info("using installed package", "id", id, "version", installed.Version, "dir", installed.Dir)
			selected = installed
		case l.supersedes(selected, installed):
			l.logger.Info("installed package supersedes embedded bundle",
				"id", id, "embedded", selected.Version, "installed", installed.Version)
			selected = installed
		default:
			l.logger.Debug("keeping embedded bundle", "id", id, "embedded", selected.Version, "installed", installed.Version)
		}
	}

	if selected == nil {
		return nil, &NoPackageFoundError{ID: id}
	}

	source := SourceInstalled
	if selected == baseline {
		source = SourceEmbedded
	}
	return newResolved(id, selected, source)
}

func (l *Locator) locateExplicit(ctx context.Context, req Request) (*ResolvedApp, error) {
	m, err := manifest.Load(req.ExplicitDir)
	if err != nil {
		return nil, err
	}

	id, err := appid.Resolve(req.ExplicitID, m)
	if err != nil {
		return nil, err
	}

	if installed := l.lookup(ctx, req.Installed, id); installed != nil {
		if up, _ := version.IsUpgrade(m.Version, installed.Version); up {
			l.logger.Info("ignoring newer installed package for explicit directory",
				"id", id, "explicit", m.Version, "installed", installed.Version)
		}
	}

	return newResolved(id, &Candidate{ID: id, Version: m.Version, Dir: req.ExplicitDir, Manifest: m}, SourceExplicit)
}

// embeddedCandidate returns the embedded bundle when it exists and its
// manifest parses. A broken bundle is reported and skipped.
func (l *Locator) embeddedCandidate(dir string) *Candidate {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		l.logger.Debug("no embedded bundle", "dir", dir)
		return nil
	}

	m, err := manifest.Load(dir)
	if err != nil {
		l.logger.Warn("skipping embedded bundle", "dir", dir, "err", err)
		return nil
	}

	l.logger.Debug("embedded bundle found", "dir", dir, "version", m.Version)
	return &Candidate{Version: m.Version, Dir: dir, Manifest: m}
}

// lookup queries the store and treats failures as "not installed": a broken
// store must not prevent running an embedded or explicit package.
func (l *Locator) lookup(ctx context.Context, installed InstalledLookup, id appid.ID) *Candidate {
	if installed == nil || id == "" {
		return nil
	}
	c, err := installed.Lookup(ctx, id)
	if err != nil {
		l.logger.Warn("installed package lookup failed", "id", id, "err", err)
		return nil
	}
	if c == nil || c.Manifest == nil {
		return nil
	}
	if c.Version == "" {
		c.Version = c.Manifest.Version
	}
	return c
}

func (l *Locator) supersedes(current, candidate *Candidate) bool {
	up, err := version.IsUpgrade(current.Version, candidate.Version)
	if err != nil {
		l.logger.Warn("cannot compare package versions", "current", current.Version, "candidate", candidate.Version, "err", err)
		return false
	}
	return up
}

func newResolved(id appid.ID, c *Candidate, source Source) (*ResolvedApp, error) {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve package directory %s: %w", c.Dir, err)
	}
	return &ResolvedApp{
		ID:       id,
		Manifest: c.Manifest,
		Dir:      filepath.Clean(dir),
		Source:   source,
	}, nil
}
