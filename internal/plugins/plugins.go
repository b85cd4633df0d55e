// SPDX-License-Identifier: MPL-2.0

// Package plugins turns the nacl_modules of a manifest into pepper plugin
// registrations for the rendering surface.
//
// Each module points at a native client manifest (.nmf). Only host
// toolchains are supported: the "program" map of the .nmf is keyed by
// mac, windows or linux and names the plugin binary relative to the .nmf.
package plugins

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/crxhost/crxhost/pkg/cueutil"
	"github.com/crxhost/crxhost/pkg/manifest"
)

//go:embed nmf_schema.cue
var nmfSchema []byte

type (
	// Plugin is one registration: a plugin binary and the MIME type it handles.
	Plugin struct {
		Path     string
		MIMEType string
	}

	// NMF is the typed view of a native client manifest.
	NMF struct {
		Program map[string]Program `json:"program"`
	}

	// Program is one toolchain entry of an NMF.
	Program struct {
		URL string `json:"url,omitempty"`
	}

	// Registrar computes plugin registrations for one host OS.
	Registrar struct {
		goos   string
		logger *log.Logger
	}

	// Option configures a Registrar.
	Option func(*Registrar)
)

var hostToolchains = map[string]string{
	"darwin":  "mac",
	"windows": "windows",
	"linux":   "linux",
}

// HostToolchain maps a GOOS value onto the .nmf program key.
func HostToolchain(goos string) (string, bool) {
	t, ok := hostToolchains[goos]
	return t, ok
}

// WithGOOS overrides runtime.GOOS.
func WithGOOS(goos string) Option {
	return func(r *Registrar) {
		r.goos = goos
	}
}

// WithLogger sets the logger used to report skipped modules.
func WithLogger(l *log.Logger) Option {
	return func(r *Registrar) {
		r.logger = l
	}
}

// NewRegistrar creates a Registrar for the running OS unless WithGOOS is given.
func NewRegistrar(opts ...Option) *Registrar {
	r := &Registrar{goos: runtime.GOOS}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Flag renders the registration as "<path>;<mime type>".
func (p Plugin) Flag() string {
	return p.Path + ";" + p.MIMEType
}

// JoinFlags renders plugins as one comma separated switch value.
func JoinFlags(plugins []Plugin) string {
	flags := make([]string, len(plugins))
	for i, p := range plugins {
		flags[i] = p.Flag()
	}
	return strings.Join(flags, ",")
}

// Plugins returns the registrations for the modules declared in m, whose
// package lives in dir. Modules that cannot be registered are logged and
// skipped; an unsupported host yields no plugins.
func (r *Registrar) Plugins(dir string, m *manifest.Manifest) []Plugin {
	if m == nil || len(m.NaClModules) == 0 {
		return nil
	}

	host, ok := HostToolchain(r.goos)
	if !ok {
		r.logger.Warn("not loading plugins, unknown host", "goos", r.goos)
		return nil
	}

	var out []Plugin
	for _, mod := range m.NaClModules {
		p, err := r.plugin(dir, host, mod)
		if err != nil {
			r.logger.Warn("skipping plugin", "module", mod.Path, "err", err)
			continue
		}
		r.logger.Info("plugin registered", "path", p.Path, "mime_type", p.MIMEType)
		out = append(out, p)
	}
	return out
}

func (r *Registrar) plugin(dir, host string, mod manifest.NaClModule) (Plugin, error) {
	if mod.Path == "" || mod.MIMEType == "" {
		return Plugin{}, fmt.Errorf("nacl module must have both path and mime_type")
	}

	nmfPath, err := inside(dir, mod.Path)
	if err != nil {
		return Plugin{}, err
	}
	nmf, err := LoadNMF(nmfPath)
	if err != nil {
		return Plugin{}, err
	}

	prog, ok := nmf.Program[host]
	if !ok {
		return Plugin{}, fmt.Errorf("%s: no %q program", mod.Path, host)
	}
	if prog.URL == "" {
		return Plugin{}, fmt.Errorf("%s: %q program has no url", mod.Path, host)
	}

	binary, err := inside(dir, filepath.ToSlash(filepath.Join(filepath.Dir(mod.Path), prog.URL)))
	if err != nil {
		return Plugin{}, err
	}
	return Plugin{Path: binary, MIMEType: mod.MIMEType}, nil
}

// LoadNMF reads and validates a native client manifest.
func LoadNMF(path string) (*NMF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read native manifest: %w", err)
	}
	res, err := cueutil.ParseAndDecode[NMF](nmfSchema, data, "#NMF", cueutil.WithFilename(path), cueutil.WithJSON())
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// inside joins a manifest-relative path onto dir and rejects results that
// leave dir.
func inside(dir, rel string) (string, error) {
	p := filepath.Join(dir, filepath.FromSlash(rel))
	r, err := filepath.Rel(dir, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q leaves the package directory", rel)
	}
	return p, nil
}
