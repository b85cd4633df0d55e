// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/crxhost/crxhost/pkg/cueutil"
	"github.com/crxhost/crxhost/pkg/version"
)

// FileName is the descriptor file name inside a package directory.
const FileName = "manifest.json"

//go:embed manifest_schema.cue
var schema []byte

// ErrManifestParse is the sentinel error wrapped by ParseError.
var ErrManifestParse = errors.New("manifest parse failed")

type (
	// Manifest is the typed view of manifest.json. Values returned by Parse
	// and Load are treated as immutable; accessors return copies.
	Manifest struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Key         string            `json:"key,omitempty"`
		Icons       map[string]string `json:"icons,omitempty"`
		Background  *Background       `json:"background,omitempty"`
		App         *App              `json:"app,omitempty"`
		NaClModules []NaClModule      `json:"nacl_modules,omitempty"`
	}

	// App holds the packaged-app section of a manifest.
	App struct {
		Background *Background `json:"background,omitempty"`
	}

	// Background lists the scripts loaded into the generated background page.
	Background struct {
		Scripts []string `json:"scripts,omitempty"`
		Page    string   `json:"page,omitempty"`
	}

	// NaClModule maps a native client manifest (.nmf) to the MIME type the
	// plugin handles.
	NaClModule struct {
		Path     string `json:"path,omitempty"`
		MIMEType string `json:"mime_type,omitempty"`
	}

	// ParseError is returned when a manifest cannot be read, is not valid
	// JSON, or violates the schema. It wraps ErrManifestParse and the cause.
	ParseError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse manifest: %v", e.Err)
	}
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrManifestParse and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrManifestParse, e.Err} }

// Parse decodes and validates manifest bytes. filename is used in error messages.
func Parse(data []byte, filename string) (*Manifest, error) {
	if filename == "" {
		filename = FileName
	}

	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest",
		cueutil.WithFilename(filename),
		cueutil.WithJSON(),
	)
	if err != nil {
		return nil, &ParseError{Path: filename, Err: err}
	}

	// The schema pattern accepts components too large for the comparator.
	if _, err := version.Parse(res.Value.Version); err != nil {
		return nil, &ParseError{Path: filename, Err: err}
	}

	return res.Value, nil
}

// Load reads and parses <dir>/manifest.json.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return Parse(data, path)
}

// BackgroundScripts returns the ordered background scripts. The packaged-app
// form (app.background.scripts) takes precedence over the extension form.
func (m *Manifest) BackgroundScripts() []string {
	if m.App != nil && m.App.Background != nil && len(m.App.Background.Scripts) > 0 {
		return slices.Clone(m.App.Background.Scripts)
	}
	if m.Background != nil {
		return slices.Clone(m.Background.Scripts)
	}
	return nil
}

// Icon returns the relative icon path for a pixel size, if declared.
func (m *Manifest) Icon(size int) (string, bool) {
	p, ok := m.Icons[fmt.Sprint(size)]
	return p, ok && p != ""
}

// HasKey reports whether the manifest embeds public-key material.
func (m *Manifest) HasKey() bool {
	return m != nil && m.Key != ""
}
