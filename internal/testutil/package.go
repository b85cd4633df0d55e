// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

// ManifestOption adds fields to a fixture manifest.
type ManifestOption func(map[string]any)

// WithKey sets the manifest "key" field.
func WithKey(key string) ManifestOption {
	return func(m map[string]any) { m["key"] = key }
}

// WithBackgroundScripts sets app.background.scripts.
func WithBackgroundScripts(scripts ...string) ManifestOption {
	return func(m map[string]any) {
		m["app"] = map[string]any{"background": map[string]any{"scripts": scripts}}
	}
}

// WithField sets an arbitrary top-level field.
func WithField(name string, value any) ManifestOption {
	return func(m map[string]any) { m[name] = value }
}

// ManifestJSON renders a manifest.json document.
func ManifestJSON(t testing.TB, name, version string, opts ...ManifestOption) string {
	t.Helper()
	m := map[string]any{
		"manifest_version": 2,
		"name":             name,
		"version":          version,
	}
	for _, opt := range opts {
		opt(m)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	return string(data)
}

// WritePackage writes manifestJSON and files (relative path -> content)
// under dir and returns dir.
func WritePackage(t testing.TB, dir, manifestJSON string, files map[string]string) string {
	t.Helper()
	MustWriteFile(t, filepath.Join(dir, "manifest.json"), manifestJSON)
	for rel, content := range files {
		MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	}
	return dir
}
