// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/internal/testutil"
)

func load(t *testing.T, opts LoadOptions) (*Config, error) {
	t.Helper()
	return NewProvider().Load(context.Background(), opts)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), `
scheme: "crx-app"
store_dir: "/var/lib/crxhost"
listen: "127.0.0.1:9000"
watch: {
	debounce: "1s"
	ignore: ["**/node_modules/**"]
}
log: {
	level: "debug"
	verbose: true
}
`)

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}
	cfg := loaded.Config
	if loaded.Path != filepath.Join(dir, "config.cue") {
		t.Errorf("Path = %q", loaded.Path)
	}

	want := DefaultConfig()
	want.Scheme = "crx-app"
	want.StoreDir = "/var/lib/crxhost"
	want.Listen = "127.0.0.1:9000"
	want.Watch = WatchConfig{Debounce: "1s", Ignore: []string{"**/node_modules/**"}}
	want.Log = LogConfig{Level: LogLevelDebug, Verbose: true}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{"unknown field", `colour: "red"`, "colour"},
		{"bad level", `log: level: "loud"`, "level"},
		{"bad scheme", `scheme: "Not A Scheme"`, "scheme"},
		{"bad debounce", `watch: debounce: "soon"`, "debounce"},
		{"bad listen", `listen: "nowhere"`, "listen"},
		{"syntax", `scheme: `, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "custom.cue")
			testutil.MustWriteFile(t, path, tt.content)

			_, err := load(t, LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() returned nil error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Errorf("error should be actionable, got %T", err)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should mention %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := load(t, LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CRXHOST_LISTEN", "127.0.0.1:8123")
	t.Setenv("CRXHOST_LOG_LEVEL", "warn")

	cfg, err := load(t, LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8123" {
		t.Errorf("Listen = %q, want env override", cfg.Listen)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StoreDir = "/srv/store"
	cfg.Log.Verbose = true

	path := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, path, GenerateCUE(cfg))

	got, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of generated config error: %v\n%s", err, GenerateCUE(cfg))
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		valid bool
		want  log.Level
	}{
		{LogLevelDebug, true, log.DebugLevel},
		{LogLevelInfo, true, log.InfoLevel},
		{LogLevelWarn, true, log.WarnLevel},
		{LogLevelError, true, log.ErrorLevel},
		{"trace", false, log.InfoLevel},
	}

	for _, tt := range tests {
		ok, errs := tt.level.IsValid()
		if ok != tt.valid {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, ok, tt.valid)
		}
		if !ok && !errors.Is(errs[0], ErrInvalidLogLevel) {
			t.Errorf("LogLevel(%q) error should wrap ErrInvalidLogLevel", tt.level)
		}
		if got := tt.level.Level(); got != tt.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestWatchConfig_DebounceDuration(t *testing.T) {
	t.Parallel()

	if d, err := (WatchConfig{}).DebounceDuration(); err != nil || d != 300*time.Millisecond {
		t.Errorf("default debounce = (%v, %v)", d, err)
	}
	if _, err := (WatchConfig{Debounce: "0s"}).DebounceDuration(); !errors.Is(err, ErrInvalidDebounce) {
		t.Errorf("zero debounce error = %v, want ErrInvalidDebounce", err)
	}
}
