// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/hostinfo"
)

const (
	// embeddedBundleDir is the default bundle shipped beside the binary.
	embeddedBundleDir = "unpacked-crx"
)

type (
	// App wires the services every command uses.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		getenv func(string) string
		// executable locates the running binary; the embedded bundle and
		// host.toml default to its directory.
		executable func() (string, error)
		// relaunch replaces the process with a fresh copy running args.
		relaunch func(ctx context.Context, args []string) error
		// args are the command line arguments of this invocation.
		args []string
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config     config.Provider
		Stdout     io.Writer
		Stderr     io.Writer
		Getenv     func(string) string
		Executable func() (string, error)
		Relaunch   func(ctx context.Context, args []string) error
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		getenv:     deps.Getenv,
		executable: deps.Executable,
		relaunch:   deps.Relaunch,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.getenv == nil {
		app.getenv = os.Getenv
	}
	if app.executable == nil {
		app.executable = os.Executable
	}
	if app.relaunch == nil {
		app.relaunch = relaunchProcess
	}
	return app
}

// newLogger returns a component logger on stderr at the configured level.
func (a *App) newLogger(cfg *config.Config, verbose bool, prefix string) *log.Logger {
	l := log.NewWithOptions(a.stderr, log.Options{Prefix: prefix})
	level := cfg.Log.Level.Level()
	if verbose || cfg.Log.Verbose {
		level = log.DebugLevel
	}
	l.SetLevel(level)
	return l
}

// besideExecutable returns name in the binary's directory, or name itself
// when the binary cannot be located.
func (a *App) besideExecutable(name string) string {
	exe, err := a.executable()
	if err != nil {
		return name
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// embeddedDir is the configured embedded bundle, defaulting to the one
// shipped beside the binary.
func (a *App) embeddedDir(cfg *config.Config) string {
	if cfg.EmbeddedDir != "" {
		return cfg.EmbeddedDir
	}
	return a.besideExecutable(embeddedBundleDir)
}

// hostFile is the configured host.toml. By default it sits beside the
// embedded bundle.
func (a *App) hostFile(cfg *config.Config) string {
	if cfg.HostFile != "" {
		return cfg.HostFile
	}
	return filepath.Join(filepath.Dir(a.embeddedDir(cfg)), hostinfo.FileName)
}
