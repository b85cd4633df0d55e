// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/pkg/types"
)

var (
	// Version is the host version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags of one command tree.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	root, _ := newRootCommand(app)
	return root
}

func newRootCommand(app *App) (*cobra.Command, *rootFlagValues) {
	flags := &rootFlagValues{}

	root := &cobra.Command{
		Use:   "crxhost",
		Short: "Run packaged web apps outside the browser",
		Long: TitleStyle.Render("crxhost") + SubtitleStyle.Render(" - run packaged web apps outside the browser") + `

crxhost picks one app package (an explicit directory, the bundle shipped
beside the binary, or the newest installed archive), derives its identifier
and serves its files under a private resource scheme.

` + SubtitleStyle.Render("Examples:") + `
  crxhost run --app-dir ./my-app       Run an unpacked app directory
  crxhost run --app-id gidgenkbbabolejbgbpnhbimgjbffefm
  crxhost install vysor.crx            Unpack an archive into the store
  crxhost id ./my-app                  Print the identifier derived from the key
  crxhost config show                  Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is <config dir>/crxhost/config.cue)")

	root.AddCommand(
		newRunCommand(app, flags),
		newResolveCommand(app, flags),
		newIDCommand(app),
		newInstallCommand(app, flags),
		newListCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return root, flags
}

// loadConfig loads configuration honoring --config.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, withIssue(issue.ConfigLoadFailedId, err)
	}
	return cfg, nil
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command line and exits with the mapped exit code.
func Execute() {
	app := NewApp(Dependencies{})
	os.Exit(int(execute(context.Background(), app, os.Args[1:])))
}

func execute(ctx context.Context, app *App, args []string) types.ExitCode {
	app.args = args
	root, flags := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	err := fang.Execute(ctx, root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, flags.verbose)
		}),
	)
	return exitCodeFor(err)
}
