// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/hostinfo"
	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/pkg/crxstore"
	"github.com/crxhost/crxhost/pkg/locator"
)

type (
	// selectFlags choose the package to operate on.
	selectFlags struct {
		appDir string
		appID  string
	}

	// resolution is everything a run needs to know before activation.
	resolution struct {
		App   *locator.ResolvedApp
		Host  *hostinfo.Info
		Store *crxstore.Store
	}
)

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.appDir, "app-dir", "", "run the unpacked app in this directory")
	cmd.Flags().StringVar(&f.appID, "app-id", "", "app identifier (default: derived from the manifest key, or app_id from host.toml)")
}

func newResolveCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	sel := &selectFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which app package a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}
			logger := app.newLogger(cfg, rootFlags.verbose, "resolve")
			res, err := app.resolve(cmd.Context(), cfg, sel, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, field("id", res.App.ID.String()))
			fmt.Fprintln(out, field("name", res.App.Manifest.Name))
			fmt.Fprintln(out, field("version", res.App.Manifest.Version))
			fmt.Fprintln(out, field("source", string(res.App.Source)))
			fmt.Fprintln(out, field("dir", res.App.Dir))
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

// storeFor opens the installed package store named by cfg.
func (a *App) storeFor(cfg *config.Config, logger *log.Logger) (*crxstore.Store, error) {
	root := cfg.StoreDir
	if root == "" {
		var err error
		if root, err = crxstore.DefaultRootWith(a.getenv); err != nil {
			return nil, fmt.Errorf("locate package store: %w", err)
		}
	}
	return crxstore.New(root, crxstore.WithLogger(logger.WithPrefix("store"))), nil
}

// resolve reads the host descriptor and runs the locator.
func (a *App) resolve(ctx context.Context, cfg *config.Config, sel *selectFlags, logger *log.Logger) (*resolution, error) {
	hostPath := a.hostFile(cfg)
	host, err := hostinfo.Load(hostPath)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read host descriptor").
			WithResource(hostPath).
			WithSuggestion("Check host.toml for unknown keys or a malformed value").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	id := sel.appID
	if id == "" && host.AppID != "" {
		id = host.AppID
		logger.Debug("using app id from host descriptor", "id", id, "file", hostPath)
	}

	store, err := a.storeFor(cfg, logger)
	if err != nil {
		return nil, err
	}

	resolved, err := locator.New(locator.WithLogger(logger.WithPrefix("locate"))).Locate(ctx, locator.Request{
		ExplicitDir: sel.appDir,
		ExplicitID:  id,
		EmbeddedDir: a.embeddedDir(cfg),
		Installed:   store,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("package resolved", "id", resolved.ID, "source", resolved.Source, "dir", resolved.Dir)
	return &resolution{App: resolved, Host: host, Store: store}, nil
}
