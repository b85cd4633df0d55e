// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/internal/bridge"
	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/internal/plugins"
	"github.com/crxhost/crxhost/internal/watch"
	"github.com/crxhost/crxhost/pkg/protocol"
)

// errRelaunch ends a watched run so the process can start over.
var errRelaunch = errors.New("app changed")

type runFlagValues struct {
	selectFlags
	listen string
	watch  bool
	silent bool
}

func newRunCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &runFlagValues{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve the app package and serve it until interrupted",
		Long: `Resolve the app package and serve it until interrupted.

The package comes from --app-dir when given. Otherwise the bundle shipped
beside the binary is used, unless a strictly newer version of the same app
is installed in the package store.

Resources are served over HTTP at http://<listen>/app/<id>/<path>. With
--watch, any change under the app directory relaunches the host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}
			return app.runHost(cmd.Context(), cfg, rootFlags, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.listen, "listen", "", "bridge listen address (default from config)")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "relaunch when files in the app directory change")
	cmd.Flags().BoolVar(&flags.silent, "silent", false, "start without announcing the background page")
	return cmd
}

func (a *App) runHost(ctx context.Context, cfg *config.Config, rootFlags *rootFlagValues, flags *runFlagValues) error {
	logger := a.newLogger(cfg, rootFlags.verbose, "crxhost")

	res, err := a.resolve(ctx, cfg, &flags.selectFlags, logger)
	if err != nil {
		return err
	}
	logger.Info("starting app", "name", res.App.Manifest.Name, "version", res.App.Manifest.Version,
		"id", res.App.ID, "source", res.App.Source)

	registrations := plugins.NewRegistrar(plugins.WithLogger(logger.WithPrefix("plugins"))).
		Plugins(res.App.Dir, res.App.Manifest)
	if len(registrations) > 0 {
		logger.Info("plugin registrations", "flag", plugins.JoinFlags(registrations))
	}
	if feed := res.Host.FeedURL(runtime.GOOS, runtime.GOARCH, Version); feed != "" {
		logger.Info("update feed", "url", feed)
	}

	registry := protocol.NewRegistry()
	srv := protocol.NewServer(registry,
		protocol.WithScheme(cfg.Scheme),
		protocol.WithLogger(logger.WithPrefix("protocol")),
	)
	if err := srv.Activate(ctx, res.App); err != nil {
		return withIssue(issue.ProtocolActivationFailedId, err)
	}
	defer srv.Deactivate()

	br := bridge.New(registry,
		bridge.WithScheme(cfg.Scheme),
		bridge.WithLogger(logger.WithPrefix("bridge")),
		bridge.WithMetrics(bridge.NewMetrics(srv.Stats)),
	)
	listen := flags.listen
	if listen == "" {
		listen = cfg.Listen.String()
	}
	if err := br.Start(ctx, listen); err != nil {
		return withIssue(issue.ListenFailedId, err)
	}
	stopBridge := func() {
		if err := br.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("bridge shutdown", "err", err)
		}
	}
	defer stopBridge()

	if !flags.silent {
		page := fmt.Sprintf("http://%s/app/%s/%s", br.Addr(), res.App.ID, protocol.BackgroundPagePath)
		fmt.Fprintln(a.stdout, field("background page", page))
	}

	if !flags.watch {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	if err := a.watchApp(ctx, cfg, res.App.Dir, logger); !errors.Is(err, errRelaunch) {
		return err
	}

	// exec does not run deferred calls.
	stopBridge()
	srv.Deactivate()
	logger.Info("relaunching")
	return a.relaunch(context.WithoutCancel(ctx), a.args)
}

// watchApp blocks until ctx is done (nil) or something under dir changes
// (errRelaunch).
func (a *App) watchApp(ctx context.Context, cfg *config.Config, dir string, logger *log.Logger) error {
	debounce, err := cfg.Watch.DebounceDuration()
	if err != nil {
		return err
	}
	w, err := watch.New(dir, func(_ context.Context, changed []string) error {
		logger.Info("app changed", "files", changed)
		return errRelaunch
	},
		watch.WithIgnore(cfg.Watch.Ignore...),
		watch.WithDebounce(debounce),
		watch.WithLogger(logger.WithPrefix("watch")),
	)
	if err != nil {
		return err
	}
	logger.Info("watching for changes", "dir", w.Dir())
	return w.Run(ctx)
}
