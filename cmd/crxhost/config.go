// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/issue"
)

func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect crxhost configuration",
		Long: `Inspect crxhost configuration.

Configuration is read from config.cue in the crxhost config directory:
  - Linux: ~/.config/crxhost/config.cue
  - macOS: ~/Library/Application Support/crxhost/config.cue
  - Windows: %APPDATA%\crxhost\config.cue

Every key can be overridden with a CRXHOST_ environment variable, for
example CRXHOST_LISTEN or CRXHOST_LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: rootFlags.configPath})
			if err != nil {
				return withIssue(issue.ConfigLoadFailedId, err)
			}
			cfg := loaded.Config

			out := app.stdout
			fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
			fmt.Fprintln(out)
			if loaded.Path != "" {
				fmt.Fprintln(out, field("config file", loaded.Path))
			} else {
				fmt.Fprintln(out, KeyStyle.Render("config file")+": "+SubtitleStyle.Render("(using defaults)"))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, field("scheme", cfg.Scheme))
			fmt.Fprintln(out, field("listen", cfg.Listen.String()))
			fmt.Fprintln(out, field("store_dir", orDefault(cfg.StoreDir)))
			fmt.Fprintln(out, field("embedded_dir", app.embeddedDir(cfg)))
			fmt.Fprintln(out, field("host_file", app.hostFile(cfg)))
			fmt.Fprintln(out, field("watch.debounce", cfg.Watch.Debounce))
			fmt.Fprintln(out, field("watch.ignore", strings.Join(cfg.Watch.Ignore, ", ")))
			fmt.Fprintln(out, field("log.level", cfg.Log.Level.String()))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
