// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/pkg/appid"
)

func newListCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "list <app-id>",
		Short: "List installed versions of an app",
		Long: `List the version directories installed for an app, highest first.

The version a run would pick is marked with '*'. Directories that fail to
load are listed but never picked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}
			store, err := app.storeFor(cfg, app.newLogger(cfg, rootFlags.verbose, "list"))
			if err != nil {
				return err
			}

			id := appid.ID(args[0])
			versions, err := store.Versions(id)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(app.stdout, WarningStyle.Render("No versions installed for")+" "+id.String())
				return nil
			}

			picked, err := store.Lookup(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, v := range versions {
				if picked != nil && picked.Version == v {
					fmt.Fprintln(app.stdout, SuccessStyle.Render("*")+" "+v)
					continue
				}
				fmt.Fprintln(app.stdout, "  "+v)
			}
			return nil
		},
	}
}
