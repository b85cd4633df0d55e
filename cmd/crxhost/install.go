// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/internal/issue"
)

func newInstallCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   "install <file.crx>",
		Short: "Unpack an app archive into the package store",
		Long: `Unpack an app archive into the package store.

CRX2, CRX3 and bare zip archives are accepted. The identifier comes from
--app-id, then the manifest key, then the archive header. Installing a
version that is already present keeps the existing copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return err
			}
			logger := app.newLogger(cfg, rootFlags.verbose, "install")
			store, err := app.storeFor(cfg, logger)
			if err != nil {
				return err
			}

			c, err := store.Install(cmd.Context(), args[0], appID)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("install app archive").
					WithResource(args[0]).
					WithSuggestion("Check that the file is a CRX or zip archive with manifest.json at its root").
					WithSuggestion("Pass --app-id when the archive carries no key").
					WithIssue(issue.InstallFailedId).
					Wrap(err).
					BuildError()
			}

			fmt.Fprintln(app.stdout, SuccessStyle.Render("Installed ")+c.Manifest.Name+" "+c.Version)
			fmt.Fprintln(app.stdout, field("id", c.ID.String()))
			fmt.Fprintln(app.stdout, field("dir", c.Dir))
			return nil
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", "identifier to install under")
	return cmd
}
