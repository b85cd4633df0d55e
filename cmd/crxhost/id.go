// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/manifest"
)

func newIDCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "id <app-dir | manifest.json>",
		Short: "Print the identifier derived from a manifest key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := manifestID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, id)
			return nil
		},
	}
}

// manifestID derives the identifier of the manifest at target, which is an
// app directory or the manifest file itself.
func manifestID(target string) (appid.ID, error) {
	dir := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		dir = filepath.Dir(target)
		if filepath.Base(target) != manifest.FileName {
			data, err := os.ReadFile(target)
			if err != nil {
				return "", err
			}
			m, err := manifest.Parse(data, target)
			if err != nil {
				return "", err
			}
			return appid.Resolve("", m)
		}
	}

	m, err := manifest.Load(dir)
	if err != nil {
		return "", err
	}
	return appid.Resolve("", m)
}
