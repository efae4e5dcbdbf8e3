// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installArchive string

var installCmd = &cobra.Command{
	Use:   "install <mod>",
	Short: "Install a mod",
	Long: `Install a mod into the mods directory.

Without --archive the mod is downloaded from the configured repositories.
With --archive the given zip file is used directly; the archive must contain
a mod.json manifest at its top level or at most two folders deep.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		name := args[0]
		if err := manager.Install(cmd.Context(), name, installArchive); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		fmt.Println(SuccessStyle.Render("Installed ") + ModStyle.Render(name))
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installArchive, "archive", "", "install from a local zip archive instead of a repository")
}
