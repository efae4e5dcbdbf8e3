// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <mod>",
	Short: "Remove an installed mod",
	Long: `Remove a mod's directory from the mods container.

Deletion only proceeds when the directory demonstrably sits inside the
managed layout; anything else is reported so it can be removed manually.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		name := args[0]
		if err := manager.Uninstall(cmd.Context(), name); err != nil {
			return fmt.Errorf("uninstall %s: %w", name, err)
		}
		fmt.Println(SuccessStyle.Render("Uninstalled ") + ModStyle.Render(name))
		return nil
	},
}
