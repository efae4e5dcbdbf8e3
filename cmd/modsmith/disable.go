// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <mod>",
	Short: "Disable an enabled mod",
	Long: `Disable an enabled mod.

A mod that other enabled mods depend on cannot be disabled; disable the
dependents first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		name := args[0]
		if err := manager.Disable(name); err != nil {
			return fmt.Errorf("disable %s: %w", name, err)
		}
		fmt.Println(SuccessStyle.Render("Disabled ") + ModStyle.Render(name))
		return nil
	},
}
