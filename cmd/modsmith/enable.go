// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"modsmith/internal/mods"
)

var enableWithDeps bool

var enableCmd = &cobra.Command{
	Use:   "enable <mod>",
	Short: "Enable an installed mod",
	Long: `Enable an installed mod.

Enabling checks the mod's engine compatibility, that every dependency is
installed and enabled, and that no enabled mod conflicts with it. With
--with-deps, disabled dependencies are enabled first, in dependency order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		name := args[0]
		if enableWithDeps {
			return enableChain(manager, name)
		}

		if err := manager.Enable(name); err != nil {
			return fmt.Errorf("enable %s: %w", name, err)
		}
		fmt.Println(SuccessStyle.Render("Enabled ") + ModStyle.Render(name))
		return nil
	},
}

// enableChain enables name's transitive dependencies before name itself.
func enableChain(manager *mods.Manager, name string) error {
	order, err := mods.EnableOrder(manager.Catalog(), name)
	if err != nil {
		return fmt.Errorf("enable %s: %w", name, err)
	}

	for _, dep := range order {
		if manager.Catalog().Get(dep).Enabled {
			continue
		}
		if err := manager.Enable(dep); err != nil {
			return fmt.Errorf("enable %s: %w", dep, err)
		}
		fmt.Println(SuccessStyle.Render("Enabled ") + ModStyle.Render(dep))
	}
	return nil
}

func init() {
	enableCmd.Flags().BoolVar(&enableWithDeps, "with-deps", false, "also enable disabled dependencies, in dependency order")
}
