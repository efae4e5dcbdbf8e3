// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed and available mods",
	Long: `List every known mod: installed ones found in the mods directory and
mods offered by the configured repositories.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		catalog := manager.Catalog()
		if catalog.Len() == 0 {
			fmt.Println(SubtitleStyle.Render("No mods installed and no repositories configured."))
			return nil
		}

		for _, mod := range catalog.All() {
			marker := statusMarker(mod.Status())
			line := fmt.Sprintf("%s %s", marker, ModStyle.Render(mod.Name))
			if mod.Manifest != nil && mod.Manifest.Version != "" {
				line += SubtitleStyle.Render(" " + mod.Manifest.Version)
			} else if mod.Repo != nil && mod.Repo.Version != "" {
				line += SubtitleStyle.Render(" " + mod.Repo.Version)
			}
			if mod.Installed {
				line += SubtitleStyle.Render("  " + humanSize(mod.SizeBytes))
			}
			if mod.Installed && !mod.Compatible {
				line += WarningStyle.Render("  (incompatible)")
			}
			fmt.Println(line)
		}
		return nil
	},
}

func statusMarker(status string) string {
	switch status {
	case "enabled":
		return SuccessStyle.Render("●")
	case "disabled":
		return SubtitleStyle.Render("○")
	case "available":
		return SubtitleStyle.Render("↓")
	default:
		return WarningStyle.Render("?")
	}
}
