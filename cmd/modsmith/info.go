// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modsmith/internal/mods"
)

var infoCmd = &cobra.Command{
	Use:   "info <mod>",
	Short: "Show a mod's details",
	Long: `Show everything known about a mod: its manifest, state, dependencies,
conflicts, and which installed mods depend on it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer renderErrorLog(manager)

		catalog := manager.Catalog()
		name := strings.ToLower(args[0])
		if !catalog.Has(name) {
			return fmt.Errorf("unknown mod: %s", name)
		}
		mod := catalog.Get(name)

		fmt.Println(TitleStyle.Render(mod.Name) + SubtitleStyle.Render("  "+mod.Status()))
		if mod.Manifest != nil {
			printField("Name", mod.Manifest.Name)
			printField("Description", mod.Manifest.Description)
			printField("Author", mod.Manifest.Author)
			printField("Version", mod.Manifest.Version)
			printField("Type", mod.Manifest.ModType)
		} else if mod.Repo != nil {
			printField("Description", mod.Repo.Description)
			printField("Version", mod.Repo.Version)
		}

		if mod.Installed {
			printField("Location", mod.Path)
			printField("Size", humanSize(mod.SizeBytes))
			if !mod.Compatible {
				fmt.Println(WarningStyle.Render("  Not compatible with the configured engine version"))
			}
		}
		if mod.Repo != nil && mod.Repo.Download != "" {
			printField("Download", mod.Repo.Download)
		}

		printList("Depends on", mod.Depends)
		printList("Conflicts with", mod.Conflicts)
		printList("Needed by", mods.Dependents(catalog, name))

		if !mod.Enabled {
			order, err := mods.EnableOrder(catalog, name)
			if err != nil {
				fmt.Println(WarningStyle.Render("  Enable order unavailable: ") + err.Error())
			} else if len(order) > 1 {
				printList("Enable order", order)
			}
		}
		return nil
	},
}

func printField(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %s %s\n", SubtitleStyle.Render(label+":"), value)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("  %s %s\n", SubtitleStyle.Render(label+":"), strings.Join(items, ", "))
}
