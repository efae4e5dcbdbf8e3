// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"modsmith/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mods directory and rescan on changes",
	Long: `Watch the mods directory and rescan whenever its contents change,
for example when mods are copied in manually or edited in place.

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cfg, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		renderErrorLog(manager)

		if err := os.MkdirAll(cfg.ModsDir, 0o755); err != nil {
			return fmt.Errorf("create mods directory: %w", err)
		}

		watcher, err := watch.New(watch.Config{
			ModsDir:  cfg.ModsDir,
			Debounce: watchDebounce,
			OnChange: func(ctx context.Context, changed []string) error {
				fmt.Println(SubtitleStyle.Render(fmt.Sprintf("%d path(s) changed, rescanning...", len(changed))))
				if err := manager.Reload(ctx); err != nil {
					return err
				}
				fmt.Println(SuccessStyle.Render(fmt.Sprintf("%d mod(s) known", manager.Catalog().Len())))
				renderErrorLog(manager)
				return nil
			},
		})
		if err != nil {
			return err
		}

		fmt.Println(TitleStyle.Render("Watching ") + SubtitleStyle.Render(cfg.ModsDir))
		return watcher.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before rescanning (default 500ms)")
}
