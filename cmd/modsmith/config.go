// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"modsmith/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage modsmith configuration",
	Long: `Manage modsmith configuration.

Configuration is stored in:
  - Linux: ~/.config/modsmith/config.cue
  - macOS: ~/Library/Application Support/modsmith/config.cue
  - Windows: %APPDATA%\modsmith\config.cue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadAppConfig(cmd.Context())
		if err != nil {
			return err
		}

		if path == "" {
			fmt.Println(SubtitleStyle.Render("No config file found, showing defaults."))
		} else {
			fmt.Println(SubtitleStyle.Render("Loaded from " + path))
		}
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("mods_dir:"), cfg.ModsDir)
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("data_dir:"), cfg.DataDir)
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("settings_path:"), cfg.SettingsPath)
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("engine_version:"), cfg.EngineVersion)
		if len(cfg.Repositories) == 0 {
			fmt.Printf("  %s %s\n", SubtitleStyle.Render("repositories:"), "(none)")
		} else {
			fmt.Printf("  %s %s\n", SubtitleStyle.Render("repositories:"), strings.Join(cfg.Repositories, ", "))
		}
		fmt.Printf("  %s %v\n", SubtitleStyle.Render("ui.verbose:"), cfg.UI.Verbose)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		example, err := config.ExampleConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfgDir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(example), 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
		fmt.Println(SuccessStyle.Render("Created ") + path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}
