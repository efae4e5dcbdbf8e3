// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"modsmith/internal/config"
	"modsmith/internal/fsguard"
	"modsmith/internal/mods"
	"modsmith/internal/settings"
)

var (
	loadConfigOnce sync.Once
	loadedCfg      *config.Config
	loadedCfgPath  string
	loadedCfgErr   error
)

// loadAppConfig resolves the configuration once per process, honoring the
// --config flag.
func loadAppConfig(ctx context.Context) (*config.Config, string, error) {
	loadConfigOnce.Do(func() {
		loadedCfg, loadedCfgPath, loadedCfgErr = config.Load(ctx, config.LoadOptions{
			ConfigFilePath: cfgFile,
		})
	})
	return loadedCfg, loadedCfgPath, loadedCfgErr
}

// newManager builds the mod manager from the resolved configuration. Broken
// repositories land in the manager's error log; the manager still works with
// the indexes that loaded.
func newManager(ctx context.Context) (*mods.Manager, *config.Config, error) {
	cfg, _, err := loadAppConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	manager := mods.NewManager(ctx, mods.Options{
		ModsDir:       cfg.ModsDir,
		Guard:         fsguard.New(config.AppName, config.ModsContainerName),
		Settings:      settings.NewStore(cfg.SettingsPath),
		RepoSources:   cfg.Repositories,
		EngineVersion: cfg.EngineVersion,
		Notifier:      cliNotifier{},
	})
	return manager, cfg, nil
}

// renderErrorLog drains the manager's error log and prints each entry.
// Safe to call after any operation; a clean run prints nothing.
func renderErrorLog(m *mods.Manager) {
	for _, entry := range m.Errors() {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("! ")+entry)
	}
}

// cliNotifier logs manager events at debug level; the per-command output is
// rendered by the command handlers instead.
type cliNotifier struct{}

func (cliNotifier) ModChanged(name string) {
	slog.Debug("mod state changed", "mod", name)
}

func (cliNotifier) Progress(name string) {
	slog.Debug("extracting", "mod", name)
}

func (cliNotifier) Reloaded(count int) {
	slog.Debug("mods rescanned", "count", count)
}

// humanSize renders a byte count for display.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
