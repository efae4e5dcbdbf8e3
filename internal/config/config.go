// SPDX-License-Identifier: MPL-2.0

// Package config loads the modsmith configuration: where mods live, which
// repositories to consult, and which engine version to validate against.
//
// The config file is CUE; it is validated against an embedded schema before
// being merged over the built-in defaults, so a typo in the file surfaces as
// a schema error instead of a silently ignored key.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"modsmith/internal/issue"
	"modsmith/internal/settings"
)

const (
	// AppName is the application name, used for the config and data
	// directory names.
	AppName = "modsmith"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"

	// ModsContainerName is the directory under the data dir that holds
	// installed mods.
	ModsContainerName = "mods"

	// DefaultEngineVersion is assumed when the config does not pin one.
	DefaultEngineVersion = "1.0.0"
)

//go:embed config_schema.cue
var configSchema string

type (
	// UIConfig holds presentation settings.
	UIConfig struct {
		// Verbose enables debug logging and detailed error output.
		Verbose bool `mapstructure:"verbose"`
	}

	// Config is the resolved modsmith configuration.
	Config struct {
		// ModsDir is the managed mods container directory.
		ModsDir string `mapstructure:"mods_dir"`
		// DataDir is the application data directory.
		DataDir string `mapstructure:"data_dir"`
		// SettingsPath is the mod activation document location.
		SettingsPath string `mapstructure:"settings_path"`
		// EngineVersion is matched against mod compatibility windows.
		EngineVersion string `mapstructure:"engine_version"`
		// Repositories lists mod index sources, file paths or URLs.
		Repositories []string `mapstructure:"repositories"`
		// UI holds presentation settings.
		UI UIConfig `mapstructure:"ui"`
	}

	// LoadOptions controls where Load looks for the config file.
	LoadOptions struct {
		// ConfigFilePath, when set, is used exclusively; a missing file
		// is then an error instead of a fallback to defaults.
		ConfigFilePath string
		// ConfigDirPath overrides the platform config directory.
		ConfigDirPath string
	}
)

// ConfigDir returns the modsmith configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the modsmith data directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS, $XDG_DATA_HOME (defaulting to
// ~/.local/share) elsewhere.
func DataDir() (string, error) {
	if dataDirOverride != "" {
		return dataDirOverride, nil
	}

	switch runtime.GOOS {
	case "windows", "darwin":
		// Same base as the config directory on these platforms.
		return ConfigDir()
	default:
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataDir, AppName), nil
	}
}

// DefaultConfig returns the built-in defaults, with directories resolved for
// the current platform.
func DefaultConfig() (*Config, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}

	return &Config{
		ModsDir:       filepath.Join(dataDir, ModsContainerName),
		DataDir:       dataDir,
		SettingsPath:  filepath.Join(cfgDir, settings.FileName),
		EngineVersion: DefaultEngineVersion,
		Repositories:  nil,
		UI:            UIConfig{Verbose: false},
	}, nil
}

// Load resolves the configuration: built-in defaults, overlaid with the CUE
// config file when one exists. It returns the config and the path of the
// file it was loaded from ("" when only defaults applied).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	defaults, err := DefaultConfig()
	if err != nil {
		return nil, "", err
	}

	v := viper.New()
	v.SetDefault("mods_dir", defaults.ModsDir)
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("settings_path", defaults.SettingsPath)
	v.SetDefault("engine_version", defaults.EngineVersion)
	v.SetDefault("repositories", defaults.Repositories)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'modsmith config init' to create a starter config").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", wrapConfigParseError(err, opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			cfgDir, err = ConfigDir()
			if err != nil {
				return nil, "", err
			}
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", wrapConfigParseError(err, cuePath)
			}
			resolvedPath = cuePath
		}
		// No config file means defaults, not an error.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, resolvedPath, nil
}

func wrapConfigParseError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE config file, validates it against the
// embedded #Config schema, and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cueCtx := cuecontext.New()

	schemaValue := cueCtx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := cueCtx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return fmt.Errorf("invalid CUE in %s: %w", path, userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("config validation failed for %s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return v.MergeConfigMap(configMap)
}

// ExampleConfig renders a starter config file with the current defaults
// spelled out as comments.
func ExampleConfig() (string, error) {
	defaults, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`// modsmith configuration.
// Every field is optional; unset fields use the defaults shown.

// mods_dir: %q
// data_dir: %q
// settings_path: %q

engine_version: %q

repositories: []
// repositories: ["https://example.org/mods/index.json"]

ui: verbose: false
`, defaults.ModsDir, defaults.DataDir, defaults.SettingsPath, defaults.EngineVersion), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
