// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Not parallel: mutates the package-level directory overrides.
	dir := t.TempDir()
	SetConfigDirOverride(filepath.Join(dir, "config"))
	SetDataDirOverride(filepath.Join(dir, "data"))
	t.Cleanup(Reset)

	cfg, path, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}
	if cfg.ModsDir != filepath.Join(dir, "data", ModsContainerName) {
		t.Errorf("ModsDir = %q", cfg.ModsDir)
	}
	if cfg.EngineVersion != DefaultEngineVersion {
		t.Errorf("EngineVersion = %q, want %q", cfg.EngineVersion, DefaultEngineVersion)
	}
	if cfg.UI.Verbose {
		t.Error("Verbose should default to false")
	}
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	t.Parallel()

	cfgDir := t.TempDir()
	content := `
engine_version: "1.6.2"
repositories: ["https://mods.example/index.json"]
ui: verbose: true
`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.cue"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: cfgDir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != filepath.Join(cfgDir, "config.cue") {
		t.Errorf("resolved path = %q", path)
	}
	if cfg.EngineVersion != "1.6.2" {
		t.Errorf("EngineVersion = %q, want 1.6.2", cfg.EngineVersion)
	}
	if len(cfg.Repositories) != 1 || cfg.Repositories[0] != "https://mods.example/index.json" {
		t.Errorf("Repositories = %v", cfg.Repositories)
	}
	if !cfg.UI.Verbose {
		t.Error("Verbose should be true per config file")
	}
	// Unset keys keep their defaults.
	if cfg.ModsDir == "" {
		t.Error("ModsDir default was lost")
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"bad engine version", `engine_version: "stable"`},
		{"wrong repositories type", `repositories: "not-a-list"`},
		{"empty mods dir", `mods_dir: ""`},
		{"wrong verbose type", `ui: verbose: "yes"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfgDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(cfgDir, "config.cue"), []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: cfgDir}); err == nil {
				t.Error("Load succeeded, want schema error")
			}
		})
	}
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: missing})
	if err == nil {
		t.Fatal("Load succeeded with missing explicit config file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Load(ctx, LoadOptions{}); err == nil {
		t.Fatal("Load succeeded with canceled context")
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	// Not parallel: mutates the package-level directory overrides.
	dir := t.TempDir()
	SetConfigDirOverride(filepath.Join(dir, "config"))
	SetDataDirOverride(filepath.Join(dir, "data"))
	t.Cleanup(Reset)

	example, err := ExampleConfig()
	if err != nil {
		t.Fatalf("ExampleConfig: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(example), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: path}); err != nil {
		t.Errorf("generated example does not load: %v", err)
	}
}
