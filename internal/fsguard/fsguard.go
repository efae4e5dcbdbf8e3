// SPDX-License-Identifier: MPL-2.0

// Package fsguard protects recursive deletion of mod directories.
//
// A computed deletion path that goes wrong (an empty string, a user's home
// directory, a filesystem root) recursively removed would be catastrophic, so
// deletion is allowed only for paths that demonstrably sit inside the managed
// mods container. The checks are deliberately redundant: each one alone would
// catch most mistakes, together they catch the creative ones.
package fsguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard validates deletion paths against the managed directory layout:
// <...>/<AppDirName>/<ContainerName>/<mod folder>.
type Guard struct {
	// AppDirName is the application data directory name (e.g. "modsmith").
	AppDirName string
	// ContainerName is the managed mods container directory name (e.g. "mods").
	ContainerName string
}

// New creates a Guard for the given application and container directory names.
func New(appDirName, containerName string) Guard {
	return Guard{AppDirName: appDirName, ContainerName: containerName}
}

// Check reports whether path may be recursively deleted. It returns nil only
// when every rule passes:
//
//  1. the path resolves to an absolute path,
//  2. its immediate parent directory is named ContainerName,
//  3. that parent's parent is named AppDirName,
//  4. the absolute path textually contains both names.
//
// All name comparisons are case-insensitive.
func (g Guard) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	parent := filepath.Dir(abs)
	if parent == abs {
		// abs is a filesystem root
		return fmt.Errorf("refusing to delete a root directory")
	}
	if !strings.EqualFold(filepath.Base(parent), g.ContainerName) {
		return fmt.Errorf("parent directory is %q, not the %q container", filepath.Base(parent), g.ContainerName)
	}

	grandparent := filepath.Dir(parent)
	if grandparent == parent {
		return fmt.Errorf("mods container sits at a filesystem root")
	}
	if !strings.EqualFold(filepath.Base(grandparent), g.AppDirName) {
		return fmt.Errorf("container is not inside the %q application directory", g.AppDirName)
	}

	lower := strings.ToLower(abs)
	if !strings.Contains(lower, strings.ToLower(g.AppDirName)) {
		return fmt.Errorf("path does not mention the application directory")
	}
	if !strings.Contains(lower, strings.ToLower(g.ContainerName)) {
		return fmt.Errorf("path does not mention the mods container")
	}

	return nil
}

// RemoveDir recursively deletes path if every safety check passes. It returns
// false, with no filesystem change, when any check fails or the deletion
// itself errors.
func (g Guard) RemoveDir(path string) bool {
	if err := g.Check(path); err != nil {
		return false
	}
	return os.RemoveAll(path) == nil
}
