// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Transition predicates. Each one is a pure function over a catalog snapshot:
// it either returns nil (transition allowed) or the single human-readable
// reason for rejection. Rules are evaluated in a fixed order and the first
// failing rule wins, so rejection messages are deterministic.

// CanInstall decides whether name may be installed. localArchive marks an
// install request that supplies its own archive file, which counts as an
// available source even when no repository lists the mod.
func CanInstall(c *Catalog, name string, localArchive bool) error {
	mod := c.Get(name)

	if mod.IsSubmod() {
		return fmt.Errorf("cannot install a submod")
	}
	if mod.Installed {
		return fmt.Errorf("mod is already installed")
	}
	if !mod.Available && !localArchive {
		return fmt.Errorf("mod is not available from any repository")
	}
	return nil
}

// CanUninstall decides whether name may be uninstalled: no enabled mod may
// depend on it.
func CanUninstall(c *Catalog, name string) error {
	mod := c.Get(name)

	if mod.IsSubmod() {
		return fmt.Errorf("cannot uninstall a submod")
	}
	if !mod.Installed {
		return fmt.Errorf("mod is not installed")
	}

	for _, other := range c.Names() {
		candidate := c.Get(other)
		if candidate.Enabled && slices.Contains(candidate.Depends, mod.Name) {
			return fmt.Errorf("this mod is needed to run %s", other)
		}
	}
	return nil
}

// CanEnable decides whether name may be enabled: the mod must be installed,
// compatible with the engine, have every dependency installed and enabled,
// and conflict with no enabled mod in either direction.
func CanEnable(c *Catalog, name string) error {
	mod := c.Get(name)

	if mod.Enabled {
		return fmt.Errorf("mod is already enabled")
	}
	if !mod.Installed {
		return fmt.Errorf("mod must be installed first")
	}
	if !mod.Compatible {
		return fmt.Errorf("mod is not compatible with this engine version, update the engine or the mod")
	}

	for _, dep := range mod.Depends {
		if !c.Has(dep) {
			return fmt.Errorf("required mod %s is missing", dep)
		}
		if !c.Get(dep).Enabled {
			return fmt.Errorf("required mod %s is not enabled", dep)
		}
	}

	// Reverse conflicts: an already-enabled mod may list this one as a
	// conflict even though this one does not list it back.
	for _, other := range c.Names() {
		candidate := c.Get(other)
		if candidate.Enabled && slices.Contains(candidate.Conflicts, mod.Name) {
			return fmt.Errorf("this mod conflicts with %s", other)
		}
	}

	for _, conflict := range mod.Conflicts {
		if c.Has(conflict) && c.Get(conflict).Enabled {
			return fmt.Errorf("this mod conflicts with %s", conflict)
		}
	}
	return nil
}

// CanDisable decides whether name may be disabled: no enabled mod may depend
// on it.
func CanDisable(c *Catalog, name string) error {
	mod := c.Get(name)

	if mod.Disabled() {
		return fmt.Errorf("mod is already disabled")
	}
	if !mod.Installed {
		return fmt.Errorf("mod must be installed first")
	}

	for _, other := range c.Names() {
		candidate := c.Get(other)
		if candidate.Enabled && slices.Contains(candidate.Depends, mod.Name) {
			return fmt.Errorf("this mod is needed to run %s", other)
		}
	}
	return nil
}
