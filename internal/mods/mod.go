// SPDX-License-Identifier: MPL-2.0

// Package mods implements the mod manager: discovery of installed mods,
// dependency/conflict validation of state transitions, and the install,
// uninstall, enable and disable operations over the managed mods directory.
package mods

import "strings"

// Mod is one known mod: installed on disk, available from a repository, or
// both. Records are rebuilt wholesale on every reload; nothing mutates them
// incrementally.
type Mod struct {
	// Name is the canonical lower-case identifier. Submods use a dotted
	// path under their parent ("parent.child").
	Name string

	// Depends lists mods that must be installed and enabled before this
	// one may be enabled.
	Depends []string

	// Conflicts lists mods that must not be enabled at the same time.
	Conflicts []string

	// Installed is true when the mod's directory exists in the managed
	// mods container.
	Installed bool

	// Available is true when some repository offers this mod.
	Available bool

	// Enabled mirrors the activation document.
	Enabled bool

	// Compatible is false when the manifest's compatibility window
	// excludes the current engine version.
	Compatible bool

	// Path is the on-disk directory for installed mods.
	Path string

	// SizeBytes is the sum of file sizes under Path, computed at reload.
	SizeBytes int64

	// StoredLocally is true when Path sits inside the managed container
	// rather than being resolved from an external data location.
	StoredLocally bool

	// Manifest is the parsed mod.json for installed mods, nil otherwise.
	Manifest *Manifest

	// Repo carries repository-side metadata for available mods.
	Repo *RepoInfo
}

// RepoInfo is the repository's view of a mod: where to download it and what
// the index promises about it.
type RepoInfo struct {
	Version     string
	Download    string
	Size        int64
	Description string
}

// IsSubmod reports whether the mod is addressed via a dotted path under a
// parent. Submods can only be enabled or disabled, never installed or
// uninstalled on their own.
func (m *Mod) IsSubmod() bool {
	return strings.Contains(m.Name, ".")
}

// Disabled reports an installed mod that is not enabled.
func (m *Mod) Disabled() bool {
	return m.Installed && !m.Enabled
}

// Status renders the mod's derived state for display.
func (m *Mod) Status() string {
	switch {
	case m.Installed && m.Enabled:
		return "enabled"
	case m.Installed:
		return "disabled"
	case m.Available:
		return "available"
	default:
		return "unknown"
	}
}
