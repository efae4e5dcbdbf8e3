// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"modsmith/internal/archive"
	"modsmith/internal/repository"
	"modsmith/internal/settings"
)

type (
	// Catalog is the immutable snapshot of every known mod, keyed by
	// canonical lower-case name. Validators operate on a Catalog so they
	// stay pure; only a reload produces a new one.
	Catalog struct {
		mods map[string]*Mod
	}

	// Problem records a directory the reload scan could not turn into a
	// mod: an orphaned extraction, a missing or malformed manifest. These
	// are surfaced, never fatal.
	Problem struct {
		Name string
		Err  error
	}
)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{mods: map[string]*Mod{}}
}

// Get returns the mod with the given name, case-insensitively. Unknown names
// yield a zero-value view (not installed, not available) so validators can
// reason about them uniformly.
func (c *Catalog) Get(name string) *Mod {
	key := strings.ToLower(name)
	if mod, ok := c.mods[key]; ok {
		return mod
	}
	return &Mod{Name: key}
}

// Has reports whether the catalog knows a mod by that name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.mods[strings.ToLower(name)]
	return ok
}

// Names returns every known mod name in sorted order, for deterministic
// scans and display.
func (c *Catalog) Names() []string {
	names := maps.Keys(c.mods)
	slices.Sort(names)
	return names
}

// All returns every known mod sorted by name.
func (c *Catalog) All() []*Mod {
	out := make([]*Mod, 0, len(c.mods))
	for _, name := range c.Names() {
		out = append(out, c.mods[name])
	}
	return out
}

// Len returns the number of known mods.
func (c *Catalog) Len() int {
	return len(c.mods)
}

func (c *Catalog) put(mod *Mod) {
	c.mods[mod.Name] = mod
}

// BuildCatalog rescans the managed mods directory, merges activation state
// and repository metadata, and returns the new canonical catalog. This is the
// only place mod records are created. Directories that cannot be understood
// are reported as problems and skipped.
func BuildCatalog(modsDir string, doc *settings.Document, repos *repository.Set, engineVersion string) (*Catalog, []Problem) {
	catalog := NewCatalog()
	var problems []Problem

	entries, err := os.ReadDir(modsDir)
	if err != nil && !os.IsNotExist(err) {
		problems = append(problems, Problem{Name: filepath.Base(modsDir), Err: err})
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scanModDir(catalog, &problems, filepath.Join(modsDir, entry.Name()), strings.ToLower(entry.Name()), doc, engineVersion)
	}

	if repos != nil {
		for _, name := range repos.Names() {
			repoEntry, _ := repos.Get(name)
			info := &RepoInfo{
				Version:     repoEntry.Version,
				Download:    repoEntry.Download,
				Size:        repoEntry.Size,
				Description: repoEntry.Description,
			}
			if catalog.Has(name) {
				mod := catalog.Get(name)
				mod.Available = true
				mod.Repo = info
				continue
			}
			catalog.put(&Mod{
				Name:       strings.ToLower(name),
				Depends:    lowerAll(repoEntry.Depends),
				Conflicts:  lowerAll(repoEntry.Conflicts),
				Available:  true,
				Compatible: true,
				Repo:       info,
			})
		}
	}

	return catalog, problems
}

// scanModDir registers the mod rooted at dir under the dotted name, then
// descends into its mods/ directory for submods.
func scanModDir(catalog *Catalog, problems *[]Problem, dir, name string, doc *settings.Document, engineVersion string) {
	manifestPath := filepath.Join(dir, archive.ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		*problems = append(*problems, Problem{Name: name, Err: fmt.Errorf("no readable %s (orphaned directory?): %w", archive.ManifestName, err)})
		return
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		*problems = append(*problems, Problem{Name: name, Err: err})
		return
	}

	catalog.put(&Mod{
		Name:          name,
		Depends:       manifest.Depends,
		Conflicts:     manifest.Conflicts,
		Installed:     true,
		Enabled:       doc.IsActive(settings.Segments(name)),
		Compatible:    manifest.Compatibility.Satisfied(engineVersion),
		Path:          dir,
		SizeBytes:     dirSize(dir),
		StoredLocally: true,
		Manifest:      manifest,
	})

	subsDir := filepath.Join(dir, "mods")
	subs, err := os.ReadDir(subsDir)
	if err != nil {
		return
	}
	for _, sub := range subs {
		if !sub.IsDir() {
			continue
		}
		subName := name + "." + strings.ToLower(sub.Name())
		scanModDir(catalog, problems, filepath.Join(subsDir, sub.Name()), subName, doc, engineVersion)
	}
}

// dirSize sums the file sizes under dir. Walk errors are ignored; the size is
// informational.
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
