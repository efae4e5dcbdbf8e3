// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"modsmith/internal/fsguard"
	"modsmith/internal/repository"
	"modsmith/internal/settings"
)

// recordingNotifier captures manager events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	changed  []string
	reloads  []int
	progress int
}

func (n *recordingNotifier) ModChanged(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, name)
}

func (n *recordingNotifier) Progress(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress++
}

func (n *recordingNotifier) Reloaded(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads = append(n.reloads, count)
}

func (n *recordingNotifier) changedMods() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.changed...)
}

func (n *recordingNotifier) reloadCounts() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.reloads...)
}

// newTestManager builds a manager over a throwaway modsmith/mods layout that
// satisfies the deletion guard.
func newTestManager(t *testing.T, notifier Notifier, repos *repository.Set) (*Manager, string) {
	t.Helper()
	base := t.TempDir()
	modsDir := filepath.Join(base, "modsmith", "mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		t.Fatal(err)
	}
	store := settings.NewStore(filepath.Join(base, "modsmith", "config", settings.FileName))

	return NewManager(context.Background(), Options{
		ModsDir:          modsDir,
		Guard:            fsguard.New("modsmith", "mods"),
		Settings:         store,
		Repos:            repos,
		EngineVersion:    "1.4",
		Notifier:         notifier,
		ProgressInterval: time.Millisecond,
	}), modsDir
}

// writeArchive creates a zip file with the given entries.
func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestInstallBareArchive(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	archivePath := filepath.Join(t.TempDir(), "new.zip")
	writeArchive(t, archivePath, map[string]string{
		"mod.json":   `{"name": "New Mod"}`,
		"data/a.txt": "payload",
	})

	if err := m.Install(context.Background(), "newmod", archivePath); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(modsDir, "newmod", "mod.json")); err != nil {
		t.Errorf("manifest not on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modsDir, "newmod", "data", "a.txt")); err != nil {
		t.Errorf("payload not on disk: %v", err)
	}
	if !m.Catalog().Get("newmod").Installed {
		t.Error("catalog does not show the mod installed")
	}
	if errs := m.Errors(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestInstallWrappedArchiveRenames(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	archivePath := filepath.Join(t.TempDir(), "wrapped.zip")
	writeArchive(t, archivePath, map[string]string{
		"New Mod v2/mod.json": `{"name": "New Mod"}`,
		"New Mod v2/a.txt":    "payload",
	})

	if err := m.Install(context.Background(), "newmod", archivePath); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(modsDir, "newmod", "mod.json")); err != nil {
		t.Errorf("renamed directory missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modsDir, "New Mod v2")); !os.IsNotExist(err) {
		t.Error("original archive folder left behind")
	}
}

func TestInstallDoubleWrappedRemovesWrapper(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	archivePath := filepath.Join(t.TempDir(), "deep.zip")
	writeArchive(t, archivePath, map[string]string{
		"release/TheMod/mod.json": `{"name": "The Mod"}`,
	})

	if err := m.Install(context.Background(), "themod", archivePath); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(modsDir, "themod", "mod.json")); err != nil {
		t.Errorf("mod directory missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modsDir, "release")); !os.IsNotExist(err) {
		t.Error("wrapper directory left behind")
	}
}

func TestInstallKeepsWrapperWhenRenameFails(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	// A stray file under the target name does not count as an installed
	// mod, but it does make the post-extraction rename fail.
	if err := os.WriteFile(filepath.Join(modsDir, "themod"), []byte("stray"), 0644); err != nil {
		t.Fatal(err)
	}
	m.Errors()

	archivePath := filepath.Join(t.TempDir(), "deep.zip")
	writeArchive(t, archivePath, map[string]string{
		"release/TheMod/mod.json": `{"name": "The Mod"}`,
	})

	if err := m.Install(context.Background(), "themod", archivePath); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// The extracted data must survive under its archive-derived name instead
	// of being deleted together with the wrapper.
	if _, err := os.Stat(filepath.Join(modsDir, "release", "TheMod", "mod.json")); err != nil {
		t.Errorf("extracted mod data lost: %v", err)
	}

	found := false
	for _, entry := range m.Errors() {
		if entry == "themod: failed to rename extracted mod directory" {
			found = true
		}
	}
	if !found {
		t.Error("rename failure missing from error log")
	}
}

func TestInstallRejections(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	writeMod(t, modsDir, "already", `{"name": "Already"}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Errors()

	corrupt := filepath.Join(t.TempDir(), "corrupt.zip")
	writeArchive(t, corrupt, map[string]string{"readme.txt": "no manifest here"})

	tests := []struct {
		name        string
		mod         string
		archivePath string
		wantErr     string
	}{
		{"already installed", "already", corrupt, "mod is already installed"},
		{"submod", "already.sub", corrupt, "cannot install a submod"},
		{"no source", "ghost", "", "mod is not available from any repository"},
		{"missing archive", "ghost2", filepath.Join(t.TempDir(), "nope.zip"), "mod archive is missing"},
	}
	for _, tc := range tests {
		err := m.Install(context.Background(), tc.mod, tc.archivePath)
		if err == nil || err.Error() != tc.wantErr {
			t.Errorf("%s: err = %v, want %q", tc.name, err, tc.wantErr)
		}
	}

	drained := m.Errors()
	if len(drained) != len(tests) {
		t.Errorf("error log has %d entries, want %d: %v", len(drained), len(tests), drained)
	}

	if err := m.Install(context.Background(), "nomanifest", corrupt); err == nil {
		t.Fatal("Install of manifest-less archive succeeded")
	}
	found := false
	for _, entry := range m.Errors() {
		if entry == "nomanifest: mod archive is invalid or corrupted" {
			found = true
		}
	}
	if !found {
		t.Error("corrupted-archive entry missing from error log")
	}
}

func TestInstallCollisionWithUntrackedDirectory(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	// A directory that the catalog scan skipped (no manifest) still blocks
	// installation under the same name.
	if err := os.MkdirAll(filepath.Join(modsDir, "taken"), 0755); err != nil {
		t.Fatal(err)
	}
	m.Errors()

	archivePath := filepath.Join(t.TempDir(), "taken.zip")
	writeArchive(t, archivePath, map[string]string{"mod.json": `{"name": "Taken"}`})

	err := m.Install(context.Background(), "taken", archivePath)
	if err == nil || err.Error() != "mod with such name is already installed" {
		t.Fatalf("err = %v, want name collision", err)
	}
}

func TestInstallFromRepository(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "remote.zip")
	writeArchive(t, archivePath, map[string]string{"mod.json": `{"name": "Remote"}`})
	payload, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	indexPath := filepath.Join(t.TempDir(), "index.json")
	index := fmt.Sprintf(`{"mods": {"Remote": {"version": "1.0.0", "download": %q}}}`, srv.URL)
	if err := os.WriteFile(indexPath, []byte(index), 0644); err != nil {
		t.Fatal(err)
	}
	repos, errs := repository.LoadSet(context.Background(), []string{indexPath})
	if len(errs) != 0 {
		t.Fatalf("LoadSet: %v", errs)
	}

	m, modsDir := newTestManager(t, nil, repos)
	if err := m.Install(context.Background(), "remote", ""); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modsDir, "remote", "mod.json")); err != nil {
		t.Errorf("downloaded mod not on disk: %v", err)
	}
	mod := m.Catalog().Get("remote")
	if !mod.Installed || !mod.Available {
		t.Errorf("Installed=%v Available=%v, want both", mod.Installed, mod.Available)
	}
}

func TestInstallFailureCleansUpPartialData(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	archivePath := filepath.Join(t.TempDir(), "cancel.zip")
	writeArchive(t, archivePath, map[string]string{"mod.json": `{"name": "X"}`, "a.txt": "data"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Install(ctx, "cancelled", archivePath); err == nil {
		t.Fatal("Install with cancelled context succeeded")
	}
	if _, err := os.Stat(filepath.Join(modsDir, "cancelled")); !os.IsNotExist(err) {
		t.Error("partial extraction left behind")
	}
}

func TestUninstall(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	m, modsDir := newTestManager(t, notifier, nil)
	writeMod(t, modsDir, "Doomed", `{"name": "Doomed"}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Uninstall(context.Background(), "doomed"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modsDir, "Doomed")); !os.IsNotExist(err) {
		t.Error("mod directory still on disk")
	}
	if m.Catalog().Has("doomed") {
		t.Error("catalog still lists the mod")
	}
	if counts := notifier.reloadCounts(); len(counts) == 0 || counts[len(counts)-1] != 0 {
		t.Errorf("reload counts = %v, want final rescan of 0 mods", counts)
	}
}

func TestUninstallRefusesUnguardedDirectory(t *testing.T) {
	t.Parallel()

	// A mods dir outside the expected modsmith/mods layout fails the
	// deletion guard; the mod must be reported, not deleted.
	base := t.TempDir()
	modsDir := filepath.Join(base, "plain")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeMod(t, modsDir, "stuck", `{"name": "Stuck"}`)

	m := NewManager(context.Background(), Options{
		ModsDir:       modsDir,
		Guard:         fsguard.New("modsmith", "mods"),
		Settings:      settings.NewStore(filepath.Join(base, settings.FileName)),
		EngineVersion: "1.4",
	})

	err := m.Uninstall(context.Background(), "stuck")
	if err == nil {
		t.Fatal("Uninstall succeeded outside the guarded layout")
	}
	if !strings.HasPrefix(err.Error(), "mod is located in a protected directory, please remove it manually:\n") {
		t.Errorf("err = %q, want protected-directory message", err)
	}
	if _, statErr := os.Stat(filepath.Join(modsDir, "stuck", "mod.json")); statErr != nil {
		t.Errorf("mod data was touched: %v", statErr)
	}
}

func TestUninstallRejections(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	writeMod(t, modsDir, "parent", `{"name": "Parent"}`)
	writeMod(t, modsDir, "parent/mods/sub", `{"name": "Sub"}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Uninstall(context.Background(), "ghost"); err == nil || err.Error() != "mod is not installed" {
		t.Errorf("err = %v, want not-installed rejection", err)
	}
	if err := m.Uninstall(context.Background(), "parent.sub"); err == nil || err.Error() != "cannot uninstall a submod" {
		t.Errorf("err = %v, want submod rejection", err)
	}
}

func TestUninstallBlockedByEnabledDependent(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	writeMod(t, modsDir, "lib", `{"name": "Lib"}`)
	writeMod(t, modsDir, "app", `{"name": "App", "depends": ["Lib"]}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Enable("lib"); err != nil {
		t.Fatalf("Enable(lib): %v", err)
	}
	if err := m.Enable("app"); err != nil {
		t.Fatalf("Enable(app): %v", err)
	}

	err := m.Uninstall(context.Background(), "lib")
	if err == nil || err.Error() != "this mod is needed to run app" {
		t.Fatalf("err = %v, want dependent rejection naming app", err)
	}
	if _, statErr := os.Stat(filepath.Join(modsDir, "lib", "mod.json")); statErr != nil {
		t.Errorf("mod data was removed despite the rejection: %v", statErr)
	}

	// Once the dependent is disabled the uninstall goes through.
	if err := m.Disable("app"); err != nil {
		t.Fatalf("Disable(app): %v", err)
	}
	if err := m.Uninstall(context.Background(), "lib"); err != nil {
		t.Fatalf("Uninstall after disabling dependent: %v", err)
	}
}

func TestEnableDisableFlow(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	m, modsDir := newTestManager(t, notifier, nil)
	writeMod(t, modsDir, "core", `{"name": "Core"}`)
	writeMod(t, modsDir, "addon", `{"name": "Addon", "depends": ["Core"]}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Enable("addon"); err == nil || err.Error() != "required mod core is not enabled" {
		t.Fatalf("err = %v, want dependency rejection", err)
	}

	if err := m.Enable("core"); err != nil {
		t.Fatalf("Enable(core): %v", err)
	}
	if err := m.Enable("addon"); err != nil {
		t.Fatalf("Enable(addon): %v", err)
	}

	if err := m.Disable("core"); err == nil || err.Error() != "this mod is needed to run addon" {
		t.Fatalf("err = %v, want dependent rejection", err)
	}
	if err := m.Disable("addon"); err != nil {
		t.Fatalf("Disable(addon): %v", err)
	}
	if err := m.Disable("core"); err != nil {
		t.Fatalf("Disable(core): %v", err)
	}

	want := []string{"core", "addon", "addon", "core"}
	got := notifier.changedMods()
	if len(got) != len(want) {
		t.Fatalf("ModChanged fired for %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ModChanged[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConflictResolvedByDisabling(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	writeMod(t, modsDir, "classic", `{"name": "Classic", "conflicts": ["Rework"]}`)
	writeMod(t, modsDir, "rework", `{"name": "Rework"}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Enable("classic"); err != nil {
		t.Fatalf("Enable(classic): %v", err)
	}

	// The conflict blocks in both directions while classic is enabled.
	if err := m.Enable("rework"); err == nil || err.Error() != "this mod conflicts with classic" {
		t.Fatalf("err = %v, want conflict naming classic", err)
	}

	if err := m.Disable("classic"); err != nil {
		t.Fatalf("Disable(classic): %v", err)
	}
	if err := m.Enable("rework"); err != nil {
		t.Fatalf("Enable(rework) after resolving conflict: %v", err)
	}
}

func TestEnablePersistsAcrossReload(t *testing.T) {
	t.Parallel()

	m, modsDir := newTestManager(t, nil, nil)
	writeMod(t, modsDir, "sticky", `{"name": "Sticky"}`)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Enable("sticky"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.Catalog().Get("sticky").Enabled {
		t.Error("enabled state lost after rescan")
	}
}

func TestReloadRefreshesRepositories(t *testing.T) {
	t.Parallel()

	indexPath := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(indexPath, []byte(`{"mods": {"Early": {"version": "1.0.0"}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	base := t.TempDir()
	modsDir := filepath.Join(base, "modsmith", "mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(context.Background(), Options{
		ModsDir:       modsDir,
		Guard:         fsguard.New("modsmith", "mods"),
		Settings:      settings.NewStore(filepath.Join(base, "modsmith", "config", settings.FileName)),
		RepoSources:   []string{indexPath},
		EngineVersion: "1.4",
	})
	if !m.Catalog().Get("early").Available {
		t.Fatal("repository entry missing after initial scan")
	}

	// The index grows a new entry; a plain reload must pick it up.
	updated := `{"mods": {"Early": {"version": "1.0.0"}, "Late": {"version": "2.0.0"}}}`
	if err := os.WriteFile(indexPath, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.Catalog().Get("late").Available {
		t.Error("repository entry added after startup not picked up by reload")
	}
}

func TestOperationsAreSerialised(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, nil, nil)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Install(context.Background(), "x", "y"); !errors.Is(err, ErrBusy) {
		t.Errorf("Install = %v, want ErrBusy", err)
	}
	if err := m.Uninstall(context.Background(), "x"); !errors.Is(err, ErrBusy) {
		t.Errorf("Uninstall = %v, want ErrBusy", err)
	}
	if err := m.Enable("x"); !errors.Is(err, ErrBusy) {
		t.Errorf("Enable = %v, want ErrBusy", err)
	}
	if err := m.Reload(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Reload = %v, want ErrBusy", err)
	}
}

func TestErrorsDrainOnRead(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, nil, nil)
	if err := m.Enable("ghost"); err == nil {
		t.Fatal("Enable(ghost) succeeded")
	}

	first := m.Errors()
	if len(first) != 1 || first[0] != "ghost: mod must be installed first" {
		t.Errorf("Errors() = %v", first)
	}
	if second := m.Errors(); len(second) != 0 {
		t.Errorf("second drain = %v, want empty", second)
	}
}
