// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modsmith/internal/archive"
	"modsmith/internal/fsguard"
	"modsmith/internal/issue"
	"modsmith/internal/repository"
	"modsmith/internal/settings"
)

// ErrBusy is returned when an operation is requested while another one is
// still running. Operations are never queued; the caller retries.
var ErrBusy = errors.New("another mod operation is in progress")

// defaultProgressInterval is how often the notifier hears about a running
// extraction. Extraction progress is indeterminate, the tick only proves
// liveness.
const defaultProgressInterval = 50 * time.Millisecond

type (
	// Notifier receives manager events. Implementations must be cheap;
	// callbacks run on the operation's goroutine.
	Notifier interface {
		// ModChanged fires after a single mod's state changed on disk.
		ModChanged(name string)
		// Progress fires periodically while a mod archive is extracting.
		Progress(name string)
		// Reloaded fires after a rescan, with the new catalog size.
		Reloaded(count int)
	}

	// Options configures a Manager.
	Options struct {
		// ModsDir is the managed mod container directory.
		ModsDir string
		// Guard confines destructive filesystem operations.
		Guard fsguard.Guard
		// Settings persists the activation document.
		Settings *settings.Store
		// Repos is a pre-built repository index, may be nil. Ignored when
		// RepoSources is set.
		Repos *repository.Set
		// RepoSources lists repository index locations. When non-empty the
		// set is fetched anew on every reload so availability data stays
		// fresh; load failures land in the error log.
		RepoSources []string
		// EngineVersion is matched against manifest compatibility windows.
		EngineVersion string
		// Notifier receives events; nil means no notifications.
		Notifier Notifier
		// ProgressInterval overrides the extraction progress tick.
		ProgressInterval time.Duration
	}

	// Manager owns the mod lifecycle: install, uninstall, enable, disable,
	// reload. All operations are serialised; a second caller gets ErrBusy
	// instead of waiting. Operational failures are additionally collected
	// in a drain-on-read error log so a UI can show everything that went
	// wrong since it last looked.
	Manager struct {
		opts Options

		mu      sync.Mutex
		catalog *Catalog
		doc     *settings.Document
		repos   *repository.Set

		errMu  sync.Mutex
		errLog []string
	}

	nopNotifier struct{}
)

func (nopNotifier) ModChanged(string) {}
func (nopNotifier) Progress(string)   {}
func (nopNotifier) Reloaded(int)      {}

// NewManager builds a manager and performs the initial scan.
func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}

	m := &Manager{opts: opts, catalog: NewCatalog(), doc: settings.NewDocument(), repos: opts.Repos}
	if err := m.reloadLocked(ctx); err != nil {
		slog.Error("initial mod scan failed", "error", err)
	}
	return m
}

// Catalog returns the current catalog snapshot.
func (m *Manager) Catalog() *Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

// Errors drains the accumulated error log. Each entry reads "<mod>: <reason>".
func (m *Manager) Errors() []string {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	drained := m.errLog
	m.errLog = nil
	return drained
}

func (m *Manager) addError(name, reason string) {
	slog.Warn("mod operation failed", "mod", name, "reason", reason)
	m.errMu.Lock()
	defer m.errMu.Unlock()
	m.errLog = append(m.errLog, fmt.Sprintf("%s: %s", name, reason))
}

// reject records a validator rejection in the error log and returns it.
func (m *Manager) reject(name string, err error) error {
	m.addError(name, err.Error())
	return err
}

// Install installs name. With an archivePath the archive is used directly;
// without one the mod's repository download location is fetched first.
func (m *Manager) Install(ctx context.Context, name, archivePath string) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()
	name = strings.ToLower(name)

	if err := CanInstall(m.catalog, name, archivePath != ""); err != nil {
		return m.reject(name, err)
	}

	if archivePath == "" {
		mod := m.catalog.Get(name)
		if mod.Repo == nil || mod.Repo.Download == "" {
			return m.reject(name, errors.New("mod has no download location"))
		}
		downloaded, err := repository.Download(ctx, mod.Repo.Download)
		if err != nil {
			m.addError(name, "failed to download mod archive")
			return issue.NewErrorContext().
				WithOperation("download mod archive").
				WithResource(mod.Repo.Download).
				WithSuggestion("Check your network connection and the repository configuration").
				Wrap(err).
				BuildError()
		}
		defer os.Remove(downloaded)
		archivePath = downloaded
	}

	if _, err := os.Stat(archivePath); err != nil {
		return m.reject(name, errors.New("mod archive is missing"))
	}
	if existing := m.findModDir(name); existing != "" {
		return m.reject(name, errors.New("mod with such name is already installed"))
	}

	root, _, err := archive.LocateRoot(archivePath)
	if err != nil {
		m.addError(name, "mod archive is invalid or corrupted")
		return issue.NewErrorContext().
			WithOperation("inspect mod archive").
			WithResource(archivePath).
			WithSuggestion("Verify the archive was downloaded completely").
			WithSuggestion("A mod archive must contain mod.json at its top level or one folder deep").
			Wrap(err).
			BuildError()
	}

	if err := m.extractMod(ctx, name, archivePath, root); err != nil {
		return err
	}
	return m.reloadLocked(ctx)
}

// extractMod runs the extraction on its own goroutine and emits progress
// ticks while waiting. Partially extracted data is removed on failure.
func (m *Manager) extractMod(ctx context.Context, name, archivePath, root string) error {
	destDir := m.opts.ModsDir
	target := filepath.Join(m.opts.ModsDir, name)
	if root == "" {
		// Bare archive: the manifest sits at the top level, so the archive
		// contents become the mod directory itself.
		destDir = target
	}

	done := make(chan error, 1)
	go func() {
		done <- archive.Extract(ctx, archivePath, destDir, root)
	}()

	ticker := time.NewTicker(m.opts.ProgressInterval)
	defer ticker.Stop()

	var extractErr error
wait:
	for {
		select {
		case extractErr = <-done:
			break wait
		case <-ticker.C:
			m.opts.Notifier.Progress(name)
		}
	}

	if extractErr != nil {
		m.removePartial(name, root)
		m.addError(name, "failed to extract mod data")
		return issue.NewErrorContext().
			WithOperation("extract mod archive").
			WithResource(archivePath).
			WithSuggestion("Check free disk space and archive integrity").
			Wrap(extractErr).
			BuildError()
	}

	if root != "" {
		extracted := filepath.Join(m.opts.ModsDir, filepath.FromSlash(root))
		renamed := true
		if extracted != target {
			if err := os.Rename(extracted, target); err != nil {
				renamed = false
				slog.Error("failed to rename extracted mod directory", "from", extracted, "to", target, "error", err)
				m.addError(name, "failed to rename extracted mod directory")
			}
		}
		// A manifest two levels deep leaves the empty wrapper folder behind
		// after the rename. If the rename failed the mod data is still
		// inside the wrapper, so it must stay.
		if wrapper, _, nested := strings.Cut(root, "/"); nested && renamed {
			if !m.opts.Guard.RemoveDir(filepath.Join(m.opts.ModsDir, wrapper)) {
				slog.Warn("could not remove wrapper directory", "dir", wrapper)
			}
		}
	}
	return nil
}

// removePartial deletes whatever a failed extraction left behind.
func (m *Manager) removePartial(name, root string) {
	leftover := filepath.Join(m.opts.ModsDir, name)
	if root != "" {
		top, _, _ := strings.Cut(root, "/")
		leftover = filepath.Join(m.opts.ModsDir, filepath.FromSlash(top))
	}
	if _, err := os.Stat(leftover); err == nil {
		m.opts.Guard.RemoveDir(leftover)
	}
}

// Uninstall removes name's directory from disk and rescans.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()
	name = strings.ToLower(name)

	if err := CanUninstall(m.catalog, name); err != nil {
		return m.reject(name, err)
	}

	dir := m.findModDir(name)
	if dir == "" {
		return m.reject(name, errors.New("no mod data found on disk"))
	}
	if !m.opts.Guard.RemoveDir(dir) {
		abs, _ := filepath.Abs(dir)
		return m.reject(name, fmt.Errorf("mod is located in a protected directory, please remove it manually:\n%s", abs))
	}
	return m.reloadLocked(ctx)
}

// Enable marks name active in the settings document.
func (m *Manager) Enable(name string) error {
	return m.setEnabled(name, true)
}

// Disable marks name inactive in the settings document.
func (m *Manager) Disable(name string) error {
	return m.setEnabled(name, false)
}

func (m *Manager) setEnabled(name string, enabled bool) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()
	name = strings.ToLower(name)

	var err error
	if enabled {
		err = CanEnable(m.catalog, name)
	} else {
		err = CanDisable(m.catalog, name)
	}
	if err != nil {
		return m.reject(name, err)
	}

	m.doc.SetActive(settings.Segments(name), enabled)
	if err := m.opts.Settings.Save(m.doc); err != nil {
		m.addError(name, "failed to save mod settings")
		return issue.NewErrorContext().
			WithOperation("save mod settings").
			WithResource(m.opts.Settings.Path()).
			WithSuggestion("Check write permission on the config directory").
			Wrap(err).
			BuildError()
	}

	m.catalog.Get(name).Enabled = enabled
	m.opts.Notifier.ModChanged(name)
	return nil
}

// Reload rescans the mods directory, refreshes the repository set and
// rebuilds the catalog.
func (m *Manager) Reload(ctx context.Context) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()
	return m.reloadLocked(ctx)
}

func (m *Manager) reloadLocked(ctx context.Context) error {
	if len(m.opts.RepoSources) > 0 {
		repos, errs := repository.LoadSet(ctx, m.opts.RepoSources)
		for _, err := range errs {
			m.addError("repositories", err.Error())
		}
		m.repos = repos
	}

	m.doc = m.opts.Settings.Load()
	catalog, problems := BuildCatalog(m.opts.ModsDir, m.doc, m.repos, m.opts.EngineVersion)
	for _, problem := range problems {
		m.addError(problem.Name, problem.Err.Error())
	}
	m.catalog = catalog
	m.opts.Notifier.Reloaded(catalog.Len())
	return nil
}

// findModDir resolves name to its on-disk directory, case-insensitively.
// Returns "" when no directory matches.
func (m *Manager) findModDir(name string) string {
	entries, err := os.ReadDir(m.opts.ModsDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(m.opts.ModsDir, entry.Name())
		}
	}
	return ""
}
