// SPDX-License-Identifier: MPL-2.0

// Package archive inspects and extracts mod archives.
//
// A mod archive is a zip container with a mod.json manifest at its root, or
// inside a single wrapping folder. The package exposes the minimal contract
// the mod manager needs: list entries, locate the manifest root, and extract
// the root's files into a destination without letting any entry escape it.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the manifest file every mod archive must carry.
const ManifestName = "mod.json"

// maxManifestDepth is the deepest nesting level searched for the manifest:
// depth 0 is the archive root, depth 1 a single wrapping folder, depth 2 a
// wrapping folder around the mod folder itself. Anything deeper is treated as
// a corrupted archive.
const maxManifestDepth = 2

// ErrManifestNotFound reports an archive with no mod.json at any supported
// nesting depth.
var ErrManifestNotFound = errors.New("no " + ManifestName + " found in archive")

// ListFiles returns the entry paths of the archive in their stored order,
// normalised to forward slashes.
func ListFiles(archivePath string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	entries := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		entries = append(entries, strings.TrimPrefix(filepath.ToSlash(file.Name), "./"))
	}
	return entries, nil
}

// LocateRoot lists the archive and finds the folder containing the manifest.
// The returned root is "" when the manifest sits at the archive root, or a
// slash-joined folder prefix otherwise. Shallower matches always win: every
// entry is tried at depth 0 before any entry is tried at depth 1, which
// resolves archives that wrap the mod in a single container folder.
//
// The full entry list is returned for diagnostics regardless of outcome. When
// no manifest exists at any supported depth the error is ErrManifestNotFound
// and the entry list is logged so corrupted archives can be inspected.
func LocateRoot(archivePath string) (string, []string, error) {
	entries, err := ListFiles(archivePath)
	if err != nil {
		return "", nil, err
	}

	for depth := 0; depth <= maxManifestDepth; depth++ {
		for _, entry := range entries {
			parts := strings.Split(entry, "/")
			if len(parts) != depth+1 || parts[depth] != ManifestName {
				continue
			}
			return strings.Join(parts[:depth], "/"), entries, nil
		}
	}

	slog.Error("failed to detect mod folder in archive", "archive", archivePath)
	for _, entry := range entries {
		slog.Debug("archive entry", "name", entry)
	}
	return "", entries, ErrManifestNotFound
}

// Extract writes the archive's contents under destDir. When root is non-empty
// only entries inside root are extracted; entry paths keep their stored
// layout, so a root of "wrapper/mod" materialises as destDir/wrapper/mod.
//
// Entries that would escape destDir (absolute paths, ".." traversal) abort
// the extraction. The context is checked between entries; extraction of an
// individual file is not interruptible.
func Extract(ctx context.Context, archivePath, destDir, root string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	prefix := ""
	if root != "" {
		prefix = root + "/"
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := strings.TrimPrefix(filepath.ToSlash(file.Name), "./")
		if root != "" && name != root && !strings.HasPrefix(name, prefix) {
			continue
		}

		destPath := filepath.Join(absDest, filepath.FromSlash(name))
		rel, err := filepath.Rel(absDest, destPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("entry %q escapes extraction directory", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, file.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("create directory %q: %w", name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("create parent of %q: %w", name, err)
		}
		if err := extractFile(file, destPath); err != nil {
			return fmt.Errorf("extract %q: %w", name, err)
		}
	}

	return nil
}

// extractFile copies a single archive entry to destPath with its stored mode.
func extractFile(file *zip.File, destPath string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, rc)
	return err
}
