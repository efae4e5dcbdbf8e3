// SPDX-License-Identifier: MPL-2.0

// Package repository reads mod repository indexes: JSON documents naming the
// mods a repository offers, with download locations and enough metadata to
// show them before they are installed. Sources are local files or HTTPS
// URLs; a launcher typically configures one main repository plus any number
// of extras.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Entry describes one mod as a repository offers it.
	Entry struct {
		Version     string   `json:"version"`
		Download    string   `json:"download"`
		Size        int64    `json:"size"`
		Description string   `json:"description"`
		Depends     []string `json:"depends"`
		Conflicts   []string `json:"conflicts"`
	}

	// Index is the parsed repository document: mod names to entries.
	Index struct {
		Mods map[string]Entry `json:"mods"`
	}

	// Set merges any number of indexes into one case-insensitive lookup.
	// Earlier sources win when two repositories offer the same mod.
	Set struct {
		entries map[string]Entry
	}
)

// NewSet returns an empty repository set.
func NewSet() *Set {
	return &Set{entries: map[string]Entry{}}
}

// LoadSet reads every source (file path or http(s) URL) and merges the
// results. Sources that cannot be read or parsed are skipped and reported;
// one broken repository must not hide the others.
func LoadSet(ctx context.Context, sources []string) (*Set, []error) {
	set := NewSet()
	var errs []error

	for _, source := range sources {
		index, err := loadIndex(ctx, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("repository %s: %w", source, err))
			continue
		}
		set.merge(index)
	}
	return set, errs
}

func loadIndex(ctx context.Context, source string) (*Index, error) {
	var (
		data []byte
		err  error
	)
	if isURL(source) {
		data, err = fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return &index, nil
}

func (s *Set) merge(index *Index) {
	for name, entry := range index.Mods {
		key := strings.ToLower(name)
		if _, exists := s.entries[key]; exists {
			continue
		}
		s.entries[key] = entry
	}
}

// Get returns the entry for name, case-insensitively.
func (s *Set) Get(name string) (Entry, bool) {
	entry, ok := s.entries[strings.ToLower(name)]
	return entry, ok
}

// Has reports whether any repository offers name.
func (s *Set) Has(name string) bool {
	_, ok := s.entries[strings.ToLower(name)]
	return ok
}

// Names returns every offered mod name in sorted order.
func (s *Set) Names() []string {
	names := maps.Keys(s.entries)
	slices.Sort(names)
	return names
}

// Len returns the number of offered mods.
func (s *Set) Len() int {
	return len(s.entries)
}

// Download fetches a mod archive to a temporary file and returns its path.
// The caller owns the file and should remove it after extraction.
func Download(ctx context.Context, url string) (string, error) {
	tmp, err := os.CreateTemp("", "modsmith-download-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	resp, err := get(ctx, url)
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download failed with status: %s", resp.Status)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save downloaded archive: %w", err)
	}
	return tmp.Name(), nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}
