// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"top level", "skyfall-extras", []string{"skyfall-extras"}},
		{"submod", "hota.factory", []string{"hota", "factory"}},
		{"nested submod", "a.b.c", []string{"a", "b", "c"}},
		{"case folded", "HotA.Factory", []string{"hota", "factory"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Segments(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Segments(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Segments(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSetActive_RoundTrip(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	doc.SetActive(Segments("parent.child"), true)

	if !doc.IsActive(Segments("parent.child")) {
		t.Error("leaf written by SetActive should read back active")
	}
	if doc.IsActive(Segments("parent")) {
		t.Error("intermediate node should not become active implicitly")
	}
	if !doc.Has(Segments("parent")) {
		t.Error("intermediate node should exist after submod write")
	}
}

func TestSetActive_PreservesSiblings(t *testing.T) {
	t.Parallel()

	raw := `{
		"format": 1,
		"activeMods": {
			"hota": {
				"active": true,
				"checksum": "abc123",
				"mods": {
					"factory": { "active": true, "validated": true }
				}
			},
			"wog": { "active": false }
		}
	}`

	doc := NewDocument()
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Flip one deep leaf, then verify everything else survived.
	doc.SetActive(Segments("hota.factory"), false)

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}

	if out["format"] != float64(1) {
		t.Error("top-level sibling key was lost")
	}

	active := out["activeMods"].(map[string]any)
	hota := active["hota"].(map[string]any)
	if hota["checksum"] != "abc123" {
		t.Error("node sibling key was lost")
	}
	if hota["active"] != true {
		t.Error("parent active leaf must be unchanged")
	}

	factory := hota["mods"].(map[string]any)["factory"].(map[string]any)
	if factory["active"] != false {
		t.Error("addressed leaf was not written")
	}
	if factory["validated"] != true {
		t.Error("leaf sibling key was lost")
	}

	wog := active["wog"].(map[string]any)
	if wog["active"] != false {
		t.Error("unrelated top-level mod was altered")
	}
}

func TestIsActive_AbsentIsInactive(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	if doc.IsActive(Segments("ghost")) {
		t.Error("absent mod must read inactive")
	}
	if doc.Has(Segments("ghost")) {
		t.Error("absent mod must not be reported present")
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), FileName))
	doc := store.Load()
	if doc == nil {
		t.Fatal("Load must return a usable document for a missing file")
	}
	if len(doc.ActiveMods) != 0 {
		t.Errorf("expected empty document, got %d entries", len(doc.ActiveMods))
	}
}

func TestStore_LoadMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := NewStore(path).Load()
	if doc == nil || len(doc.ActiveMods) != 0 {
		t.Error("malformed file must fall back to an empty document")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", FileName)
	store := NewStore(path)

	doc := NewDocument()
	doc.SetActive(Segments("skyfall-extras"), true)
	doc.SetActive(Segments("hota.factory"), false)

	if err := store.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := store.Load()
	if !loaded.IsActive(Segments("skyfall-extras")) {
		t.Error("skyfall-extras should be active after round trip")
	}
	if loaded.IsActive(Segments("hota.factory")) {
		t.Error("hota.factory should be inactive after round trip")
	}
	if !loaded.Has(Segments("hota.factory")) {
		t.Error("hota.factory state should persist")
	}
}
