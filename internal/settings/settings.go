// SPDX-License-Identifier: MPL-2.0

// Package settings persists which mods and submods are enabled.
//
// The on-disk format is modSettings.json, owned by the game engine:
//
//	{
//	    "activeMods": {
//	        "magic-fader": { "active": false },
//	        "reworked-commanders": {
//	            "active": true,
//	            "mods": {
//	                "reworkedwindow": { "active": false }
//	            }
//	        }
//	    }
//	}
//
// The tree mirrors the dotted mod-name hierarchy: submod "parent.child" is
// addressed as activeMods -> parent -> mods -> child. Nodes may carry
// arbitrary engine-owned sibling keys (checksums, validation flags); writes
// must preserve every key this package does not understand.
package settings

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the activation document file name inside the config directory.
const FileName = "modSettings.json"

const (
	activeKey = "active"
	modsKey   = "mods"
)

type (
	// Node is one entry of the activation tree. Active is nil when the
	// document does not record a state for this node. Extra holds sibling
	// keys owned by the engine; they round-trip untouched.
	Node struct {
		Active *bool
		Mods   map[string]*Node
		Extra  map[string]json.RawMessage
	}

	// Document is the full activation document. ActiveMods is the tree of
	// activation state; Extra preserves any other top-level keys.
	Document struct {
		ActiveMods map[string]*Node
		Extra      map[string]json.RawMessage
	}

	// Store loads and saves the activation document at a fixed path.
	Store struct {
		path string
	}
)

// NewDocument returns an empty activation document.
func NewDocument() *Document {
	return &Document{ActiveMods: map[string]*Node{}}
}

// Segments splits a dotted mod name into activation tree path segments.
// "parent.child" becomes ["parent", "child"].
func Segments(name string) []string {
	return strings.Split(strings.ToLower(name), ".")
}

// SetActive writes the active leaf for the node addressed by segments,
// creating intermediate nodes as needed. Sibling keys and submod subtrees of
// every touched node are left unchanged.
func (d *Document) SetActive(segments []string, active bool) {
	if len(segments) == 0 {
		return
	}
	if d.ActiveMods == nil {
		d.ActiveMods = map[string]*Node{}
	}

	node := childNode(d.ActiveMods, segments[0])
	for _, seg := range segments[1:] {
		if node.Mods == nil {
			node.Mods = map[string]*Node{}
		}
		node = childNode(node.Mods, seg)
	}
	node.Active = &active
}

// IsActive reports whether the node addressed by segments exists and is
// marked active. Nodes absent from the document are inactive.
func (d *Document) IsActive(segments []string) bool {
	node := d.lookup(segments)
	return node != nil && node.Active != nil && *node.Active
}

// Has reports whether the document records any state for the addressed node.
func (d *Document) Has(segments []string) bool {
	return d.lookup(segments) != nil
}

func (d *Document) lookup(segments []string) *Node {
	if len(segments) == 0 || d.ActiveMods == nil {
		return nil
	}
	node := d.ActiveMods[segments[0]]
	for _, seg := range segments[1:] {
		if node == nil || node.Mods == nil {
			return nil
		}
		node = node.Mods[seg]
	}
	return node
}

func childNode(m map[string]*Node, key string) *Node {
	if n, ok := m[key]; ok && n != nil {
		return n
	}
	n := &Node{}
	m[key] = n
	return n
}

// UnmarshalJSON decodes a node, routing "active" and "mods" into typed fields
// and keeping every other key as raw sibling data.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Node{}
	for key, value := range raw {
		switch key {
		case activeKey:
			var active bool
			if err := json.Unmarshal(value, &active); err != nil {
				return err
			}
			n.Active = &active
		case modsKey:
			if err := json.Unmarshal(value, &n.Mods); err != nil {
				return err
			}
		default:
			if n.Extra == nil {
				n.Extra = map[string]json.RawMessage{}
			}
			n.Extra[key] = value
		}
	}
	return nil
}

// MarshalJSON reassembles the node with its preserved sibling keys.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+2)
	for key, value := range n.Extra {
		out[key] = value
	}
	if n.Active != nil {
		out[activeKey] = *n.Active
	}
	if len(n.Mods) > 0 {
		out[modsKey] = n.Mods
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the document, preserving unknown top-level keys.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Document{ActiveMods: map[string]*Node{}}
	for key, value := range raw {
		if key == "activeMods" {
			if err := json.Unmarshal(value, &d.ActiveMods); err != nil {
				return err
			}
			continue
		}
		if d.Extra == nil {
			d.Extra = map[string]json.RawMessage{}
		}
		d.Extra[key] = value
	}
	return nil
}

// MarshalJSON reassembles the document with its preserved top-level keys.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+1)
	for key, value := range d.Extra {
		out[key] = value
	}
	out["activeMods"] = d.ActiveMods
	return json.Marshal(out)
}

// NewStore creates a Store persisting the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the absolute location of the activation document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the activation document. A missing or malformed file yields an
// empty document so a first run (or a corrupted file) never blocks startup;
// corruption is logged and the file is rewritten on the next Save.
func (s *Store) Load() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cannot read mod settings, starting empty", "path", s.path, "error", err)
		}
		return NewDocument()
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("mod settings file is malformed, starting empty", "path", s.path, "error", err)
		return NewDocument()
	}
	return doc
}

// Save writes the whole document back to disk, creating the parent directory
// if needed.
func (s *Store) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
