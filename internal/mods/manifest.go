// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed mod_schema.json
var manifestSchema []byte

var (
	compileManifestSchema sync.Once
	compiledSchema        *jsonschema.Schema
	compileErr            error
)

type (
	// Compatibility is the engine version window a mod declares itself
	// compatible with. Empty bounds are open ended.
	Compatibility struct {
		Min string `json:"min"`
		Max string `json:"max"`
	}

	// Manifest is the parsed mod.json. Only the fields the manager consumes
	// are modelled; everything else belongs to the game-content loaders and
	// stays in the file untouched.
	Manifest struct {
		Name          string        `json:"name"`
		Description   string        `json:"description"`
		Author        string        `json:"author"`
		Version       string        `json:"version"`
		ModType       string        `json:"modType"`
		Depends       []string      `json:"depends"`
		Conflicts     []string      `json:"conflicts"`
		Compatibility Compatibility `json:"compatibility"`
	}
)

// ParseManifest decodes and schema-validates a mod.json payload.
// Dependency and conflict names are normalised to lower case, matching the
// case-insensitive mod namespace.
func ParseManifest(data []byte) (*Manifest, error) {
	schema, err := manifestSchemaCompiled()
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("manifest schema validation failed: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	manifest.Depends = lowerAll(manifest.Depends)
	manifest.Conflicts = lowerAll(manifest.Conflicts)
	return &manifest, nil
}

// LoadManifest reads and parses the manifest file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func manifestSchemaCompiled() (*jsonschema.Schema, error) {
	compileManifestSchema.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("inmemory://mod_schema.json", bytes.NewReader(manifestSchema)); err != nil {
			compileErr = fmt.Errorf("add manifest schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("inmemory://mod_schema.json")
	})
	return compiledSchema, compileErr
}

// Satisfied reports whether engineVersion falls inside the declared window.
// Versions compare as dotted numeric segments; missing segments count as
// zero, so "1.4" equals "1.4.0".
func (c Compatibility) Satisfied(engineVersion string) bool {
	if c.Min != "" && compareVersions(engineVersion, c.Min) < 0 {
		return false
	}
	if c.Max != "" && compareVersions(engineVersion, c.Max) > 0 {
		return false
	}
	return true
}

// compareVersions returns -1, 0 or 1 ordering two dotted numeric versions.
// Non-numeric segments compare as zero; the original launchers shipped
// version strings that are always numeric, so this only matters for
// hand-edited manifests.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}

func lowerAll(names []string) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.ToLower(name)
	}
	return out
}
