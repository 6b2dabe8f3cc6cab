// Package geo canonicalizes free-text Indian state and union territory names.
//
// A Table is built once from YAML (the embedded default or an override file)
// and is read-only afterwards, so it can be shared across goroutines.
package geo

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unknown is the sentinel for missing or garbage state values.
const Unknown = "Unknown"

//go:embed states.yaml
var defaultStates []byte

// tableFile is the on-disk YAML layout.
type tableFile struct {
	Canonical []string            `yaml:"canonical"`
	Aliases   map[string][]string `yaml:"aliases"`
}

// Table holds the canonical state set and the folded alias lookup.
type Table struct {
	canonical map[string]struct{}
	lookup    map[string]string
}

// Default returns the table built from the embedded states.yaml.
func Default() *Table {
	t, err := Parse(defaultStates)
	if err != nil {
		panic(fmt.Sprintf("geo: embedded states.yaml: %v", err))
	}
	return t
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read states file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("states file %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a table from YAML bytes. Alias targets must be canonical
// names or Unknown.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse states: %w", err)
	}
	if len(f.Canonical) == 0 {
		return nil, fmt.Errorf("no canonical states defined")
	}

	t := &Table{
		canonical: make(map[string]struct{}, len(f.Canonical)),
		lookup:    make(map[string]string),
	}
	for _, name := range f.Canonical {
		t.canonical[name] = struct{}{}
		t.lookup[fold(name)] = name
	}

	// Sorted targets keep the result stable when two groups list the same key.
	targets := make([]string, 0, len(f.Aliases))
	for target := range f.Aliases {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		if _, ok := t.canonical[target]; !ok && target != Unknown {
			return nil, fmt.Errorf("alias target %q is not a canonical state", target)
		}
		for _, key := range f.Aliases[target] {
			t.lookup[fold(key)] = target
		}
	}
	return t, nil
}

// Normalize resolves a raw state value. present is false when the source
// cell is missing altogether. Unresolvable input is returned title-cased.
func (t *Table) Normalize(raw string, present bool) string {
	if !present {
		return Unknown
	}
	key := fold(raw)
	if key == "" {
		return Unknown
	}
	if name, ok := t.lookup[key]; ok {
		return name
	}
	return key
}

// IsCanonical reports whether name is a member of the canonical set.
func (t *Table) IsCanonical(name string) bool {
	_, ok := t.canonical[name]
	return ok
}

// Canonical returns the canonical names sorted alphabetically.
func (t *Table) Canonical() []string {
	names := make([]string, 0, len(t.canonical))
	for name := range t.canonical {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AliasCount returns the number of folded lookup keys, canonical names included.
func (t *Table) AliasCount() int {
	return len(t.lookup)
}
