// Package records defines the three stored record shapes (enrolment,
// biometric, demographic) as data-driven category descriptors.
package records

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Band is one age-banded count field of a category.
type Band struct {
	// Column is the stored column name and the preferred CSV header.
	Column string
	// Alternates are other CSV headers carrying the same count, checked
	// before Column.
	Alternates []string
	// Label is the display range used by reporting ("0-5", "18+").
	Label string
}

// Category describes one record shape.
type Category struct {
	Name   string // "enrolment"
	Folder string // raw folder name, e.g. "Biometric_Updates"
	Table  string // store table
	Order  int    // canonical processing order
	Bands  []Band
}

// OutputName returns the combined cleaned file name for this category.
func (c *Category) OutputName() string {
	return "clean_" + strings.ReplaceAll(c.Folder, " ", "_") + "_combined.csv"
}

// BandColumns returns the stored column names in band order.
func (c *Category) BandColumns() []string {
	cols := make([]string, len(c.Bands))
	for i, b := range c.Bands {
		cols[i] = b.Column
	}
	return cols
}

var (
	registryMu sync.RWMutex
	categories = make(map[string]*Category)
)

// Built-in categories.
var (
	Enrolment = &Category{
		Name:   "enrolment",
		Folder: "Enrolment",
		Table:  "enrolment",
		Order:  0,
		Bands: []Band{
			{Column: "age_0_5", Label: "0-5"},
			{Column: "age_5_17", Label: "5-17"},
			{Column: "age_18_greater", Label: "18+"},
		},
	}
	Biometric = &Category{
		Name:   "biometric",
		Folder: "Biometric_Updates",
		Table:  "biometric",
		Order:  1,
		Bands: []Band{
			{Column: "bio_age_5_17", Label: "5-17"},
			{Column: "bio_age_17_greater", Alternates: []string{"bio_age_17_"}, Label: "17+"},
		},
	}
	Demographic = &Category{
		Name:   "demographic",
		Folder: "Demographic",
		Table:  "demographic",
		Order:  2,
		Bands: []Band{
			{Column: "demo_age_5_17", Label: "5-17"},
			{Column: "demo_age_17_greater", Alternates: []string{"demo_age_17_"}, Label: "17+"},
		},
	}
)

func init() {
	Register(Enrolment)
	Register(Biometric)
	Register(Demographic)
}

// Register adds a category to the registry.
func Register(c *Category) {
	registryMu.Lock()
	defer registryMu.Unlock()
	categories[c.Name] = c
}

// Get returns a registered category by name.
func Get(name string) (*Category, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := categories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown category: %q", name)
	}
	return c, nil
}

// All returns all categories in processing order.
func All() []*Category {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]*Category, 0, len(categories))
	for _, c := range categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result
}
