package geo

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNormalize_Aliases(t *testing.T) {
	tbl := Default()

	tests := []struct {
		input, want string
	}{
		{"wb", "West Bengal"},
		{"WB.", "West Bengal"},
		{"Westbengal", "West Bengal"},
		{"  west bangal ", "West Bengal"},
		{"J&K", "Jammu and Kashmir"},
		{"j & k", "Jammu and Kashmir"},
		{"JAMMU KASHMIR", "Jammu and Kashmir"},
		{"orissa", "Odisha"},
		{"Rajasthan.", "Rajasthan"},
		{"Goa .", "Goa"},
		{"d&nh", "Dadra and Nagar Haveli and Daman and Diu"},
		{"the dadra and nagar haveli and daman and diu", "Dadra and Nagar Haveli and Daman and Diu"},
		{"Dadra and Nagar Haveli and Daman and Diu", "Dadra and Nagar Haveli and Daman and Diu"},
		{"andaman & nicobar", "Andaman and Nicobar Islands"},
		{"TAMIL NADU", "Tamil Nadu"},
		{"100000", Unknown},
		{"0", Unknown},
		{"NULL", Unknown},
		{"", Unknown},
		{"   ", Unknown},
	}
	for _, tt := range tests {
		got := tbl.Normalize(tt.input, true)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_Missing(t *testing.T) {
	if got := Default().Normalize("West Bengal", false); got != Unknown {
		t.Errorf("missing value = %q, want %q", got, Unknown)
	}
}

func TestNormalize_Unresolved(t *testing.T) {
	tbl := Default()
	got := tbl.Normalize("atlantis", true)
	if got != "Atlantis" {
		t.Errorf("Normalize(atlantis) = %q, want Atlantis", got)
	}
	if tbl.IsCanonical(got) {
		t.Error("Atlantis should not be canonical")
	}
}

func TestEveryAliasKeyResolves(t *testing.T) {
	var f tableFile
	if err := yaml.Unmarshal(defaultStates, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tbl := Default()
	for target, keys := range f.Aliases {
		for _, key := range keys {
			if got := tbl.Normalize(key, true); got != target {
				t.Errorf("Normalize(%q) = %q, want %q", key, got, target)
			}
		}
	}
}

func TestCanonicalSet(t *testing.T) {
	tbl := Default()
	names := tbl.Canonical()
	if len(names) != 36 {
		t.Fatalf("canonical count = %d, want 36", len(names))
	}
	for _, n := range names {
		if got := tbl.Normalize(n, true); got != n {
			t.Errorf("canonical %q normalized to %q", n, got)
		}
	}
	if tbl.IsCanonical(Unknown) {
		t.Error("Unknown must not be canonical")
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"west bengal", "West Bengal"},
		{"J&K", "J&K"},
		{"d&nh", "D&Nh"},
		{"10th street", "10Th Street"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := titleCase(tt.input); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.yaml")
	os.WriteFile(path, []byte(`canonical:
  - Goa
aliases:
  Goa:
    - Panaji
`), 0o644)

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tbl.Normalize("PANAJI", true); got != "Goa" {
		t.Errorf("Normalize(PANAJI) = %q, want Goa", got)
	}
	if tbl.IsCanonical("Kerala") {
		t.Error("override table should replace the default set")
	}
}

func TestParse_BadTarget(t *testing.T) {
	_, err := Parse([]byte(`canonical: [Goa]
aliases:
  Atlantis: [Atl]
`))
	if err == nil {
		t.Fatal("expected error for non-canonical alias target")
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse([]byte(`aliases: {}`)); err == nil {
		t.Fatal("expected error for empty canonical set")
	}
}
