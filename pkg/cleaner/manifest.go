package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is written next to the combined outputs of a run.
const ManifestFile = "clean_manifest.yaml"

// Manifest records what a cleaning run produced.
type Manifest struct {
	GeneratedAt  time.Time `yaml:"generated_at"`
	QualityScore int       `yaml:"quality_score"`
	Categories   []Result  `yaml:"categories"`
}

// writeManifest writes a Manifest as YAML to dir/clean_manifest.yaml.
func writeManifest(dir string, results []Result) error {
	m := Manifest{
		GeneratedAt:  time.Now().UTC(),
		QualityScore: QualityScore,
		Categories:   results,
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// LoadManifest reads a manifest written by Run.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ensureDir creates a directory if it doesn't exist.
func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
