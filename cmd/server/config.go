package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/aadhaar-pulse/pkg/blob"
	"github.com/hazyhaar/aadhaar-pulse/pkg/cleaner"
	"github.com/hazyhaar/aadhaar-pulse/pkg/ingest"
	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
	"github.com/hazyhaar/aadhaar-pulse/pkg/stats"
	"github.com/hazyhaar/aadhaar-pulse/pkg/store"
)

type config struct {
	Addr   string       `yaml:"addr"`
	DB     dbConfig     `yaml:"db"`
	Clean  cleanConfig  `yaml:"clean"`
	Ingest ingestConfig `yaml:"ingest"`
	Stats  statsConfig  `yaml:"stats"`
	API    apiConfig    `yaml:"api"`
	TLS    tlsConfig    `yaml:"tls"`
}

type dbConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type cleanConfig struct {
	RawDir        string      `yaml:"raw_dir"`
	OutDir        string      `yaml:"out_dir"`
	Encoding      string      `yaml:"encoding"`
	CountKeywords []string    `yaml:"count_keywords"`
	StatesFile    string      `yaml:"states_file"`
	S3            blob.Config `yaml:"s3"`
}

type ingestConfig struct {
	BatchSize int `yaml:"batch_size"`
	// Sources overrides the glob of cleaned CSVs per category name.
	Sources map[string]string `yaml:"sources"`
}

type statsConfig struct {
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	DataQualityIndex float64       `yaml:"data_quality_index"`
}

type apiConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type tlsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	HTTP3    *bool  `yaml:"http3"`
}

func defaultConfig() config {
	return config{
		Addr: ":8000",
		DB:   dbConfig{Driver: store.DriverSQLite, DSN: "aadhaar.db"},
		Clean: cleanConfig{
			RawDir:        "raw_data",
			OutDir:        "cleaned_data",
			Encoding:      "utf-8",
			CountKeywords: cleaner.DefaultCountKeywords,
		},
		Ingest: ingestConfig{BatchSize: ingest.DefaultBatchSize},
		Stats: statsConfig{
			CacheTTL:         5 * time.Minute,
			DataQualityIndex: stats.DefaultDataQualityIndex,
		},
		API: apiConfig{RateLimit: 20, Burst: 40},
	}
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			applyEnv(&cfg)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	applyEnv(&cfg)
	return cfg
}

// applyEnv lets deployments override the store and listen address without
// editing the file.
func applyEnv(cfg *config) {
	if v := os.Getenv("AADHAAR_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("AADHAAR_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("AADHAAR_ADDR"); v != "" {
		cfg.Addr = v
	}
}

// selectCategories resolves a comma-separated list of category names; empty
// selects all of them.
func selectCategories(list string) ([]*records.Category, error) {
	if strings.TrimSpace(list) == "" {
		return records.All(), nil
	}
	var cats []*records.Category
	for _, name := range strings.Split(list, ",") {
		c, err := records.Get(name)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}
