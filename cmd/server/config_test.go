package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), quietLogger())
	if cfg.Addr != ":8000" || cfg.DB.Driver != "sqlite" || cfg.Ingest.BatchSize != 10000 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Stats.DataQualityIndex != 98.5 || cfg.Stats.CacheTTL != 5*time.Minute {
		t.Errorf("stats defaults = %+v", cfg.Stats)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `addr: ":9000"
db:
  driver: postgres
  dsn: postgres://db/aadhaar
clean:
  raw_dir: /data/raw
  count_keywords: [packets]
  s3:
    bucket: cleaned
    path_style: true
ingest:
  sources:
    enrolment: /data/enrol*.csv
stats:
  cache_ttl: 30s
tls:
  enabled: true
  http3: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AADHAAR_ADDR", ":9100")

	cfg := loadConfig(path, quietLogger())
	if cfg.Addr != ":9100" {
		t.Errorf("addr = %q, want env override", cfg.Addr)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.DSN != "postgres://db/aadhaar" {
		t.Errorf("db = %+v", cfg.DB)
	}
	if len(cfg.Clean.CountKeywords) != 1 || cfg.Clean.OutDir != "cleaned_data" {
		t.Errorf("clean = %+v", cfg.Clean)
	}
	if cfg.Clean.S3.Bucket != "cleaned" || !cfg.Clean.S3.PathStyle {
		t.Errorf("s3 = %+v", cfg.Clean.S3)
	}
	if cfg.Ingest.Sources["enrolment"] != "/data/enrol*.csv" || cfg.Ingest.BatchSize != 10000 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Stats.CacheTTL != 30*time.Second {
		t.Errorf("cache_ttl = %v", cfg.Stats.CacheTTL)
	}
	if !cfg.TLS.Enabled || cfg.TLS.HTTP3 == nil || *cfg.TLS.HTTP3 {
		t.Errorf("tls = %+v", cfg.TLS)
	}
}

func TestSelectCategories(t *testing.T) {
	all, err := selectCategories("")
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %v, %v", all, err)
	}
	some, err := selectCategories("Demographic, enrolment")
	if err != nil || len(some) != 2 || some[0].Name != "demographic" {
		t.Fatalf("some = %v, %v", some, err)
	}
	if _, err := selectCategories("passport"); err == nil {
		t.Error("expected error for unknown category")
	}
}
