package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/aadhaar-pulse/pkg/blob"
	"github.com/hazyhaar/aadhaar-pulse/pkg/cleaner"
	"github.com/hazyhaar/aadhaar-pulse/pkg/geo"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
)

func cmdClean(args []string) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	rawDir := fs.String("raw-dir", "", "root of the raw category folders (overrides config)")
	outDir := fs.String("out-dir", "", "directory for cleaned outputs (overrides config)")
	only := fs.String("category", "", "comma-separated categories (default all)")
	metricsFile := fs.String("metrics-file", "", "write Prometheus textfile metrics here")
	summary := fs.Bool("summary", false, "print the manifest of the last run and exit")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg := loadConfig(*cfgPath, logger)
	if *rawDir != "" {
		cfg.Clean.RawDir = *rawDir
	}
	if *outDir != "" {
		cfg.Clean.OutDir = *outDir
	}
	manifest := filepath.Join(cfg.Clean.OutDir, cleaner.ManifestFile)
	if *summary {
		if err := printManifest(os.Stdout, manifest); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if fi, err := os.Stat(cfg.Clean.RawDir); err != nil || !fi.IsDir() {
		logger.Error("raw data directory not accessible", "dir", cfg.Clean.RawDir, "error", err)
		os.Exit(1)
	}

	cats, err := selectCategories(*only)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	states := geo.Default()
	if cfg.Clean.StatesFile != "" {
		states, err = geo.Load(cfg.Clean.StatesFile)
		if err != nil {
			logger.Error("load states file", "path", cfg.Clean.StatesFile, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("state table loaded", "canonical", len(states.Canonical()), "aliases", states.AliasCount())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	c := &cleaner.Cleaner{
		RawDir:   cfg.Clean.RawDir,
		OutDir:   cfg.Clean.OutDir,
		Encoding: cfg.Clean.Encoding,
		Detector: cleaner.NewDetector(cfg.Clean.CountKeywords),
		States:   states,
		Logger:   logger,
		Metrics:  metrics.NewPipeline(reg),
	}
	if cfg.Clean.S3.Bucket != "" {
		pub, err := blob.NewS3(ctx, cfg.Clean.S3)
		if err != nil {
			logger.Error("s3 publisher", "error", err)
			os.Exit(1)
		}
		c.Publisher = pub
		logger.Info("publishing cleaned outputs", "bucket", cfg.Clean.S3.Bucket, "prefix", cfg.Clean.S3.Prefix)
	}

	_, err = c.Run(ctx, cats)
	writeMetrics(*metricsFile, reg, logger)
	if err != nil {
		logger.Error("clean failed", "error", err)
		os.Exit(1)
	}
	if err := printManifest(os.Stdout, manifest); err != nil {
		logger.Error("read manifest", "error", err)
		os.Exit(1)
	}
}

func printManifest(w io.Writer, path string) error {
	m, err := cleaner.LoadManifest(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "clean run %s (quality score %d)\n", m.GeneratedAt.Format(time.RFC3339), m.QualityScore)
	for _, r := range m.Categories {
		status := "OK"
		if r.Output == "" {
			status = "NO OUTPUT"
		}
		fmt.Fprintf(w, "[%s] %s  files=%d skipped=%d rows kept=%d dropped=%d\n",
			r.Category, status, r.Files, len(r.FilesSkipped), r.RowsKept, r.RowsDropped)
	}
	return nil
}
