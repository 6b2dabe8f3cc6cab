package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/aadhaar-pulse/pkg/ingest"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
)

func cmdIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	dir := fs.String("dir", "", "directory of cleaned CSVs (default clean.out_dir)")
	only := fs.String("category", "", "comma-separated categories (default all)")
	metricsFile := fs.String("metrics-file", "", "write Prometheus textfile metrics here")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg := loadConfig(*cfgPath, logger)
	if *dir == "" {
		*dir = cfg.Clean.OutDir
	}

	cats, err := selectCategories(*only)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st := openStore(cfg, logger)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runs, err := ingest.OpenRunLog(ctx, st)
	if err != nil {
		logger.Error("open run log", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	l := &ingest.Loader{
		Store:     st,
		Sources:   cfg.Ingest.Sources,
		SourceDir: *dir,
		BatchSize: cfg.Ingest.BatchSize,
		Runs:      runs,
		Logger:    logger,
		Metrics:   metrics.NewPipeline(reg),
	}
	rep, err := l.Run(ctx, cats)
	writeMetrics(*metricsFile, reg, logger)
	if err != nil {
		logger.Error("ingest failed", "run", rep.RunID, "error", err)
		os.Exit(1)
	}
	for _, c := range rep.Categories {
		fmt.Printf("[%s] %d records from %d files (%d failed)\n", c.Category, c.Records, c.Files, c.FilesFailed)
	}
	fmt.Printf("run %s done; send SIGHUP to a running server to refresh its cache\n", rep.RunID)
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	limit := fs.Int("n", 20, "rows to show")
	fs.Parse(args)

	logger := newLogger(false)
	cfg := loadConfig(*cfgPath, logger)
	st := openStore(cfg, logger)
	defer st.Close()

	ctx := context.Background()
	runs, err := ingest.OpenRunLog(ctx, st)
	if err != nil {
		logger.Error("open run log", "error", err)
		os.Exit(1)
	}
	list, err := runs.List(ctx, *limit)
	if err != nil {
		logger.Error("list runs", "error", err)
		os.Exit(1)
	}
	if len(list) == 0 {
		fmt.Println("No ingestion runs recorded.")
		return
	}
	for _, r := range list {
		started := time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339)
		took := time.Duration(r.FinishedAt-r.StartedAt) * time.Second
		fmt.Printf("  %s  %-12s  %s  %8d records  %2d files  %2d failed  %s\n",
			r.RunID, r.Category, started, r.Records, r.Files, r.FilesFailed, took)
	}
}
