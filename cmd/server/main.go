package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hazyhaar/aadhaar-pulse/pkg/api"
	"github.com/hazyhaar/aadhaar-pulse/pkg/chassis"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
	"github.com/hazyhaar/aadhaar-pulse/pkg/stats"
	"github.com/hazyhaar/aadhaar-pulse/pkg/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "clean":
		cmdClean(os.Args[2:])
	case "ingest":
		cmdIngest(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: aadhaar-pulse <command> [flags]

Commands:
  clean    Normalize raw category CSVs into cleaned combined files
  ingest   Replace stored records with the cleaned files
  serve    Start the statistics API
  runs     List recent ingestion runs
`)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore(cfg config, logger *slog.Logger) *store.Store {
	s, err := store.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	return s
}

// writeMetrics dumps g to path in the node_exporter textfile format.
func writeMetrics(path string, g prometheus.Gatherer, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, g); err != nil {
		logger.Error("write metrics", "path", path, "error", err)
		return
	}
	logger.Info("metrics written", "path", path)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg := loadConfig(*cfgPath, logger)

	st := openStore(cfg, logger)
	defer st.Close()
	counts, err := st.Counts(context.Background())
	if err != nil {
		logger.Error("failed to count records", "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "driver", st.Driver(), "records", counts)

	svc := stats.New(st, stats.Options{
		DataQualityIndex: cfg.Stats.DataQualityIndex,
		CacheTTL:         cfg.Stats.CacheTTL,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := api.NewRouter(api.Options{
		Stats:     svc,
		Counter:   st,
		MCP:       api.NewMCPServer(svc, version),
		Gatherer:  reg,
		Metrics:   metrics.NewHTTP(reg),
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		Logger:    logger,
	})

	// SIGHUP: drop cached statistics after an ingest.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, flushing statistics cache")
			svc.Flush()
		}
	}()

	if cfg.TLS.Enabled {
		srv, err := chassis.New(chassis.Config{
			Addr:         cfg.Addr,
			CertFile:     cfg.TLS.CertFile,
			KeyFile:      cfg.TLS.KeyFile,
			Handler:      router,
			DisableHTTP3: cfg.TLS.HTTP3 != nil && !*cfg.TLS.HTTP3,
			Logger:       logger,
		})
		if err != nil {
			logger.Error("chassis", "error", err)
			os.Exit(1)
		}
		if err := srv.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(shutdownCtx)
		return
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("aadhaar-pulse listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
