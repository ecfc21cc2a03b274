package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/campaignsearch/internal/config"
	"github.com/dshills/campaignsearch/internal/embedder"
	"github.com/dshills/campaignsearch/internal/indexer"
	"github.com/dshills/campaignsearch/internal/logger"
	"github.com/dshills/campaignsearch/internal/mcp"
	"github.com/dshills/campaignsearch/internal/searcher"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/internal/telemetry"
	"github.com/dshills/campaignsearch/internal/tracing"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Campaign Search MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is reserved for MCP protocol
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *logger.Logger) error {
	log.Info("campaignsearch starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"vector_extension", storage.VectorExtensionAvailable,
	)

	shutdownTracing, err := tracing.Init(context.Background(), tracing.ConfigFrom(cfg, version), log.With("component", "tracing"))
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// One embedder instance so indexing and search share the cache
	emb, err := embedder.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var tok embedder.Tokenizer
	tok, err = embedder.NewTokenizer(emb.Model())
	if err != nil {
		log.Warn("tokenizer unavailable, counting words", "model", emb.Model(), "error", err)
		tok = embedder.NewWordTokenizer()
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	recorder := telemetry.NewRecorder(store, metrics, log.With("component", "telemetry"))

	srch := searcher.NewSearcher(store,
		searcher.WithEmbedder(embedder.NewQueryEmbedder(emb, tok, embedder.WithLogger(log))),
		searcher.WithRecorder(recorder, telemetry.NewSampler(cfg.MetricsSampleRate)),
		searcher.WithConfig(searcher.ConfigFrom(cfg)),
		searcher.WithLogger(log.With("component", "searcher")),
	)
	defer srch.WaitForMetrics()

	idx := indexer.New(store,
		indexer.WithEmbedder(emb),
		indexer.WithTokenizer(tok),
		indexer.WithLogger(log.With("component", "indexer")),
	)

	server, err := mcp.NewServer(store, idx, srch,
		mcp.WithLogger(log.With("component", "mcp")),
		mcp.WithIndexConfig(indexer.ConfigFrom(cfg)),
	)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metricsServer := serveMetrics(cfg.MetricsAddr, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		cancel()
		return nil
	case err := <-errChan:
		return err
	}
}

// serveMetrics exposes the default Prometheus registry on addr
func serveMetrics(addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", "error", err)
		}
	}()
	return srv
}
