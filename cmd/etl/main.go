package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/met-odp-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/met-odp-etl/internal/adapter/kafka"
	"github.com/couchcryptid/met-odp-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/met-odp-etl/internal/config"
	"github.com/couchcryptid/met-odp-etl/internal/convert"
	"github.com/couchcryptid/met-odp-etl/internal/formatcache"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	"github.com/couchcryptid/met-odp-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	runID := uuid.NewString()

	cache, err := formatcache.New(cfg.FormatCacheSize, metrics)
	if err != nil {
		logger.Error("failed to create format cache", "error", err)
		os.Exit(1)
	}

	// Optional sinks, fed after the output file.
	var sinks []pipeline.BatchLoader
	var closers []io.Closer
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, runID, clock, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.New(cfg.SQLitePath, runID, clock)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}

	converter := convert.New(convert.Options{
		OutputDir:    cfg.OutputDir,
		OutputFormat: cfg.OutputFormat,
		Filter:       cfg.RecordFilter,
		Zip:          cfg.OutputZip,
		Strict:       cfg.Strict,
		BatchSize:    cfg.BatchSize,
		RunID:        runID,
		Clock:        clock,
	}, cache, logger, metrics, sinks...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, converter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Convert every input once; health and metrics stay up afterwards.
	converted := make(chan struct{})
	go func() {
		defer close(converted)
		logger.Info("conversion started", "run_id", runID, "files", len(cfg.InputPaths), "output_format", cfg.OutputFormat.String())
		results, err := converter.ConvertAll(ctx, cfg.InputPaths)
		if err != nil {
			logger.Error("conversion finished with errors", "run_id", runID, "converted", len(results), "error", err)
			return
		}
		logger.Info("conversion finished", "run_id", runID, "converted", len(results), "cached_formats", cache.Len())
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Sinks stay open until the conversion has unwound and removed any
	// partial output.
	if !waitConverted(shutdownCtx, converted) {
		logger.Error("conversion did not stop before shutdown timeout", "timeout", cfg.ShutdownTimeout)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// waitConverted blocks until converted is closed or ctx ends. It reports
// whether the conversion finished.
func waitConverted(ctx context.Context, converted <-chan struct{}) bool {
	select {
	case <-converted:
		return true
	case <-ctx.Done():
		return false
	}
}
