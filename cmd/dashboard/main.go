package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/wastewater-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wastewater-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/wastewater-dashboard/internal/adapter/sheets"
	"github.com/couchcryptid/wastewater-dashboard/internal/config"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/export"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
	"github.com/couchcryptid/wastewater-dashboard/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// NewLogger also installs the logger as the slog default.
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	viral := sheets.NewClient(domain.SourceViralLoad, cfg.ViralLoadURL, cfg.FetchTimeout, cfg.FetchRetries, metrics, logger)
	cases := sheets.NewClient(domain.SourceCases, cfg.CasesURL, cfg.FetchTimeout, cfg.FetchRetries, metrics, logger)

	// Record publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, clock, logger)
		publisher = writer
		metrics.PublishEnabled.Set(1)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(pipeline.Options{
		ViralLoad:    viral,
		Cases:        cases,
		Site:         cfg.CollectionSite,
		Municipality: cfg.Municipality,
		Exporter:     export.NewEncoder(cfg.ExportCacheSize, metrics),
		Publisher:    publisher,
		Clock:        clock,
		DefaultStart: cfg.DefaultStart,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Publish built datasets in the background so page builds never wait on Kafka.
	go p.Run(ctx)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Warm up once so readiness reflects whether the sheets are reachable.
	go func() {
		if _, err := p.Build(ctx, p.DefaultWindow()); err != nil {
			logger.Warn("initial dashboard build failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
