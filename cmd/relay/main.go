package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/closure-relay-service/internal/adapter/descartes"
	httpadapter "github.com/couchcryptid/closure-relay-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/closure-relay-service/internal/adapter/kafka"
	"github.com/couchcryptid/closure-relay-service/internal/config"
	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/enrich"
	"github.com/couchcryptid/closure-relay-service/internal/notify"
	"github.com/couchcryptid/closure-relay-service/internal/observability"
	"github.com/couchcryptid/closure-relay-service/internal/pipeline"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	provider, err := config.Load(*configPath, slog.Default())
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	snap := provider.Snapshot()

	logger := observability.NewLogger(snap.LogLevel, snap.LogFormat)
	metrics := observability.NewMetrics()

	tracking, err := store.OpenTracking(snap.TrackingFile)
	if err != nil {
		logger.Error("failed to open tracking store", "path", snap.TrackingFile, "error", err)
		os.Exit(1)
	}
	allowlist, err := store.OpenAllowlist(snap.AllowlistFile)
	if err != nil {
		logger.Error("failed to open allow list", "path", snap.AllowlistFile, "error", err)
		os.Exit(1)
	}
	features, err := store.OpenFeatures(snap.FeatureCacheFile)
	if err != nil {
		logger.Error("failed to open feature cache", "path", snap.FeatureCacheFile, "error", err)
		os.Exit(1)
	}

	// Feature hydration is feature-flagged by the upstream base URL; without
	// it enrichment resolves from the cache alone.
	var fetcher domain.FeatureFetcher
	if snap.UpstreamBaseURL != "" {
		fetcher = descartes.NewClient(snap.UpstreamBaseURL, snap.UpstreamCookie, snap.UpstreamTimeout, logger)
		logger.Info("upstream feature hydration enabled", "base_url", snap.UpstreamBaseURL)
	} else {
		logger.Info("upstream feature hydration disabled")
	}

	enricher := enrich.New(features, fetcher, logger, metrics)
	renderer := notify.NewRenderer(snap.TileServers)
	dispatcher := notify.NewDispatcher(renderer, nil, nil, notify.DefaultSpacing(), logger, metrics)

	var publisher pipeline.StreamPublisher
	var kafkaWriter *kafkaadapter.Writer
	if snap.KafkaEnabled() {
		kafkaWriter = kafkaadapter.NewWriter(snap.KafkaBrokers, snap.KafkaTopic, logger)
		publisher = kafkaWriter
		logger.Info("closure stream publishing enabled", "topic", snap.KafkaTopic)
	} else {
		logger.Info("closure stream publishing disabled")
	}

	processor := pipeline.New(provider, tracking, enricher, dispatcher, publisher, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onFatal := func(err error) {
		logger.Error("unrecoverable upstream error, shutting down", "error", err)
		stop()
	}

	srv := httpadapter.NewServer(snap.HTTPAddr, provider, allowlist, tracking, processor, processor, logger, onFatal)

	// Config reload loop.
	go provider.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), snap.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
