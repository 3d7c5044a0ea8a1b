// Package main provides the entrypoint for the osmroute tile prefetch worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/config"
	"github.com/osmroute/osmroute/internal/logging"
	"github.com/osmroute/osmroute/internal/provider/resilience"
	"github.com/osmroute/osmroute/internal/telemetry"
	"github.com/osmroute/osmroute/internal/tile"
	"github.com/osmroute/osmroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "osmroute-worker"

func main() {
	cfg, err := config.New()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log, err := logging.New(logging.Config{
		Level:   cfg.Logger.Level,
		Format:  cfg.Logger.Format,
		Service: serviceName,
		Version: Version,
	})
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid logger configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting osmroute worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		DownloadLevel:  cfg.Tiles.DownloadLevel,
		Strategy:       cfg.Routing.Strategy,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	tileMetrics, err := tile.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tile metrics")
	}

	registry := resilience.NewRegistry()
	client := resilience.NewClient(resilience.ClientConfig{
		Name:       "osm-api",
		UserAgent:  cfg.Tiles.UserAgent,
		Timeout:    cfg.Tiles.Timeout,
		MaxRetries: uint64(cfg.Tiles.MaxRetries),
		Registry:   registry,
	})
	cache := tile.NewCache(tile.CacheConfig{
		Dir:           cfg.Tiles.Dir,
		DownloadLevel: cfg.Tiles.DownloadLevel,
		MaxMergeDepth: cfg.Tiles.MaxMergeDepth,
		Fetcher: tile.NewHTTPFetcher(tile.FetcherConfig{
			BaseURL:    cfg.Tiles.BaseURL,
			HTTPClient: client,
			Logger:     log,
		}),
		Logger:  log,
		Metrics: tileMetrics,
	})

	prefetchCfg := worker.DefaultPrefetchConfig()
	prefetchCfg.Radius = cfg.Worker.Radius
	prefetchCfg.Concurrency = cfg.Worker.Concurrency
	job := worker.NewPrefetchJob(worker.PrefetchJobConfig{
		Config: prefetchCfg,
		Tiles:  cache,
		Logger: log,
	})

	// Worker exposes a health endpoint for Cloud Run.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		if err := cache.Check(context.Background()); err != nil {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   http.StatusText(status),
			"version":  Version,
			"prefetch": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	switch {
	case cfg.PubSubEnabled():
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.SubscriptionID,
			Processor:        worker.NewProcessor(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	case cfg.Worker.Interval > 0:
		log.Info().Dur("interval", cfg.Worker.Interval).Msg("prefetching on a schedule")
		go job.RunEvery(ctx, cfg.Worker.Interval)
	default:
		go job.Run(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
