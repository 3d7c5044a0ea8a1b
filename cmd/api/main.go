// Package main provides the entrypoint for the osmroute API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/api"
	"github.com/osmroute/osmroute/internal/api/handler"
	"github.com/osmroute/osmroute/internal/api/middleware"
	"github.com/osmroute/osmroute/internal/config"
	"github.com/osmroute/osmroute/internal/logging"
	"github.com/osmroute/osmroute/internal/provider/resilience"
	"github.com/osmroute/osmroute/internal/routing"
	"github.com/osmroute/osmroute/internal/telemetry"
	"github.com/osmroute/osmroute/internal/tile"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "osmroute-api"

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
		Msg("starting osmroute API")

	ctx := context.Background()
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	tileMetrics, err := tile.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tile metrics")
	}
	routingMetrics, err := routing.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize routing metrics")
	}

	registry := resilience.NewRegistry()
	cache := newTileCache(cfg, log, registry, tileMetrics)
	log.Info().
		Str("dir", cache.Dir()).
		Int("download_level", cache.DownloadLevel()).
		Msg("tile cache initialized")

	routes := routing.NewService(routing.ServiceConfig{
		Tiles:         cache,
		Strategy:      cfg.Strategy(),
		MaxIterations: cfg.Routing.MaxIterations,
		Logger:        log,
		Metrics:       routingMetrics,
		CacheTTL:      cfg.Routing.CacheTTL,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Routes:      routes,
		Graphs:      routes,
		Registry:    registry,
		Checks: map[string]handler.ReadinessCheck{
			"tiles": cache.Check,
		},
		ComputeRateLimit: middleware.RateLimitConfig{
			RequestLimit: cfg.HTTP.RateLimit,
			WindowLength: time.Minute,
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func newTileCache(cfg *config.Config, log zerolog.Logger, registry *resilience.Registry, metrics *tile.Metrics) *tile.Cache {
	client := resilience.NewClient(resilience.ClientConfig{
		Name:       "osm-api",
		UserAgent:  cfg.Tiles.UserAgent,
		Timeout:    cfg.Tiles.Timeout,
		MaxRetries: uint64(cfg.Tiles.MaxRetries),
		Registry:   registry,
	})

	return tile.NewCache(tile.CacheConfig{
		Dir:           cfg.Tiles.Dir,
		DownloadLevel: cfg.Tiles.DownloadLevel,
		MaxMergeDepth: cfg.Tiles.MaxMergeDepth,
		Fetcher: tile.NewHTTPFetcher(tile.FetcherConfig{
			BaseURL:    cfg.Tiles.BaseURL,
			HTTPClient: client,
			Logger:     log,
		}),
		Logger:  log,
		Metrics: metrics,
	})
}
