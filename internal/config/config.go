// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/osmroute/osmroute/internal/routing"
	"github.com/osmroute/osmroute/internal/tile"
)

type (
	// Config is the full configuration shared by every binary.
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Tiles     Tiles     `envPrefix:"TILES_"`
		Routing   Routing   `envPrefix:"ROUTING_"`
		Worker    Worker    `envPrefix:"WORKER_"`
	}

	HTTP struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RateLimit       int           `env:"RATE_LIMIT" envDefault:"60"`
	}

	Logger struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"json"`
	}

	Telemetry struct {
		Enabled      bool    `env:"ENABLED" envDefault:"false"`
		OTLPEndpoint string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
		Environment  string  `env:"ENVIRONMENT" envDefault:"development"`
		SampleRatio  float64 `env:"SAMPLE_RATIO" envDefault:"1"`
	}

	Tiles struct {
		Dir           string        `env:"DIR" envDefault:"./tiles"`
		BaseURL       string        `env:"BASE_URL" envDefault:"https://api.openstreetmap.org"`
		UserAgent     string        `env:"USER_AGENT" envDefault:"osmroute/dev"`
		DownloadLevel int           `env:"DOWNLOAD_LEVEL" envDefault:"15"`
		MaxMergeDepth int           `env:"MAX_MERGE_DEPTH" envDefault:"4"`
		Timeout       time.Duration `env:"TIMEOUT" envDefault:"60s"`
		MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	}

	Routing struct {
		Strategy      string        `env:"STRATEGY" envDefault:"astar"`
		MaxIterations int           `env:"MAX_ITERATIONS" envDefault:"1000000"`
		CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	}

	Worker struct {
		ProjectID      string        `env:"PROJECT_ID"`
		SubscriptionID string        `env:"SUBSCRIPTION_ID"`
		Radius         int           `env:"RADIUS" envDefault:"1"`
		Concurrency    int           `env:"CONCURRENCY" envDefault:"3"`
		Interval       time.Duration `env:"INTERVAL" envDefault:"0s"`
	}
)

// New loads an optional .env file and parses the environment.
func New() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Tiles.DownloadLevel < 0 || c.Tiles.DownloadLevel > tile.MaxZoom {
		return fmt.Errorf("config: TILES_DOWNLOAD_LEVEL %d out of range 0..%d", c.Tiles.DownloadLevel, tile.MaxZoom)
	}
	if c.Tiles.MaxMergeDepth < tile.NoMergeLimit {
		return fmt.Errorf("config: TILES_MAX_MERGE_DEPTH must be %d (no limit) or more", tile.NoMergeLimit)
	}
	if c.Tiles.MaxRetries < 0 {
		return fmt.Errorf("config: TILES_MAX_RETRIES must not be negative")
	}
	if strings.TrimSpace(c.Tiles.Dir) == "" {
		return fmt.Errorf("config: TILES_DIR is required")
	}
	if _, err := routing.ParseStrategy(c.Routing.Strategy); err != nil {
		return fmt.Errorf("config: ROUTING_STRATEGY: %w", err)
	}
	if c.Routing.MaxIterations <= 0 {
		return fmt.Errorf("config: ROUTING_MAX_ITERATIONS must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: TELEMETRY_SAMPLE_RATIO must be within 0..1")
	}
	if c.Worker.Radius < 0 {
		return fmt.Errorf("config: WORKER_RADIUS must not be negative")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("config: WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// Strategy returns the parsed routing strategy. Validate has already checked it.
func (c *Config) Strategy() routing.Strategy {
	s, _ := routing.ParseStrategy(c.Routing.Strategy)
	return s
}

// PubSubEnabled reports whether the worker should consume a subscription.
func (c *Config) PubSubEnabled() bool {
	return c.Worker.ProjectID != "" && c.Worker.SubscriptionID != ""
}
