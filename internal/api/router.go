// Package api provides the HTTP API for osmroute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/api/handler"
	"github.com/osmroute/osmroute/internal/api/middleware"
	"github.com/osmroute/osmroute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Routes serves route and nearest-node requests. Required.
	Routes handler.RouteService
	// Graphs backs /v1/ops/status; usually the same *routing.Service as Routes.
	Graphs   handler.GraphStats
	Registry *resilience.Registry
	Checks   map[string]handler.ReadinessCheck

	// ComputeRateLimit overrides middleware.ComputeRateLimit when non-zero.
	ComputeRateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "osmroute-api"
	}

	// Order matters: the request id must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Graphs:    cfg.Graphs,
		Checks:    cfg.Checks,
	})
	routeHandler := handler.NewRouteHandler(cfg.Routes)

	computeLimit := middleware.ComputeRateLimit
	if cfg.ComputeRateLimit.RequestLimit != 0 {
		computeLimit = cfg.ComputeRateLimit
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Route computation may download and merge tiles.
		r.With(middleware.RateLimitByIP(computeLimit), middleware.RequireJSON).
			Post("/routes:compute", routeHandler.ComputeRoute)

		r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).
			Get("/nodes:nearest", routeHandler.NearestNode)
	})

	return r
}
