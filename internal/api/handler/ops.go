package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/api/models"
	"github.com/osmroute/osmroute/internal/api/response"
	"github.com/osmroute/osmroute/internal/osmgraph"
	"github.com/osmroute/osmroute/internal/provider/resilience"
)

// GraphStats reports the in-memory graphs. *routing.Service implements it.
type GraphStats interface {
	Stats() []osmgraph.Stats
	CacheSize() int
}

// ReadinessCheck reports whether a local dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// OpsHandlerConfig holds configuration for the ops endpoints.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Graphs    GraphStats
	// Checks are run by the readiness endpoint, keyed by subsystem name.
	Checks map[string]ReadinessCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	graphs    GraphStats
	checks    map[string]ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		graphs:    cfg.Graphs,
		checks:    cfg.Checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Failing local checks make the
// instance unready; an open upstream circuit only degrades it, since cached
// tiles can still be served.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]any)
	status := models.HealthStatusOK

	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			details[name] = err.Error()
			status = models.HealthStatusFail
			continue
		}
		details[name] = "ok"
	}

	if status == models.HealthStatusOK && h.upstreamStatus() != models.HealthStatusOK {
		status = models.HealthStatusDegraded
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - upstream circuits and graph sizes.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    h.upstreamStatus(),
		Time:      models.Timestamp(time.Now()),
		Upstreams: h.upstreams(),
		Graphs:    []models.GraphStatus{},
	}
	if h.graphs != nil {
		for _, s := range h.graphs.Stats() {
			status.Graphs = append(status.Graphs, models.GraphStatus{
				Mode:        string(s.Mode),
				Nodes:       s.Nodes,
				Edges:       s.Edges,
				MergedTiles: s.MergedTiles,
			})
		}
		status.CachedResponse = h.graphs.CacheSize()
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) upstreams() []models.UpstreamStatus {
	out := []models.UpstreamStatus{}
	if h.registry == nil {
		return out
	}
	for _, u := range h.registry.Snapshot() {
		s := models.UpstreamStatus{
			Name:          u.Name,
			Status:        healthStatus(u),
			CircuitState:  u.CircuitState.String(),
			LastSuccessAt: models.TimestampPtr(u.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(u.LastFailureAt),
		}
		if u.LastError != "" {
			msg := u.LastError
			s.Message = &msg
		}
		out = append(out, s)
	}
	return out
}

// upstreamStatus is FAIL when every upstream circuit is open, DEGRADED when
// any is not closed.
func (h *OpsHandler) upstreamStatus() models.HealthStatus {
	if h.registry == nil {
		return models.HealthStatusOK
	}
	snapshot := h.registry.Snapshot()
	open, notClosed := 0, 0
	for i := range snapshot {
		if snapshot[i].IsUnhealthy() {
			open++
		}
		if !snapshot[i].IsHealthy() {
			notClosed++
		}
	}
	switch {
	case len(snapshot) > 0 && open == len(snapshot):
		return models.HealthStatusFail
	case notClosed > 0:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func healthStatus(u *resilience.UpstreamHealth) models.HealthStatus {
	switch u.Status() {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
