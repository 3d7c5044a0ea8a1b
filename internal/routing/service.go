package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/osmgraph"
	"github.com/osmroute/osmroute/pkg/polyline"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Tiles supplies map data to every per-mode graph. Required.
	Tiles osmgraph.TileSource

	// Strategy and MaxIterations are passed to every Router.
	Strategy      Strategy
	MaxIterations int

	// Logger for service operations.
	Logger zerolog.Logger

	Metrics *Metrics

	// CacheTTL is how long computed responses are reused (default: 10 minutes).
	// A negative value disables the response cache.
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.0001, ~11m).
	// Requests whose endpoints fall in the same cells share a cached response.
	CacheGridSize float64

	// CleanupInterval is how often expired responses are dropped (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service answers route and nearest-node requests for every mode. Each mode
// has its own graph, used by one request at a time; all graphs share the
// tile source.
type Service struct {
	tiles           osmgraph.TileSource
	strategy        Strategy
	maxIterations   int
	logger          zerolog.Logger
	metrics         *Metrics
	cacheTTL        time.Duration
	cacheGridSize   float64
	cleanupInterval time.Duration

	sessionsMu sync.Mutex
	sessions   map[osmgraph.Mode]*session

	cacheMu     sync.RWMutex
	cache       map[string]*cachedResponse
	lastCleanup time.Time
}

type session struct {
	mu      sync.Mutex
	builder *osmgraph.Builder
	router  *Router
}

type cachedResponse struct {
	response  *RouteResponse
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.0001
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Service{
		tiles:           cfg.Tiles,
		strategy:        cfg.Strategy,
		maxIterations:   cfg.MaxIterations,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		cleanupInterval: cleanupInterval,
		sessions:        make(map[osmgraph.Mode]*session),
		cache:           make(map[string]*cachedResponse),
	}
}

// Route snaps both endpoints to their nearest routing nodes and searches
// between them. Errors are returned only for invalid input; search outcomes
// are reported in RouteResponse.Status.
func (s *Service) Route(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	if err := validateCoordinates(req.Start); err != nil {
		return nil, &Error{Code: "INVALID_START", Message: "invalid start coordinates", Err: ErrInvalidCoordinates}
	}
	if err := validateCoordinates(req.End); err != nil {
		return nil, &Error{Code: "INVALID_END", Message: "invalid end coordinates", Err: ErrInvalidCoordinates}
	}
	mode, err := osmgraph.ParseMode(string(req.Mode))
	if err != nil {
		return nil, &Error{Code: "INVALID_MODE", Message: "unsupported transport mode", Err: err}
	}

	key := s.cacheKey(mode, req)
	if resp, ok := s.cached(key); ok {
		s.metrics.RecordCacheHit(string(mode))
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for route")
		return resp, nil
	}

	sess := s.session(mode)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp := &RouteResponse{Mode: mode, ComputedAt: time.Now().UTC()}

	startID, ok := sess.router.FindNearestNode(ctx, req.Start.Lat, req.Start.Lon)
	if !ok {
		resp.Status = StatusNoSuchNode
		return resp, nil
	}
	endID, ok := sess.router.FindNearestNode(ctx, req.End.Lat, req.End.Lon)
	if !ok {
		resp.Status = StatusNoSuchNode
		return resp, nil
	}

	g := sess.builder.Graph()
	resp.StartNode = routeNode(g, startID)
	resp.EndNode = routeNode(g, endID)

	result := sess.router.ComputeRoute(ctx, startID, endID)
	resp.Status = result.Status
	resp.Cost = result.Cost
	resp.Iterations = result.Iterations

	if result.Status == StatusSuccess {
		line := make(orb.LineString, 0, len(result.Path))
		resp.Nodes = make([]RouteNode, 0, len(result.Path))
		for _, id := range result.Path {
			n := routeNode(g, id)
			resp.Nodes = append(resp.Nodes, *n)
			line = append(line, orb.Point{n.Lon, n.Lat})
		}
		resp.DistanceMeters = geo.Length(line)
		resp.Polyline = polyline.Encode(line)
	}

	s.logger.Info().
		Str("mode", string(mode)).
		Str("status", string(resp.Status)).
		Int("iterations", resp.Iterations).
		Int("nodes", len(resp.Nodes)).
		Float64("distance_m", resp.DistanceMeters).
		Msg("route computed")

	// Outcomes under a cancelled context depend on which tiles loaded first.
	if resp.Status != StatusGaveUp && ctx.Err() == nil {
		s.store(key, resp)
	}
	return resp, nil
}

// NearestNode returns the routing node closest to c for mode.
func (s *Service) NearestNode(ctx context.Context, mode osmgraph.Mode, c Coordinate) (*RouteNode, error) {
	if err := validateCoordinates(c); err != nil {
		return nil, &Error{Code: "INVALID_COORDINATES", Message: "invalid coordinates", Err: ErrInvalidCoordinates}
	}
	mode, err := osmgraph.ParseMode(string(mode))
	if err != nil {
		return nil, &Error{Code: "INVALID_MODE", Message: "unsupported transport mode", Err: err}
	}

	sess := s.session(mode)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	id, ok := sess.router.FindNearestNode(ctx, c.Lat, c.Lon)
	if !ok {
		return nil, &Error{Code: "NO_NODE", Message: "no routing node near coordinate", Err: ErrNoNearbyNode}
	}
	return routeNode(sess.builder.Graph(), id), nil
}

// Stats returns graph statistics for every mode that has been used, sorted by mode.
func (s *Service) Stats() []osmgraph.Stats {
	s.sessionsMu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	stats := make([]osmgraph.Stats, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		stats = append(stats, sess.builder.Stats())
		sess.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Mode < stats[j].Mode })
	return stats
}

// Reset drops every graph and cached response. In-flight requests finish on
// the graphs they started with.
func (s *Service) Reset() {
	s.sessionsMu.Lock()
	s.sessions = make(map[osmgraph.Mode]*session)
	s.sessionsMu.Unlock()

	s.cacheMu.Lock()
	s.cache = make(map[string]*cachedResponse)
	s.cacheMu.Unlock()
}

// CacheSize returns the number of cached responses.
func (s *Service) CacheSize() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

func (s *Service) session(mode osmgraph.Mode) *session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if sess, ok := s.sessions[mode]; ok {
		return sess
	}

	logger := s.logger.With().Str("mode", string(mode)).Logger()
	builder := osmgraph.NewBuilder(osmgraph.BuilderConfig{
		Mode:   mode,
		Tiles:  s.tiles,
		Logger: logger,
	})
	sess := &session{
		builder: builder,
		router: NewRouter(RouterConfig{
			Builder:       builder,
			MaxIterations: s.maxIterations,
			Strategy:      s.strategy,
			Logger:        logger,
			Metrics:       s.metrics,
		}),
	}
	s.sessions[mode] = sess
	return sess
}

func (s *Service) cached(key string) (*RouteResponse, bool) {
	if s.cacheTTL < 0 {
		return nil, false
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	c, ok := s.cache[key]
	if !ok || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.response, true
}

func (s *Service) store(key string, resp *RouteResponse) {
	if s.cacheTTL < 0 {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[key] = &cachedResponse{response: resp, expiresAt: time.Now().Add(s.cacheTTL)}
	s.cleanupIfNeeded()
}

// cleanupIfNeeded removes expired entries if the cleanup interval has passed.
// Callers hold cacheMu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for key, c := range s.cache {
		if now.After(c.expiresAt) {
			delete(s.cache, key)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug().Int("expired_entries", expired).Msg("cleaned up expired route cache entries")
	}
}

// cacheKey quantizes both endpoints onto the cache grid.
// Format: {mode}:{startLat},{startLon}:{endLat},{endLon}.
func (s *Service) cacheKey(mode osmgraph.Mode, req RouteRequest) string {
	cell := func(v float64) int64 { return int64(math.Floor(v / s.cacheGridSize)) }
	return fmt.Sprintf("%s:%d,%d:%d,%d",
		mode,
		cell(req.Start.Lat), cell(req.Start.Lon),
		cell(req.End.Lat), cell(req.End.Lon),
	)
}

func routeNode(g *osmgraph.Graph, id osmgraph.NodeID) *RouteNode {
	p, _ := g.Coord(id)
	return &RouteNode{ID: id, Lat: p.Lat(), Lon: p.Lon()}
}

// IsInputError reports whether err was caused by an invalid request.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidCoordinates) || errors.Is(err, osmgraph.ErrUnknownMode)
}
