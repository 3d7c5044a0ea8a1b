package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/osmroute/osmroute/internal/osmgraph"
)

// DefaultMaxIterations is the default frontier-pop ceiling per search.
const DefaultMaxIterations = 1_000_000

// ctxCheckEvery is how many pops happen between context checks.
const ctxCheckEvery = 1024

// Strategy selects how the frontier is ordered.
type Strategy string

const (
	// StrategyAStar orders by accumulated cost plus the straight-line cost
	// to the end at the mode's best weight. It never overestimates, so
	// results match StrategyUniform.
	StrategyAStar Strategy = "astar"
	// StrategyUniform orders by accumulated cost only.
	StrategyUniform Strategy = "uniform"
)

// ParseStrategy parses a strategy name; the empty string selects StrategyAStar.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAStar:
		return StrategyAStar, nil
	case StrategyUniform:
		return StrategyUniform, nil
	default:
		return "", fmt.Errorf("unknown search strategy %q", s)
	}
}

// RouterConfig holds configuration for a Router.
type RouterConfig struct {
	// Builder supplies and grows the graph. Required.
	Builder *osmgraph.Builder

	// MaxIterations bounds frontier pops per search.
	// Default: DefaultMaxIterations
	MaxIterations int

	// Strategy orders the frontier.
	// Default: StrategyAStar
	Strategy Strategy

	Logger  zerolog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Router searches one Builder's graph, loading tiles as the frontier
// advances. It shares the Builder's single-caller constraint.
type Router struct {
	builder       *osmgraph.Builder
	maxIterations int
	strategy      Strategy
	logger        zerolog.Logger
	metrics       *Metrics
	tracer        trace.Tracer
}

// NewRouter creates a router over cfg.Builder.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyAStar
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationName)
	}

	return &Router{
		builder:       cfg.Builder,
		maxIterations: cfg.MaxIterations,
		strategy:      cfg.Strategy,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}
}

// FindNearestNode loads the area around (lat, lon) and returns the closest
// routing node known so far.
func (r *Router) FindNearestNode(ctx context.Context, lat, lon float64) (osmgraph.NodeID, bool) {
	r.builder.EnsureArea(ctx, lat, lon)
	return r.builder.Graph().Nearest(lat, lon)
}

// ComputeRoute searches for the cheapest path from start to end. Edge cost
// is planar distance divided by edge weight. The outcome is always reported
// through RouteResult.Status.
func (r *Router) ComputeRoute(ctx context.Context, start, end osmgraph.NodeID) RouteResult {
	ctx, span := r.tracer.Start(ctx, "routing.compute_route", trace.WithAttributes(
		attribute.Int64("routing.start", int64(start)),
		attribute.Int64("routing.end", int64(end)),
		attribute.String("routing.mode", string(r.builder.Mode())),
		attribute.String("routing.strategy", string(r.strategy)),
	))
	defer span.End()

	began := time.Now()
	result := r.search(ctx, start, end)
	duration := time.Since(began)

	span.SetAttributes(
		attribute.String("routing.status", string(result.Status)),
		attribute.Int("routing.iterations", result.Iterations),
	)
	r.metrics.RecordSearch(string(r.builder.Mode()), result.Status, result.Iterations, duration)
	r.logger.Debug().
		Int64("start", int64(start)).
		Int64("end", int64(end)).
		Str("status", string(result.Status)).
		Int("iterations", result.Iterations).
		Int("path_len", len(result.Path)).
		Dur("duration", duration).
		Msg("route search finished")

	return result
}

func (r *Router) search(ctx context.Context, start, end osmgraph.NodeID) RouteResult {
	g := r.builder.Graph()

	startPos, ok := g.Coord(start)
	if !ok {
		return RouteResult{Status: StatusNoSuchNode}
	}
	r.builder.EnsureArea(ctx, startPos.Lat(), startPos.Lon())

	if start == end {
		return RouteResult{Status: StatusSuccess, Path: []osmgraph.NodeID{start}}
	}

	if ctx.Err() != nil {
		return RouteResult{Status: StatusGaveUp}
	}
	seed, _ := g.Edges(start)
	if len(seed) == 0 {
		return RouteResult{Status: StatusNoSuchNode}
	}

	estimate := r.heuristic(g, end)
	closed := map[osmgraph.NodeID]struct{}{start: {}}
	origin := &step{node: start}
	queue := &frontier{}

	expand := func(from *step, edges []osmgraph.Edge) {
		for _, e := range edges {
			if _, done := closed[e.To]; done {
				continue
			}
			d, ok := g.Distance(from.node, e.To)
			if !ok {
				continue
			}
			next := &step{node: e.To, cost: from.cost + d/e.Weight, prev: from}
			queue.push(next, next.cost+estimate(e.To))
		}
	}
	expand(origin, seed)

	iterations := 0
	for queue.Len() > 0 {
		if iterations >= r.maxIterations {
			return RouteResult{Status: StatusGaveUp, Iterations: iterations}
		}
		if iterations%ctxCheckEvery == 0 && ctx.Err() != nil {
			return RouteResult{Status: StatusGaveUp, Iterations: iterations}
		}
		iterations++

		current := queue.pop()
		if _, done := closed[current.node]; done {
			continue
		}
		if current.node == end {
			return RouteResult{
				Status:     StatusSuccess,
				Path:       current.path(),
				Cost:       current.cost,
				Iterations: iterations,
			}
		}
		closed[current.node] = struct{}{}

		if pos, ok := g.Coord(current.node); ok {
			r.builder.EnsureArea(ctx, pos.Lat(), pos.Lon())
			// A cancelled lookup leaves the tile unloaded; the frontier
			// may look exhausted when it is not.
			if ctx.Err() != nil {
				return RouteResult{Status: StatusGaveUp, Iterations: iterations}
			}
		}
		edges, _ := g.Edges(current.node)
		expand(current, edges)
	}

	if ctx.Err() != nil {
		return RouteResult{Status: StatusGaveUp, Iterations: iterations}
	}
	return RouteResult{Status: StatusNoRoute, Iterations: iterations}
}

// heuristic returns the frontier estimate for the configured strategy. The
// A* estimate divides straight-line distance by the best weight the mode can
// get, so it is a lower bound on the remaining cost and consistent.
func (r *Router) heuristic(g *osmgraph.Graph, end osmgraph.NodeID) func(osmgraph.NodeID) float64 {
	zero := func(osmgraph.NodeID) float64 { return 0 }
	if r.strategy != StrategyAStar {
		return zero
	}
	maxWeight := osmgraph.MaxWeight(r.builder.Mode())
	if maxWeight <= 0 || !g.Has(end) {
		return zero
	}
	return func(id osmgraph.NodeID) float64 {
		d, ok := g.Distance(id, end)
		if !ok {
			return 0
		}
		return d / maxWeight
	}
}
