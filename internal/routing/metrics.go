package routing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/osmroute/osmroute/internal/routing"

// Metrics holds the OpenTelemetry instruments for route searches.
// A nil *Metrics records nothing.
type Metrics struct {
	searchTotal      metric.Int64Counter
	searchDuration   metric.Float64Histogram
	searchIterations metric.Int64Histogram
	cacheHit         metric.Int64Counter
}

// NewMetrics creates the routing instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	searchTotal, err := meter.Int64Counter(
		"routing.search.total",
		metric.WithDescription("Route searches by outcome"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"routing.search.duration",
		metric.WithDescription("Duration of route searches in seconds, including tile loads"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchIterations, err := meter.Int64Histogram(
		"routing.search.iterations",
		metric.WithDescription("Frontier pops per route search"),
		metric.WithUnit("{pop}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"routing.cache.hit",
		metric.WithDescription("Route requests answered from the response cache"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		searchTotal:      searchTotal,
		searchDuration:   searchDuration,
		searchIterations: searchIterations,
		cacheHit:         cacheHit,
	}, nil
}

// RecordSearch records one completed search.
func (m *Metrics) RecordSearch(mode string, status Status, iterations int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("routing.mode", mode),
		attribute.String("routing.status", string(status)),
	)
	ctx := context.TODO()
	m.searchTotal.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
	m.searchIterations.Record(ctx, int64(iterations), attrs)
}

// RecordCacheHit records a response served from cache.
func (m *Metrics) RecordCacheHit(mode string) {
	if m == nil {
		return
	}
	m.cacheHit.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("routing.mode", mode)))
}
