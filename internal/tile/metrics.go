package tile

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/osmroute/osmroute/internal/tile"

// Metrics holds the OpenTelemetry instruments for the tile cache.
// A nil *Metrics records nothing.
type Metrics struct {
	cacheHit         metric.Int64Counter
	cacheMiss        metric.Int64Counter
	downloadTotal    metric.Int64Counter
	downloadDuration metric.Float64Histogram
	downloadSize     metric.Int64Histogram
	mergeTotal       metric.Int64Counter
}

// NewMetrics creates the tile cache instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	cacheHit, err := meter.Int64Counter(
		"tile.cache.hit",
		metric.WithDescription("Tile requests served from disk"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"tile.cache.miss",
		metric.WithDescription("Tile requests not present on disk"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, err
	}

	downloadTotal, err := meter.Int64Counter(
		"tile.download.total",
		metric.WithDescription("Tile downloads from the upstream map-data API"),
		metric.WithUnit("{download}"),
	)
	if err != nil {
		return nil, err
	}

	downloadDuration, err := meter.Float64Histogram(
		"tile.download.duration",
		metric.WithDescription("Duration of tile downloads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	downloadSize, err := meter.Int64Histogram(
		"tile.download.size",
		metric.WithDescription("Size of downloaded tile payloads in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	mergeTotal, err := meter.Int64Counter(
		"tile.merge.total",
		metric.WithDescription("Tiles synthesised by merging four children"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cacheHit:         cacheHit,
		cacheMiss:        cacheMiss,
		downloadTotal:    downloadTotal,
		downloadDuration: downloadDuration,
		downloadSize:     downloadSize,
		mergeTotal:       mergeTotal,
	}, nil
}

func zoomAttr(z int) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Int("tile.zoom", z))
}

// RecordLookup records a cache hit or miss at zoom z.
func (m *Metrics) RecordLookup(z int, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHit.Add(context.TODO(), 1, zoomAttr(z))
		return
	}
	m.cacheMiss.Add(context.TODO(), 1, zoomAttr(z))
}

// RecordDownload records one upstream fetch.
func (m *Metrics) RecordDownload(duration time.Duration, size int64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("error", err != nil))
	ctx := context.TODO()
	m.downloadTotal.Add(ctx, 1, attrs)
	m.downloadDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil {
		m.downloadSize.Record(ctx, size)
	}
}

// RecordMerge records a merge attempt at zoom z.
func (m *Metrics) RecordMerge(z int, err error) {
	if m == nil {
		return
	}
	m.mergeTotal.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.Int("tile.zoom", z),
		attribute.Bool("error", err != nil),
	))
}
