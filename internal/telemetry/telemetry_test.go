package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/osmroute/osmroute/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "osmroute-test",
		Environment:  "test",
		OTLPEndpoint: "localhost:4317",
		SampleRatio:  0.5,
	})
	require.NoError(t, err)

	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	_, span := provider.Tracer("osmroute-test").Start(ctx, "tile.download")
	span.End()
	counter, err := provider.Meter("osmroute-test").Int64Counter("tile_lookups_total")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_EnabledExportsWithResource(t *testing.T) {
	ctx := context.Background()
	prevTracer, prevMeter := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:   "osmroute-api",
		Enabled:       true,
		DownloadLevel: 15,
		Strategy:      "astar",
		SpanExporter:  spans,
		MetricReader:  reader,
	})
	require.NoError(t, err)
	require.NotNil(t, provider.TracerProvider)

	_, span := otel.Tracer("osmroute-test").Start(ctx, "routing.compute_route")
	span.End()
	counter, err := otel.Meter("osmroute-test").Int64Counter("routing_searches_total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "routing_searches_total", rm.ScopeMetrics[0].Metrics[0].Name)

	level, ok := rm.Resource.Set().Value(attribute.Key("osmroute.tiles.download_level"))
	require.True(t, ok)
	assert.Equal(t, int64(15), level.AsInt64())

	require.NoError(t, provider.TracerProvider.ForceFlush(ctx))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "routing.compute_route", got[0].Name)
	strategy, ok := got[0].Resource.Set().Value(attribute.Key("osmroute.routing.strategy"))
	require.True(t, ok)
	assert.Equal(t, "astar", strategy.AsString())

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_ShutdownWithoutProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}
