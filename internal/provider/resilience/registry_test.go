package resilience_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmroute/osmroute/internal/provider/resilience"
)

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("osm-api")
	cfg.Registry = registry

	client := resilience.NewClient(cfg)

	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, "osm-api", client.Name())

	health := registry.Health("osm-api")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("osm-api")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	registry.Unregister("osm-api")

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, registry.Health("osm-api"))
}

func TestRegistry_ClientRecordsOutcomes(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("osm-api")
	cfg.MaxRetries = 1
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	resp, err := client.Do(newGet(t, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	health := registry.Health("osm-api")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	status.Store(http.StatusServiceUnavailable)
	resp, err = client.Do(newGet(t, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	health = registry.Health("osm-api")
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Service Unavailable")
}

func TestRegistry_RecordFailureUnknownIsNoop(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.RecordFailure("missing", errors.New("boom"))
	registry.RecordSuccess("missing")
	assert.Nil(t, registry.Health("missing"))
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"overpass", "osm-api", "mirror"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "mirror", snapshot[0].Name)
	assert.Equal(t, "osm-api", snapshot[1].Name)
	assert.Equal(t, "overpass", snapshot[2].Name)
}

func TestUpstreamHealth_Status(t *testing.T) {
	tests := []struct {
		state    gobreaker.State
		expected string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}
	for _, tt := range tests {
		h := &resilience.UpstreamHealth{CircuitState: tt.state}
		assert.Equal(t, tt.expected, h.Status())
	}
}
