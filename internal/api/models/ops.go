package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus represents upstream and graph state.
type SystemStatus struct {
	Status         HealthStatus     `json:"status"`
	Time           Timestamp        `json:"time"`
	Upstreams      []UpstreamStatus `json:"upstreams"`
	Graphs         []GraphStatus    `json:"graphs"`
	CachedResponse int              `json:"cachedResponses"`
}

// UpstreamStatus represents the circuit state of an upstream map data source.
type UpstreamStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// GraphStatus summarises the in-memory graph for one transport mode.
type GraphStatus struct {
	Mode        string `json:"mode"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	MergedTiles int    `json:"mergedTiles"`
}
