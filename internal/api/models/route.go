package models

// RouteComputeRequest is the request body for POST /v1/routes:compute.
type RouteComputeRequest struct {
	Start *Point `json:"start"`
	End   *Point `json:"end"`
	Mode  string `json:"mode"`
}

// RouteNode is one routing node on a path.
type RouteNode struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteComputeResponse is the response for route computation. Path,
// DistanceMeters and Polyline are set only when Status is "success".
type RouteComputeResponse struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	Mode           string      `json:"mode"`
	StartNode      *RouteNode  `json:"startNode,omitempty"`
	EndNode        *RouteNode  `json:"endNode,omitempty"`
	Path           []RouteNode `json:"path,omitempty"`
	DistanceMeters float64     `json:"distanceMeters,omitempty"`
	Cost           float64     `json:"cost,omitempty"`
	Iterations     int         `json:"iterations"`
	Polyline       string      `json:"polyline,omitempty"`
	GeneratedAt    Timestamp   `json:"generatedAt"`
}

// NearestNodeResponse is the response for GET /v1/nodes:nearest.
type NearestNodeResponse struct {
	Mode           string    `json:"mode"`
	Query          Point     `json:"query"`
	Node           RouteNode `json:"node"`
	DistanceMeters float64   `json:"distanceMeters"`
}
