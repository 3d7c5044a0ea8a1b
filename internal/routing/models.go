// Package routing finds paths through the lazily loaded OSM graph and serves
// route requests for every transport mode.
package routing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/osmroute/osmroute/internal/osmgraph"
)

// Sentinel errors for routing operations.
var (
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrNoNearbyNode indicates no routing node could be found around a coordinate.
	ErrNoNearbyNode = errors.New("no routing node near coordinate")
)

// Status is the outcome of a route search. Callers must check it before
// trusting a path.
type Status string

const (
	// StatusSuccess means a path was found.
	StatusSuccess Status = "success"
	// StatusNoSuchNode means the start is unknown or has no usable outgoing edges.
	StatusNoSuchNode Status = "no_such_node"
	// StatusNoRoute means the frontier emptied before reaching the end.
	StatusNoRoute Status = "no_route"
	// StatusGaveUp means the iteration ceiling was hit or the search was cancelled.
	StatusGaveUp Status = "gave_up"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteResult is the raw outcome of a search between two routing nodes.
type RouteResult struct {
	Status     Status
	Path       []osmgraph.NodeID
	Cost       float64
	Iterations int
}

// RouteRequest asks for a route between two coordinates.
type RouteRequest struct {
	Start Coordinate
	End   Coordinate
	Mode  osmgraph.Mode
}

// RouteNode is a routing node with its position.
type RouteNode struct {
	ID  osmgraph.NodeID `json:"id"`
	Lat float64         `json:"lat"`
	Lon float64         `json:"lon"`
}

// RouteResponse is a RouteResult resolved to positions.
type RouteResponse struct {
	Status         Status        `json:"status"`
	Mode           osmgraph.Mode `json:"mode"`
	StartNode      *RouteNode    `json:"startNode,omitempty"`
	EndNode        *RouteNode    `json:"endNode,omitempty"`
	Nodes          []RouteNode   `json:"nodes,omitempty"`
	DistanceMeters float64       `json:"distanceMeters"`
	Cost           float64       `json:"cost"`
	Iterations     int           `json:"iterations"`
	Polyline       string        `json:"polyline,omitempty"`
	ComputedAt     time.Time     `json:"computedAt"`
}

// Error carries a machine-readable code alongside the underlying sentinel.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("routing: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("routing: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validateCoordinates(c Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("coordinate is not a number")
	}
	if c.Lat < -85.0511 || c.Lat > 85.0511 {
		return fmt.Errorf("latitude %f outside web mercator range", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}
