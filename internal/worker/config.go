// Package worker warms the tile cache ahead of route requests.
package worker

import (
	"sort"
	"time"

	"github.com/osmroute/osmroute/internal/tile"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PrefetchTarget is a named area whose tiles should stay cached.
type PrefetchTarget struct {
	Name string

	// Points are the centres to prefetch around.
	Points []Point

	// Priority determines prefetch order (lower = higher priority).
	Priority int
}

// PrefetchConfig holds configuration for the prefetch job.
type PrefetchConfig struct {
	// Targets are the areas to prefetch. If empty, uses DefaultPrefetchTargets.
	Targets []PrefetchTarget

	// Radius is how many tile rings around each point are fetched.
	// 0 fetches only the tile containing the point.
	Radius int

	// Concurrency is the number of tiles fetched at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each tile fetch.
	// Default: 2 minutes
	Timeout time.Duration

	// CorridorSpacing is the sampling distance in metres along a route
	// corridor. Default: 500
	CorridorSpacing float64
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Targets:         DefaultPrefetchTargets(),
		Radius:          1,
		Concurrency:     3,
		Timeout:         2 * time.Minute,
		CorridorSpacing: 500,
	}
}

// DefaultPrefetchTargets returns a small default area around Sutton Coldfield.
func DefaultPrefetchTargets() []PrefetchTarget {
	return []PrefetchTarget{
		{
			Name:     "sutton-coldfield",
			Priority: 1,
			Points: []Point{
				{Lat: 52.55291, Lon: -1.81824},
				{Lat: 52.56337, Lon: -1.81829},
			},
		},
	}
}

func (c PrefetchConfig) withDefaults() PrefetchConfig {
	def := DefaultPrefetchConfig()
	if len(c.Targets) == 0 {
		c.Targets = def.Targets
	}
	if c.Radius < 0 {
		c.Radius = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.CorridorSpacing <= 0 {
		c.CorridorSpacing = def.CorridorSpacing
	}
	return c
}

// AllPoints returns all points from all targets, ordered by priority.
func (c PrefetchConfig) AllPoints() []Point {
	targets := append([]PrefetchTarget(nil), c.Targets...)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// Tiles returns the distinct download-level tiles covering every target,
// in priority order.
func (c PrefetchConfig) Tiles(level int) []tile.ID {
	return TilesAround(c.AllPoints(), level, c.Radius)
}
