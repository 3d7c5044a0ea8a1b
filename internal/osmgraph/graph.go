// Package osmgraph builds a weighted, directed routing graph for one
// transport mode from OSM ways, one tile at a time.
package osmgraph

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// NodeID is an OSM node id.
type NodeID int64

// Edge is a directed, weighted connection to a neighbouring node.
type Edge struct {
	To     NodeID
	Weight float64
}

// Graph is a directed adjacency map with coordinates for every routing node.
// It only grows: edges and coordinates, once set, never change.
// Graph is not safe for concurrent use.
type Graph struct {
	adjacency map[NodeID]map[NodeID]float64
	coords    map[NodeID]orb.Point
	edges     int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		adjacency: make(map[NodeID]map[NodeID]float64),
		coords:    make(map[NodeID]orb.Point),
	}
}

// AddNode records the position of a routing node. The first position wins.
func (g *Graph) AddNode(id NodeID, lat, lon float64) {
	if _, ok := g.coords[id]; ok {
		return
	}
	g.coords[id] = orb.Point{lon, lat}
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[NodeID]float64)
	}
}

// AddEdge inserts from->to with weight. It returns false, leaving the graph
// unchanged, when weight is not positive or the edge already exists.
func (g *Graph) AddEdge(from, to NodeID, weight float64) bool {
	if weight <= 0 || from == to {
		return false
	}
	out, ok := g.adjacency[from]
	if !ok {
		out = make(map[NodeID]float64)
		g.adjacency[from] = out
	}
	if _, exists := out[to]; exists {
		return false
	}
	out[to] = weight
	if _, ok := g.adjacency[to]; !ok {
		g.adjacency[to] = make(map[NodeID]float64)
	}
	g.edges++
	return true
}

// Has reports whether id is a routing node.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.coords[id]
	return ok
}

// Coord returns the position of a routing node as (lon, lat).
func (g *Graph) Coord(id NodeID) (orb.Point, bool) {
	p, ok := g.coords[id]
	return p, ok
}

// Edges returns the outgoing edges of id ordered by neighbour id, and false
// if id is not in the graph.
func (g *Graph) Edges(id NodeID) ([]Edge, bool) {
	out, ok := g.adjacency[id]
	if !ok {
		return nil, false
	}
	edges := make([]Edge, 0, len(out))
	for to, w := range out {
		edges = append(edges, Edge{To: to, Weight: w})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	return edges, true
}

// Weight returns the weight of from->to, if the edge exists.
func (g *Graph) Weight(from, to NodeID) (float64, bool) {
	w, ok := g.adjacency[from][to]
	return w, ok
}

// OutDegree returns the number of outgoing edges of id.
func (g *Graph) OutDegree(id NodeID) int {
	return len(g.adjacency[id])
}

// NodeCount returns the number of routing nodes.
func (g *Graph) NodeCount() int {
	return len(g.coords)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Nearest returns the routing node closest to (lat, lon) by planar distance
// in degrees. Ties go to the lower id. It returns false for an empty graph.
func (g *Graph) Nearest(lat, lon float64) (NodeID, bool) {
	target := orb.Point{lon, lat}

	var (
		best     NodeID
		bestDist float64
		found    bool
	)
	for id, p := range g.coords {
		d := planar.DistanceSquared(target, p)
		if !found || d < bestDist || (d == bestDist && id < best) {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}

// Distance returns the planar distance in degrees between two routing nodes.
func (g *Graph) Distance(a, b NodeID) (float64, bool) {
	pa, ok := g.coords[a]
	if !ok {
		return 0, false
	}
	pb, ok := g.coords[b]
	if !ok {
		return 0, false
	}
	return planar.Distance(pa, pb), true
}
