package osmgraph

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/osmdata"
	"github.com/osmroute/osmroute/internal/tile"
)

// TileSource resolves tiles to OSM XML files. *tile.Cache implements it.
type TileSource interface {
	GetTile(ctx context.Context, id tile.ID) (string, bool)
	DownloadLevel() int
}

// BuilderConfig holds configuration for a Builder.
type BuilderConfig struct {
	Mode   Mode
	Tiles  TileSource
	Logger zerolog.Logger
}

// ParseStats summarises one Parse call.
type ParseStats struct {
	Nodes        int
	Ways         int
	RoutableWays int
	Edges        int
	Skipped      int
}

// Stats summarises a builder's state.
type Stats struct {
	Mode        Mode `json:"mode"`
	Nodes       int  `json:"nodes"`
	Edges       int  `json:"edges"`
	MergedTiles int  `json:"mergedTiles"`
}

// Builder grows a Graph for one transport mode as areas are requested. Each
// download-level tile is merged at most once per Builder. A Builder is meant
// for one caller at a time.
type Builder struct {
	mode   Mode
	tiles  TileSource
	graph  *Graph
	merged map[tile.ID]struct{}
	logger zerolog.Logger
}

// NewBuilder creates a builder with an empty graph.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{
		mode:   cfg.Mode,
		tiles:  cfg.Tiles,
		graph:  NewGraph(),
		merged: make(map[tile.ID]struct{}),
		logger: cfg.Logger.With().Str("mode", string(cfg.Mode)).Logger(),
	}
}

// Mode returns the transport mode this builder serves.
func (b *Builder) Mode() Mode {
	return b.mode
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// Merged reports whether a tile has already been processed.
func (b *Builder) Merged(id tile.ID) bool {
	_, ok := b.merged[id]
	return ok
}

// Stats returns counts for the graph and merged tiles.
func (b *Builder) Stats() Stats {
	return Stats{
		Mode:        b.mode,
		Nodes:       b.graph.NodeCount(),
		Edges:       b.graph.EdgeCount(),
		MergedTiles: len(b.merged),
	}
}

// EnsureArea loads the download-level tile containing (lat, lon) into the
// graph unless it was already merged. The tile is marked merged even when it
// is unavailable or contains nothing routable, so it is never retried by this
// builder, unless ctx was cancelled during the lookup. It reports whether a
// new tile was processed.
func (b *Builder) EnsureArea(ctx context.Context, lat, lon float64) bool {
	if b.tiles == nil {
		return false
	}
	id := tile.At(lat, lon, b.tiles.DownloadLevel())
	if b.Merged(id) || ctx.Err() != nil {
		return false
	}

	path, ok := b.tiles.GetTile(ctx, id)
	if ctx.Err() != nil {
		// Interrupted lookups are not terminal; a later caller may retry.
		return false
	}
	b.merged[id] = struct{}{}
	if !ok {
		b.logger.Debug().Str("tile", id.String()).Msg("tile unavailable")
		return true
	}

	stats, err := b.LoadFile(ctx, path)
	if err != nil {
		b.logger.Warn().Err(err).Str("tile", id.String()).Msg("tile parsed partially")
	}
	b.logger.Debug().
		Str("tile", id.String()).
		Int("ways", stats.Ways).
		Int("routable_ways", stats.RoutableWays).
		Int("edges", stats.Edges).
		Msg("tile merged")
	return true
}

// LoadFile parses an OSM XML file into the graph.
func (b *Builder) LoadFile(ctx context.Context, path string) (ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return b.Parse(ctx, f)
}

// Parse streams OSM XML from r and inserts edges for every way the builder's
// mode may use. Node positions come from <node> elements seen earlier in the
// stream, from lat/lon on the <nd> reference, or from the graph itself.
// Edges added before a syntax error are kept.
func (b *Builder) Parse(ctx context.Context, r io.Reader) (ParseStats, error) {
	var stats ParseStats
	positions := make(map[osm.NodeID]orb.Point)

	decoded, err := osmdata.Decode(ctx, r, osmdata.Handler{
		Node: func(n *osm.Node) {
			positions[n.ID] = orb.Point{n.Lon, n.Lat}
		},
		Way: func(w *osm.Way) {
			added, routable := b.addWay(w, positions)
			if routable {
				stats.RoutableWays++
			}
			stats.Edges += added
		},
	})

	stats.Nodes = decoded.Nodes
	stats.Ways = decoded.Ways
	stats.Skipped = decoded.Skipped
	return stats, err
}

func (b *Builder) addWay(w *osm.Way, positions map[osm.NodeID]orb.Point) (int, bool) {
	profile := ProfileFor(Classify(w.Tags), b.mode)
	if !profile.Usable() {
		return 0, false
	}
	bidirectional := !(IsOneway(w.Tags) && b.mode.RespectsOneway())

	added := 0
	for i := 0; i+1 < len(w.Nodes); i++ {
		from, to := w.Nodes[i], w.Nodes[i+1]
		pf, ok := b.position(from, positions)
		if !ok {
			continue
		}
		pt, ok := b.position(to, positions)
		if !ok {
			continue
		}

		a, c := NodeID(from.ID), NodeID(to.ID)
		b.graph.AddNode(a, pf.Lat(), pf.Lon())
		b.graph.AddNode(c, pt.Lat(), pt.Lon())
		if b.graph.AddEdge(a, c, profile.Weight) {
			added++
		}
		if bidirectional && b.graph.AddEdge(c, a, profile.Weight) {
			added++
		}
	}
	return added, true
}

// position finds where a way node lies: the graph first, since routing node
// positions never change, then the current stream, then the reference itself.
func (b *Builder) position(ref osm.WayNode, positions map[osm.NodeID]orb.Point) (orb.Point, bool) {
	if p, ok := b.graph.Coord(NodeID(ref.ID)); ok {
		return p, true
	}
	if p, ok := positions[ref.ID]; ok {
		return p, true
	}
	if ref.Lat != 0 || ref.Lon != 0 {
		return orb.Point{ref.Lon, ref.Lat}, true
	}
	return orb.Point{}, false
}
