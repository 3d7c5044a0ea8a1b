package osmgraph_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmroute/osmroute/internal/osmgraph"
	"github.com/osmroute/osmroute/internal/tile"
)

const onewayStreet = `<osm version="0.6">
 <node id="1" lat="52.5500" lon="-1.8200"/>
 <node id="2" lat="52.5505" lon="-1.8195"/>
 <node id="3" lat="52.5510" lon="-1.8190"/>
 <node id="4" lat="52.5520" lon="-1.8180"/>
 <way id="100">
  <nd ref="1"/><nd ref="2"/><nd ref="3"/>
  <tag k="highway" v="residential"/>
  <tag k="oneway" v="yes"/>
 </way>
 <way id="101">
  <nd ref="3"/><nd ref="4"/>
  <tag k="highway" v="motorway"/>
 </way>
 <way id="102">
  <nd ref="4"/><nd ref="1"/>
  <tag k="waterway" v="canal"/>
 </way>
</osm>`

// stubTiles returns the same file for every tile and counts lookups.
type stubTiles struct {
	path  string
	ok    bool
	calls map[tile.ID]int
}

func newStubTiles(t *testing.T, doc string) *stubTiles {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.osm")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return &stubTiles{path: path, ok: true, calls: make(map[tile.ID]int)}
}

func (s *stubTiles) GetTile(_ context.Context, id tile.ID) (string, bool) {
	s.calls[id]++
	return s.path, s.ok
}

func (s *stubTiles) DownloadLevel() int { return tile.DefaultDownloadLevel }

func (s *stubTiles) total() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func parse(t *testing.T, mode osmgraph.Mode, doc string) (*osmgraph.Builder, osmgraph.ParseStats) {
	t.Helper()
	b := osmgraph.NewBuilder(osmgraph.BuilderConfig{Mode: mode})
	stats, err := b.Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	return b, stats
}

func TestBuilder_OnewayForCar(t *testing.T) {
	b, stats := parse(t, osmgraph.ModeCar, onewayStreet)
	g := b.Graph()

	_, ok := g.Weight(1, 2)
	assert.True(t, ok)
	_, ok = g.Weight(2, 3)
	assert.True(t, ok)
	_, ok = g.Weight(2, 1)
	assert.False(t, ok, "no reverse edge on a oneway street")

	w, ok := g.Weight(4, 3)
	require.True(t, ok, "motorway is two-way")
	assert.Equal(t, 10.0, w)

	assert.Equal(t, 4, stats.Edges)
	assert.Equal(t, 2, stats.RoutableWays)
	assert.Equal(t, 3, stats.Ways)
}

func TestBuilder_FootIgnoresOneway(t *testing.T) {
	b, _ := parse(t, osmgraph.ModeFoot, onewayStreet)
	g := b.Graph()

	_, ok := g.Weight(1, 2)
	assert.True(t, ok)
	_, ok = g.Weight(2, 1)
	assert.True(t, ok, "foot traffic is bidirectional")

	assert.False(t, g.Has(4), "motorway nodes are not routing nodes for foot")
	assert.Equal(t, 3, g.NodeCount())
}

func TestBuilder_AllEdgesPositive(t *testing.T) {
	for _, mode := range osmgraph.Modes {
		b, _ := parse(t, mode, onewayStreet)
		g := b.Graph()
		for _, id := range []osmgraph.NodeID{1, 2, 3, 4} {
			edges, _ := g.Edges(id)
			for _, e := range edges {
				assert.Greater(t, e.Weight, 0.0)
			}
		}
	}
}

func TestBuilder_TrainUsesRailway(t *testing.T) {
	doc := `<osm>
 <node id="1" lat="0" lon="0"/>
 <node id="2" lat="0" lon="0.01"/>
 <way id="5"><nd ref="1"/><nd ref="2"/><tag k="railway" v="light_rail"/></way>
</osm>`
	b, _ := parse(t, osmgraph.ModeTrain, doc)
	assert.Equal(t, 2, b.Graph().EdgeCount())

	b, _ = parse(t, osmgraph.ModeCar, doc)
	assert.Equal(t, 0, b.Graph().EdgeCount())
}

func TestBuilder_UsesInlineWayNodePositions(t *testing.T) {
	doc := `<osm>
 <way id="5">
  <nd ref="1" lat="1.5" lon="2.5"/>
  <nd ref="2"/>
  <nd ref="3" lat="1.6" lon="2.6"/>
  <tag k="highway" v="footway"/>
 </way>
</osm>`
	b, _ := parse(t, osmgraph.ModeFoot, doc)
	g := b.Graph()

	assert.Equal(t, 2, g.NodeCount(), "node 2 has no known position")
	assert.Equal(t, 0, g.EdgeCount())

	p, ok := g.Coord(1)
	require.True(t, ok)
	assert.Equal(t, 1.5, p.Lat())
}

func TestBuilder_SkipsMalformedElements(t *testing.T) {
	doc := `<osm>
 <node id="1" lat="0" lon="0"/>
 <node id="2" lat="bogus" lon="0"/>
 <node id="3" lat="0" lon="0.01"/>
 <way id="bad" ><nd ref="1"/><nd ref="3"/><tag k="highway" v="residential"/></way>
 <way id="6"><nd ref="1"/><nd ref="2"/><nd ref="3"/><tag k="highway" v="residential"/></way>
 <way id="7"><nd ref="3"/><nd ref="1"/><tag k="highway" v="cycleway"/></way>
 <node id="8"/>
 <way id="9"><nd ref="8"/><nd ref="3"/><tag k="highway" v="residential"/></way>
</osm>`
	b, stats := parse(t, osmgraph.ModeCycle, doc)
	g := b.Graph()

	assert.Equal(t, 3, stats.Skipped)
	assert.False(t, g.Has(8), "node without a position never becomes a routing node")
	_, ok := g.Weight(3, 8)
	assert.False(t, ok)
	w, ok := g.Weight(3, 1)
	require.True(t, ok)
	assert.Equal(t, 3.0, w, "cycleway weight")
}

func TestBuilder_ParseKeepsEdgesBeforeSyntaxError(t *testing.T) {
	doc := `<osm>
 <node id="1" lat="0" lon="0"/>
 <node id="2" lat="0" lon="0.01"/>
 <way id="5"><nd ref="1"/><nd ref="2"/><tag k="highway" v="service"/></way>
 <way id="6"><nd ref="1"></way>`

	b := osmgraph.NewBuilder(osmgraph.BuilderConfig{Mode: osmgraph.ModeCar})
	_, err := b.Parse(context.Background(), strings.NewReader(doc))

	require.Error(t, err)
	assert.Equal(t, 2, b.Graph().EdgeCount())
}

func TestBuilder_EnsureAreaIdempotent(t *testing.T) {
	tiles := newStubTiles(t, onewayStreet)
	b := osmgraph.NewBuilder(osmgraph.BuilderConfig{Mode: osmgraph.ModeCar, Tiles: tiles})

	assert.True(t, b.EnsureArea(context.Background(), 52.55, -1.82))
	edges := b.Graph().EdgeCount()
	require.Positive(t, edges)

	assert.False(t, b.EnsureArea(context.Background(), 52.55, -1.82))
	assert.Equal(t, edges, b.Graph().EdgeCount(), "no duplicate edges")
	assert.Equal(t, 1, tiles.total(), "tile source consulted once")

	id := tile.At(52.55, -1.82, tile.DefaultDownloadLevel)
	assert.True(t, b.Merged(id))
	assert.Equal(t, 1, b.Stats().MergedTiles)
}

func TestBuilder_UnavailableTileIsTerminal(t *testing.T) {
	tiles := newStubTiles(t, onewayStreet)
	tiles.ok = false
	b := osmgraph.NewBuilder(osmgraph.BuilderConfig{Mode: osmgraph.ModeCar, Tiles: tiles})

	assert.True(t, b.EnsureArea(context.Background(), 10, 10))
	assert.False(t, b.EnsureArea(context.Background(), 10, 10))
	assert.Equal(t, 1, tiles.total())
	assert.Equal(t, 0, b.Graph().NodeCount())
}

func TestBuilder_LoadFile(t *testing.T) {
	tiles := newStubTiles(t, onewayStreet)
	b := osmgraph.NewBuilder(osmgraph.BuilderConfig{Mode: osmgraph.ModeFoot})

	stats, err := b.LoadFile(context.Background(), tiles.path)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Nodes)

	_, err = b.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.osm"))
	assert.Error(t, err)
}
