package osmdata

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/paulmach/osm"
)

// Generator is written into the header of every document this package encodes.
const Generator = "osmroute"

// Collection is an ordered union of nodes and ways keyed by id. The first
// occurrence of an id wins; later duplicates are ignored.
type Collection struct {
	nodes osm.Nodes
	ways  osm.Ways

	nodeIndex map[osm.NodeID]*osm.Node
	wayIndex  map[osm.WayID]struct{}
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		nodeIndex: make(map[osm.NodeID]*osm.Node),
		wayIndex:  make(map[osm.WayID]struct{}),
	}
}

// AddNode adds n unless a node with the same id is already present.
func (c *Collection) AddNode(n *osm.Node) bool {
	if _, ok := c.nodeIndex[n.ID]; ok {
		return false
	}
	c.nodeIndex[n.ID] = n
	c.nodes = append(c.nodes, n)
	return true
}

// AddWay adds w unless a way with the same id is already present.
func (c *Collection) AddWay(w *osm.Way) bool {
	if _, ok := c.wayIndex[w.ID]; ok {
		return false
	}
	c.wayIndex[w.ID] = struct{}{}
	c.ways = append(c.ways, w)
	return true
}

// Handler returns a decode handler that adds into c.
func (c *Collection) Handler() Handler {
	return Handler{
		Node: func(n *osm.Node) { c.AddNode(n) },
		Way:  func(w *osm.Way) { c.AddWay(w) },
	}
}

// Node returns the node with the given id, if present.
func (c *Collection) Node(id osm.NodeID) (*osm.Node, bool) {
	n, ok := c.nodeIndex[id]
	return n, ok
}

// NodeCount returns the number of distinct nodes.
func (c *Collection) NodeCount() int { return len(c.nodes) }

// WayCount returns the number of distinct ways.
func (c *Collection) WayCount() int { return len(c.ways) }

// StampCoordinates copies node positions onto way node references so each
// way can be read back without its nodes being present in the same document.
func (c *Collection) StampCoordinates() {
	for _, w := range c.ways {
		for i := range w.Nodes {
			if n, ok := c.nodeIndex[w.Nodes[i].ID]; ok {
				w.Nodes[i].Lat = n.Lat
				w.Nodes[i].Lon = n.Lon
			}
		}
	}
}

// Encode writes the collection as an OSM XML document, nodes before ways.
func (c *Collection) Encode(w io.Writer) error {
	doc := osm.OSM{
		Version:   "0.6",
		Generator: Generator,
		Nodes:     c.nodes,
		Ways:      c.ways,
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("osmdata: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("osmdata: encode: %w", err)
	}
	return enc.Close()
}
