// Package tile resolves slippy-map tile requests to OSM XML files on disk,
// downloading at a single fixed zoom and deriving every other zoom by
// ancestor lookup or by merging children.
package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// DefaultDownloadLevel is the only zoom fetched from the network by default.
	DefaultDownloadLevel = 15

	// MaxZoom is the deepest zoom accepted by the cache.
	MaxZoom = 25
)

// ID identifies a tile in the standard slippy-map scheme.
type ID struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// At returns the tile containing (lat, lon) at zoom z.
func At(lat, lon float64, z int) ID {
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))
	return ID{Z: int(t.Z), X: int(t.X), Y: int(t.Y)}
}

// Valid reports whether the id is addressable: 0 <= z <= MaxZoom, x and y
// non-negative and inside the grid for z.
func (id ID) Valid() bool {
	if id.Z < 0 || id.Z > MaxZoom || id.X < 0 || id.Y < 0 {
		return false
	}
	n := 1 << id.Z
	return id.X < n && id.Y < n
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%d/%d", id.Z, id.X, id.Y)
}

// Parent returns the tile one zoom level coarser that contains id.
func (id ID) Parent() ID {
	return ID{Z: id.Z - 1, X: id.X / 2, Y: id.Y / 2}
}

// Children returns the four tiles one zoom level finer, ordered
// (2x, 2y), (2x, 2y+1), (2x+1, 2y), (2x+1, 2y+1).
func (id ID) Children() [4]ID {
	var out [4]ID
	k := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[k] = ID{Z: id.Z + 1, X: 2*id.X + i, Y: 2*id.Y + j}
			k++
		}
	}
	return out
}

// AncestorAt walks up to zoom level and returns the tile there. It returns id
// unchanged when level is not coarser than id.
func (id ID) AncestorAt(level int) ID {
	for id.Z > level {
		id = id.Parent()
	}
	return id
}

// Bound returns the geographic extent of the tile.
func (id ID) Bound() orb.Bound {
	return maptile.New(uint32(id.X), uint32(id.Y), maptile.Zoom(id.Z)).Bound()
}
