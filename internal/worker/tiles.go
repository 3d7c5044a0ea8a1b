package worker

import (
	"github.com/paulmach/orb"

	"github.com/osmroute/osmroute/internal/tile"
	"github.com/osmroute/osmroute/pkg/polyline"
)

// Spiral returns the tiles within radius rings of center, nearest ring first.
// Tiles outside the grid are skipped.
func Spiral(center tile.ID, radius int) []tile.ID {
	ids := []tile.ID{center}
	for r := 1; r <= radius; r++ {
		// Walk the ring clockwise from its top-left corner.
		x, y := center.X-r, center.Y-r
		for _, step := range [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} {
			for i := 0; i < 2*r; i++ {
				if id := (tile.ID{Z: center.Z, X: x, Y: y}); id.Valid() {
					ids = append(ids, id)
				}
				x += step[0]
				y += step[1]
			}
		}
	}
	return ids
}

// TilesAround returns the distinct tiles in a spiral around each point, in
// point order.
func TilesAround(points []Point, level, radius int) []tile.ID {
	seen := make(map[tile.ID]struct{})
	var out []tile.ID
	for _, p := range points {
		for _, id := range Spiral(tile.At(p.Lat, p.Lon, level), radius) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Corridor returns the distinct tiles along line, sampled every spacing
// metres and widened by radius rings.
func Corridor(line orb.LineString, level, radius int, spacing float64) []tile.ID {
	sampled := polyline.Sample(line, spacing)
	points := make([]Point, 0, len(sampled))
	for _, p := range sampled {
		points = append(points, Point{Lat: p.Lat(), Lon: p.Lon()})
	}
	return TilesAround(points, level, radius)
}
