// Package osmdata streams the subset of OSM XML this module consumes
// (nodes, ways with their nd/tag children) and writes merged extracts back
// out in the same format.
package osmdata

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/osm"
)

// Handler receives elements as they are decoded. Nil callbacks are skipped.
type Handler struct {
	Node func(*osm.Node)
	Way  func(*osm.Way)
}

// Stats counts what a Decode call saw.
type Stats struct {
	Nodes     int
	Ways      int
	Relations int
	Skipped   int
}

// ctxCheckEvery is how many elements are decoded between context checks.
const ctxCheckEvery = 4096

// Decode reads OSM XML from r and passes every well-formed node and way to h
// in document order. Relations are counted and dropped.
//
// An element whose attributes cannot be decoded, or which lacks an id or a
// valid position, is skipped and counted in Stats.Skipped. A syntax error in
// the document stops decoding; the stats gathered up to that point are
// returned together with the error.
func Decode(ctx context.Context, r io.Reader, h Handler) (Stats, error) {
	var stats Stats
	dec := xml.NewDecoder(r)

	for seen := 0; ; {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("osmdata: decode: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "node":
			if !hasPosition(se) {
				if err := dec.Skip(); err != nil {
					return stats, fmt.Errorf("osmdata: skip node: %w", err)
				}
				stats.Skipped++
				continue
			}
			var n osm.Node
			if err := dec.DecodeElement(&n, &se); err != nil {
				if fatal(err) {
					return stats, fmt.Errorf("osmdata: decode node: %w", err)
				}
				stats.Skipped++
				continue
			}
			if !validNode(&n) {
				stats.Skipped++
				continue
			}
			stats.Nodes++
			if h.Node != nil {
				h.Node(&n)
			}
		case "way":
			var w osm.Way
			if err := dec.DecodeElement(&w, &se); err != nil {
				if fatal(err) {
					return stats, fmt.Errorf("osmdata: decode way: %w", err)
				}
				stats.Skipped++
				continue
			}
			if w.ID == 0 {
				stats.Skipped++
				continue
			}
			stats.Ways++
			if h.Way != nil {
				h.Way(&w)
			}
		case "relation":
			if err := dec.Skip(); err != nil {
				return stats, fmt.Errorf("osmdata: skip relation: %w", err)
			}
			stats.Relations++
		default:
			continue
		}

		seen++
		if seen%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
	}
}

// hasPosition reports whether a node element carries both coordinates.
// Absent attributes would otherwise decode as 0.
func hasPosition(se xml.StartElement) bool {
	var lat, lon bool
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "lat":
			lat = true
		case "lon":
			lon = true
		}
	}
	return lat && lon
}

func validNode(n *osm.Node) bool {
	return n.ID != 0 &&
		n.Lat >= -90 && n.Lat <= 90 &&
		n.Lon >= -180 && n.Lon <= 180
}

// fatal reports whether err leaves the decoder unable to continue.
func fatal(err error) bool {
	var syntaxErr *xml.SyntaxError
	return errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
