package routing

import (
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// GPXStyle selects how a route is laid out in GPX.
type GPXStyle string

const (
	// GPXRoute writes an <rte> with one named <rtept> per node.
	GPXRoute GPXStyle = "route"
	// GPXTrack writes a single-segment <trk>.
	GPXTrack GPXStyle = "track"
)

// ErrUnknownGPXStyle is returned by ParseGPXStyle.
var ErrUnknownGPXStyle = errors.New("unknown gpx style")

var errNoPath = errors.New("route has no path")

// ParseGPXStyle parses a style name. Empty means GPXRoute.
func ParseGPXStyle(s string) (GPXStyle, error) {
	switch GPXStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", GPXRoute:
		return GPXRoute, nil
	case GPXTrack:
		return GPXTrack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGPXStyle, s)
}

type gpxDocument struct {
	XMLName xml.Name    `xml:"gpx"`
	Xmlns   string      `xml:"xmlns,attr"`
	Version string      `xml:"version,attr"`
	Creator string      `xml:"creator,attr"`
	Meta    gpxMetadata `xml:"metadata"`
	Route   *gpxRoute   `xml:"rte,omitempty"`
	Track   *gpxTrack   `xml:"trk,omitempty"`
}

type gpxTrack struct {
	Name    string     `xml:"name,omitempty"`
	Type    string     `xml:"type,omitempty"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxMetadata struct {
	Time string `xml:"time,omitempty"`
}

type gpxRoute struct {
	Name   string     `xml:"name,omitempty"`
	Type   string     `xml:"type,omitempty"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name,omitempty"`
}

// WriteGPX writes a successful route as GPX 1.1. GPXRoute names each
// <rtept> by its OSM node id; GPXTrack writes bare <trkpt> elements.
func WriteGPX(w io.Writer, resp *RouteResponse, style GPXStyle) error {
	if resp == nil || resp.Status != StatusSuccess {
		return fmt.Errorf("gpx: %w", errNoPath)
	}

	doc := gpxDocument{
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Version: "1.1",
		Creator: "osmroute",
	}
	if !resp.ComputedAt.IsZero() {
		doc.Meta.Time = resp.ComputedAt.UTC().Format(time.RFC3339)
	}

	points := make([]gpxPoint, 0, len(resp.Nodes))
	for _, n := range resp.Nodes {
		p := gpxPoint{Lat: n.Lat, Lon: n.Lon}
		if style != GPXTrack {
			p.Name = strconv.FormatInt(int64(n.ID), 10)
		}
		points = append(points, p)
	}

	switch style {
	case "", GPXRoute:
		doc.Route = &gpxRoute{Name: "route", Type: string(resp.Mode), Points: points}
	case GPXTrack:
		doc.Track = &gpxTrack{Name: "route", Type: string(resp.Mode), Segment: gpxSegment{Points: points}}
	default:
		return fmt.Errorf("gpx: %w: %q", ErrUnknownGPXStyle, style)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("gpx: encode: %w", err)
	}
	return enc.Close()
}

// WriteCSV writes a successful route as headerless "id,lat,lon" rows.
func WriteCSV(w io.Writer, resp *RouteResponse) error {
	if resp == nil || resp.Status != StatusSuccess {
		return fmt.Errorf("csv: %w", errNoPath)
	}

	cw := csv.NewWriter(w)
	for _, n := range resp.Nodes {
		if err := cw.Write([]string{
			strconv.FormatInt(int64(n.ID), 10),
			strconv.FormatFloat(n.Lat, 'f', -1, 64),
			strconv.FormatFloat(n.Lon, 'f', -1, 64),
		}); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
