// Package polyline encodes route geometry in the Encoded Polyline Algorithm
// Format (https://developers.google.com/maps/documentation/utilities/polylinealgorithm).
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DefaultPrecision is the number of decimal places used by Encode and Decode.
const DefaultPrecision = 5

// ErrTruncated is returned when an encoded string ends in the middle of a value.
var ErrTruncated = errors.New("polyline: truncated input")

// Encode encodes a line with DefaultPrecision. Points are (lon, lat) as in orb;
// the encoding itself is lat-first.
func Encode(line orb.LineString) string {
	return EncodePrecision(line, DefaultPrecision)
}

// EncodePrecision encodes a line with the given number of decimal places.
func EncodePrecision(line orb.LineString, precision int) string {
	if len(line) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(line)*6)
	var prevLat, prevLon int

	for _, p := range line {
		lat := int(math.Round(p.Lat() * factor))
		lon := int(math.Round(p.Lon() * factor))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

// Decode decodes a string produced with DefaultPrecision.
func Decode(encoded string) (orb.LineString, error) {
	return DecodePrecision(encoded, DefaultPrecision)
}

// DecodePrecision decodes a string produced with the given precision.
func DecodePrecision(encoded string, precision int) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	var (
		line     orb.LineString
		lat, lon int
		index    int
	)

	for index < len(encoded) {
		dLat, next, err := readValue(encoded, index)
		if err != nil {
			return line, err
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return line, err
		}
		index = next

		lat += dLat
		lon += dLon
		line = append(line, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}

	return line, nil
}

func readValue(encoded string, index int) (int, int, error) {
	var result, shift int
	for {
		if index >= len(encoded) {
			return 0, index, ErrTruncated
		}
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

func appendValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Sample returns points spaced roughly intervalMeters apart along line,
// always including the first and last point.
func Sample(line orb.LineString, intervalMeters float64) orb.LineString {
	if len(line) == 0 {
		return nil
	}
	if intervalMeters <= 0 || len(line) == 1 {
		return append(orb.LineString(nil), line...)
	}

	sampled := orb.LineString{line[0]}
	accumulated := 0.0

	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segment := geo.Distance(a, b)
		offset := 0.0

		for accumulated+segment-offset >= intervalMeters {
			offset += intervalMeters - accumulated
			f := offset / segment
			sampled = append(sampled, orb.Point{
				a.Lon() + f*(b.Lon()-a.Lon()),
				a.Lat() + f*(b.Lat()-a.Lat()),
			})
			accumulated = 0
		}
		accumulated += segment - offset
	}

	if last := line[len(line)-1]; !sampled[len(sampled)-1].Equal(last) {
		sampled = append(sampled, last)
	}
	return sampled
}
