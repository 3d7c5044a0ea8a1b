package polyline

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// googleExample is the worked example from the algorithm description.
var googleExample = orb.LineString{
	{-120.2, 38.5},
	{-120.95, 40.7},
	{-126.453, 43.252},
}

func assertLinesNear(t *testing.T, want, got orb.LineString, tolerance float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat(), got[i].Lat(), tolerance, "lat %d", i)
		assert.InDelta(t, want[i].Lon(), got[i].Lon(), tolerance, "lon %d", i)
	}
}

func TestEncode_GoogleExample(t *testing.T) {
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", Encode(googleExample))
}

func TestDecode_GoogleExample(t *testing.T) {
	line, err := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	assertLinesNear(t, googleExample, line, 1e-9)
}

func TestDecode_Empty(t *testing.T) {
	line, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, line)
	assert.Equal(t, "", Encode(nil))
}

func TestDecode_Truncated(t *testing.T) {
	line, err := Decode("_p~iF~ps|U_ulL")
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Len(t, line, 1, "points before the truncation are returned")
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		line      orb.LineString
		precision int
	}{
		{"sutton coldfield", orb.LineString{{-1.8200, 52.5500}, {-1.8195, 52.5505}, {-1.8180, 52.5520}}, 5},
		{"southern hemisphere", orb.LineString{{151.2093, -33.8688}, {151.2100, -33.8700}}, 5},
		{"precision 6", orb.LineString{{-1.8200011, 52.5500042}, {-1.8195003, 52.5505009}}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodePrecision(tt.line, tt.precision)
			decoded, err := DecodePrecision(encoded, tt.precision)
			require.NoError(t, err)
			assertLinesNear(t, tt.line, decoded, 1.5/float64(pow10(tt.precision)))
		})
	}
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func TestSample(t *testing.T) {
	line := orb.LineString{{0, 0}, {0.1, 0}}
	total := geo.Distance(line[0], line[1])

	sampled := Sample(line, 1000)

	assert.Equal(t, line[0], sampled[0])
	assert.Equal(t, line[1], sampled[len(sampled)-1])
	assert.Equal(t, int(total/1000)+2, len(sampled))
	for i := 1; i < len(sampled)-1; i++ {
		assert.InDelta(t, 1000, geo.Distance(sampled[i-1], sampled[i]), 1)
	}
}

func TestSample_Degenerate(t *testing.T) {
	assert.Nil(t, Sample(nil, 10))

	single := orb.LineString{{1, 1}}
	assert.Equal(t, single, Sample(single, 10))

	line := orb.LineString{{0, 0}, {1, 1}}
	assert.Equal(t, line, Sample(line, 0))
}
