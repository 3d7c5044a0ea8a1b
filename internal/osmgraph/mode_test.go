package osmgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmroute/osmroute/internal/osmgraph"
)

func TestParseMode(t *testing.T) {
	m, err := osmgraph.ParseMode(" Car ")
	require.NoError(t, err)
	assert.Equal(t, osmgraph.ModeCar, m)

	_, err = osmgraph.ParseMode("hovercraft")
	assert.ErrorIs(t, err, osmgraph.ErrUnknownMode)
}

func TestProfileFor(t *testing.T) {
	tests := []struct {
		category osmgraph.Category
		mode     osmgraph.Mode
		usable   bool
		weight   float64
	}{
		{osmgraph.CategoryMotorway, osmgraph.ModeCar, true, 10},
		{osmgraph.CategoryMotorway, osmgraph.ModeCycle, false, 0},
		{osmgraph.CategoryMotorway, osmgraph.ModeFoot, false, 0},
		{osmgraph.CategoryCycleway, osmgraph.ModeCycle, true, 3},
		{osmgraph.CategoryFootway, osmgraph.ModeFoot, true, 1},
		{osmgraph.CategoryFootway, osmgraph.ModeCycle, false, 0.2},
		{osmgraph.CategoryRail, osmgraph.ModeTrain, true, 1},
		{osmgraph.CategoryRail, osmgraph.ModeCar, false, 0},
		{osmgraph.CategoryRiver, osmgraph.ModeFoot, false, 0},
		{osmgraph.Category("construction"), osmgraph.ModeCar, false, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+string(tt.mode), func(t *testing.T) {
			p := osmgraph.ProfileFor(tt.category, tt.mode)
			assert.Equal(t, tt.usable, p.Usable())
			assert.Equal(t, tt.weight, p.Weight)
		})
	}
}

func TestMaxWeight(t *testing.T) {
	assert.Equal(t, 10.0, osmgraph.MaxWeight(osmgraph.ModeCar))
	assert.Equal(t, 3.0, osmgraph.MaxWeight(osmgraph.ModeCycle))
	assert.Equal(t, 1.0, osmgraph.MaxWeight(osmgraph.ModeFoot))
	assert.Equal(t, 1.0, osmgraph.MaxWeight(osmgraph.ModeTrain))
	assert.Equal(t, 0.0, osmgraph.MaxWeight(osmgraph.Mode("boat")))
}

func TestMode_RespectsOneway(t *testing.T) {
	for _, m := range osmgraph.Modes {
		assert.Equal(t, m != osmgraph.ModeFoot, m.RespectsOneway(), m)
	}
}
