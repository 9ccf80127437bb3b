package colocate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearest(t *testing.T) {
	series := []float64{0, 10, 20, 30}
	assert.Equal(t, 2, Nearest(series, 21))
	assert.Equal(t, 0, Nearest(series, -5))
	assert.Equal(t, 3, Nearest(series, 1e6))
	// 15 is equidistant from 10 and 20
	assert.Equal(t, 1, Nearest(series, 15))
	assert.Equal(t, -1, Nearest(nil, 3))
}

func TestNearestSkipsNaN(t *testing.T) {
	assert.Equal(t, 2, Nearest([]float64{math.NaN(), 50, 9}, 10))
}

func TestAlignBottles(t *testing.T) {
	c := Continuous{
		Pressure:    []float64{0, 10, 20, 30},
		Temperature: []float64{20, 15, 10, 5},
		Salinity:    []float64{34, 34.2, 34.4, 34.6},
		Oxygen:      []float64{5, 5.5, 6, 6.5},
		Voltage:     []float64{2.5, 2.4, 2.3, 2.2},
	}
	bottles := []float64{21, 2, 29}
	a, err := AlignBottles(bottles, c)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0, 3}, a.Index)
	assert.Equal(t, []float64{10, 20, 5}, a.Temperature)
	assert.Equal(t, []float64{34.4, 34, 34.6}, a.Salinity)
	assert.Equal(t, []float64{6, 5, 6.5}, a.Oxygen)
	assert.Equal(t, []float64{2.3, 2.5, 2.2}, a.Voltage)
	assert.Equal(t, []float64{21, 2, 29}, bottles)

	a.Pressure[0] = -1
	assert.Equal(t, 21.0, bottles[0])
}

func TestAlignBottlesValidates(t *testing.T) {
	_, err := AlignBottles([]float64{1}, Continuous{})
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = AlignBottles([]float64{1}, Continuous{
		Pressure: []float64{0, 1}, Temperature: []float64{1}, Salinity: []float64{1, 2}, Oxygen: []float64{1, 2},
	})
	assert.Error(t, err)
}

func TestAlignBottlesNonFinitePressure(t *testing.T) {
	c := Continuous{
		Pressure:    []float64{0, 10},
		Temperature: []float64{20, 15},
		Salinity:    []float64{34, 34.2},
		Oxygen:      []float64{5, 5.5},
	}
	_, err := AlignBottles([]float64{3, math.NaN()}, c)
	assert.ErrorIs(t, err, ErrNoNearest)
	assert.ErrorContains(t, err, "bottle 1")

	c.Pressure = []float64{math.NaN(), math.NaN()}
	_, err = AlignBottles([]float64{3}, c)
	assert.ErrorIs(t, err, ErrNoNearest)
}

func TestOffsetIsPure(t *testing.T) {
	in := []float64{1, 2, 3}
	out := Offset(0.5, in)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, out)
	assert.Equal(t, []float64{1, 2, 3}, in)
}
