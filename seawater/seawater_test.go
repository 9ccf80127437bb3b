package seawater

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPureWaterDensityReferencePoint(t *testing.T) {
	assert.InDelta(t, Standard.PureWaterDensity20, PureWaterDensity(20), 1e-3)
	assert.Greater(t, PureWaterDensity(4), PureWaterDensity(20))
}

func TestDensityCheckValues(t *testing.T) {
	cases := []struct {
		s, t, p float64
		want    float64
	}{
		{0, 5, 0, 999.96675},
		{35, 5, 0, 1027.67547},
		{35, 25, 10000, 1062.53817},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, Density(c.s, c.t, c.p), 1e-3, "s=%v t=%v p=%v", c.s, c.t, c.p)
	}
}

func TestDensityZeroPressureBranch(t *testing.T) {
	for _, s := range []float64{0, 20, 34.5, 40} {
		for _, temp := range []float64{-1.5, 2, 15, 30} {
			d0 := Density(s, temp, 0)
			assert.Equal(t, d0, Density(s, temp, -0.0))
			assert.InDelta(t, d0, Density(s, temp, 1e-9), 1e-9)
		}
	}
}

func TestDensityIncreasesWithPressure(t *testing.T) {
	assert.Greater(t, Density(35, 2, 4000), Density(35, 2, 1000))
}

func TestOxygenSolubility(t *testing.T) {
	assert.InDelta(t, 6.315, OxygenSolubility(10, 35), 5e-3)
	assert.Greater(t, OxygenSolubility(2, 35), OxygenSolubility(20, 35))
	assert.Greater(t, OxygenSolubility(10, 0), OxygenSolubility(10, 35))
}

func TestKelvin(t *testing.T) {
	assert.Equal(t, 293.15, Kelvin(20))
}
