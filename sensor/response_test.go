package sensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/seawater"
)

var sheet = models.Coefficients{0.4431, -0.4998, -3.1e-3, 1.47e-4, -2.3e-6, 0.036}

func TestScalarMatchesBatchOnSingleSample(t *testing.T) {
	p, temp, s, v := 1500.0, 3.2, 34.6, 2.41
	k := seawater.Kelvin(temp)

	scalar := OxygenScalar(sheet, p, k, temp, s, v)
	batch, err := OxygenBatch(sheet, models.Series{
		Pressure: []float64{p}, Kelvin: []float64{k}, Temperature: []float64{temp},
		Salinity: []float64{s}, Voltage: []float64{v},
	})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.InDelta(t, scalar, batch[0], 0.5e-4)
	assert.Equal(t, Round4(scalar), batch[0])
}

func TestBatchLengthMismatch(t *testing.T) {
	_, err := OxygenBatch(sheet, models.Series{
		Pressure: []float64{1, 2}, Kelvin: []float64{274}, Temperature: []float64{1, 2},
		Salinity: []float64{35, 35}, Voltage: []float64{2, 2},
	})
	assert.Error(t, err)
}

func TestInjectedSolubility(t *testing.T) {
	m := Model{Solubility: func(t, s float64) float64 { return 1 }}
	c := models.Coefficients{2, 0.5, 0, 0, 0, 0}
	assert.Equal(t, 2*(1.5+0.5), m.OxygenScalar(c, 100, 280, 5, 35, 1.5))

	c[5] = 0.01
	assert.InDelta(t, 4*math.Exp(0.01*100/280.0), m.OxygenScalar(c, 100, 280, 5, 35, 1.5), 1e-12)
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 1.2346, Round4(1.23456))
	assert.Equal(t, -1.2346, Round4(-1.23456))
}
