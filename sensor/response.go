// Package sensor evaluates the SBE 43 oxygen sensor transfer function.
package sensor

import (
	"fmt"
	"math"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/seawater"
)

// SolubilityFunc returns oxygen saturation (ml/l) at temperature t and salinity s.
type SolubilityFunc func(t, s float64) float64

// Model evaluates
//
//	O2 = Soc * (V + Voffset) * (1 + A*T + B*T^2 + C*T^3) * OxSol(T,S) * exp(E*P/K)
type Model struct {
	Solubility SolubilityFunc
}

// Default uses the Garcia & Gordon solubility.
var Default = Model{Solubility: seawater.OxygenSolubility}

// OxygenScalar evaluates one scan, unrounded.
func (m Model) OxygenScalar(c models.Coefficients, p, k, t, s, v float64) float64 {
	return c.Soc() * (v + c.Voffset()) *
		(1.0 + c.A()*t + c.B()*t*t + c.C()*t*t*t) *
		m.Solubility(t, s) *
		math.Exp(c.E()*p/k)
}

// OxygenBatch evaluates every scan of the series, rounding each value to 4 decimals.
func (m Model) OxygenBatch(c models.Coefficients, in models.Series) ([]float64, error) {
	n := in.Len()
	if len(in.Kelvin) != n || len(in.Temperature) != n || len(in.Salinity) != n || len(in.Voltage) != n {
		return nil, fmt.Errorf("series length mismatch: P=%d K=%d T=%d S=%d V=%d",
			n, len(in.Kelvin), len(in.Temperature), len(in.Salinity), len(in.Voltage))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = Round4(m.OxygenScalar(c, in.Pressure[i], in.Kelvin[i], in.Temperature[i], in.Salinity[i], in.Voltage[i]))
	}
	return out, nil
}

func OxygenScalar(c models.Coefficients, p, k, t, s, v float64) float64 {
	return Default.OxygenScalar(c, p, k, t, s, v)
}

func OxygenBatch(c models.Coefficients, in models.Series) ([]float64, error) {
	return Default.OxygenBatch(c, in)
}

// Round4 rounds half away from zero to 4 decimal places.
func Round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
