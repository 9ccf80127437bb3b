package seawater

import "math"

// Garcia & Gordon (1992) combined-fit coefficients, ml/l.
var (
	solA = [6]float64{2.00907, 3.22014, 4.0501, 4.94457, -0.256847, 3.88767}
	solB = [4]float64{-6.24523e-3, -7.37614e-3, -1.0341e-2, -8.17083e-3}
	solC = -4.88682e-7
)

// OxygenSolubility returns the saturation oxygen concentration (ml/l) of seawater
// at t degC and salinity s.
func OxygenSolubility(t, s float64) float64 {
	ts := math.Log((298.15 - t) / (Standard.KelvinOffset + t))
	ts2 := ts * ts
	ts3 := ts2 * ts
	ts4 := ts3 * ts
	ts5 := ts4 * ts
	lnC := solA[0] + solA[1]*ts + solA[2]*ts2 + solA[3]*ts3 + solA[4]*ts4 + solA[5]*ts5 +
		s*(solB[0]+solB[1]*ts+solB[2]*ts2+solB[3]*ts3) +
		solC*s*s
	return math.Exp(lnC)
}
