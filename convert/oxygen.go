// Package convert moves oxygen concentrations between volumetric and
// mass-based units.
package convert

import "github.com/CK6170/Oxyfit-go/seawater"

// mlPerUmol is the ml of O2 gas at STP per umol.
func mlPerUmol() float64 {
	return seawater.Standard.MolecularWeightO2 / seawater.Standard.DensityO2STP * 0.001
}

// MLPerLToUmolPerKg converts ml/l to umol/kg using the zero-pressure seawater
// density at salinity s and temperature t.
func MLPerLToUmolPerKg(o2 float64, s, t float64) float64 {
	return o2 / (mlPerUmol() * seawater.Density(s, t, 0) / 1000)
}

// UmolPerKgToMLPerL is the inverse of MLPerLToUmolPerKg.
func UmolPerKgToMLPerL(o2 float64, s, t float64) float64 {
	return o2 * mlPerUmol() * seawater.Density(s, t, 0) / 1000
}
