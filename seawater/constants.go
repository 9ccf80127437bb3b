package seawater

// Constants groups the physical constants used across the reduction.
type Constants struct {
	MolecularWeightO2    float64 // g/mol
	DensityO2STP         float64 // g/l at 0 degC
	GasConstant          float64 // x10 J/(kmol K)
	KelvinOffset         float64
	ReferenceTemperature float64 // degC, reagent and flask calibration temperature
	PureWaterDensity20   float64 // kg/m^3 at ReferenceTemperature
}

// Standard is the process-wide constants table. Treat it as read-only.
var Standard = Constants{
	MolecularWeightO2:    31.9988,
	DensityO2STP:         1.42905481,
	GasConstant:          831.432,
	KelvinOffset:         273.15,
	ReferenceTemperature: 20,
	PureWaterDensity20:   998.2041,
}

// Kelvin converts a Celsius temperature.
func Kelvin(t float64) float64 {
	return t + Standard.KelvinOffset
}
