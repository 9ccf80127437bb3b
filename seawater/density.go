// Package seawater evaluates the equations of state and solubility used by the
// oxygen reduction.
package seawater

import "math"

// PureWaterDensity returns the density of air-free pure water (kg/m^3) at t degC.
// It is only used to correct reagent volumes for temperature.
func PureWaterDensity(t float64) float64 {
	const (
		z0 = 9.9983952e2
		z1 = 1.6945176e1
		z2 = -7.9870401e-3
		z3 = -4.6170461e-5
		z4 = 1.0556302e-7
		z5 = -2.8054253e-10
		z6 = 1.6879850e-2
	)
	return (z0 + t*(z1+t*(z2+t*(z3+t*(z4+t*z5))))) / (1.0 + z6*t)
}

// Density returns in-situ seawater density (kg/m^3) from the IES-80 equation of
// state. s is practical salinity, t is degC and p is decibars. Inputs are not range
// checked.
func Density(s, t, p float64) float64 {
	bars := p * 0.1

	// rho(s,t,0)
	rhow := 999.842594 + t*(0.06793952+t*(-0.00909529+t*(1.001685e-4+t*(-1.120083e-6+t*6.536332e-9))))
	kw := (t*(-0.0040899+t*(7.6438e-5+t*(-8.2467e-7+t*5.3875e-9))) + 0.824493) * s
	termc := s * math.Sqrt(s)
	kst0 := (-0.00572466 + t*(1.0227e-4+t*(-1.6546e-6))) * termc
	rho := rhow + kw + kst0 + 4.8314e-4*s*s

	if bars <= 0 {
		return rho
	}

	// secant bulk modulus k(s,t,p)
	kw = t*(148.4206+t*(-2.327105+t*(0.01360477+t*(-5.155288e-5)))) + 1.965221e4
	kst0 = (54.6746+t*(-0.603459+t*(0.0109987+t*(-6.167e-5))))*s + kw +
		(0.07944+t*(0.016483+t*(-5.3009e-4)))*termc
	terma := 3.239908 + t*(0.00143713+t*(1.16092e-4+t*(-5.77905e-7))) +
		(0.0022838+t*(-1.0981e-5+t*(-1.6078e-6)))*s +
		1.91075e-4*termc
	termb := 8.50935e-5 + t*(-6.12293e-6+t*5.2787e-8) +
		(-9.9348e-7+t*(2.0816e-8+t*9.1697e-10))*s
	kstp := kst0 + bars*(terma+bars*termb)
	return rho / (1.0 - bars/kstp)
}
