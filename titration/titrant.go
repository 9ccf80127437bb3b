package titration

import (
	"fmt"
	"math"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/seawater"
)

const (
	// ml O2 per equivalent of thiosulfate
	winklerFactor = 5.598
	// reagent blank, ml O2
	reagentOxygen = 0.0017
	// ml of flask displaced by the MnCl2 and NaI/NaOH reagents
	reagentDisplacement = 2.0
)

// NormalizeVolume rescales a reagent volume dispensed at t degC to its volume at 20 degC.
func NormalizeVolume(volume, t float64) float64 {
	return volume * (seawater.PureWaterDensity(t) / seawater.PureWaterDensity(seawater.Standard.ReferenceTemperature))
}

// TitrantNormality returns the thiosulfate normality standardized against iodate.
func TitrantNormality(h models.TitrationHeader) (float64, error) {
	iodate20 := NormalizeVolume(h.IodateVolume, h.IodateTemperature)
	titrant20 := NormalizeVolume(h.TitrantVolume, h.TitrantTemperature) - h.Blank
	if titrant20 == 0 {
		return 0, fmt.Errorf("%w: standard titre equals blank", ErrDegenerateTitration)
	}
	n := iodate20 * h.IodateNormality / titrant20
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: normality %v", ErrDegenerateTitration, n)
	}
	return n, nil
}

// BottleOxygen returns dissolved oxygen (ml/l) for a titre already normalized to 20 degC.
func BottleOxygen(titrant20, blank, normality, flaskVolume float64) (float64, error) {
	if flaskVolume == reagentDisplacement {
		return 0, fmt.Errorf("%w: flask volume equals reagent displacement", ErrDegenerateTitration)
	}
	return ((titrant20-blank)*normality*winklerFactor - reagentOxygen) /
		((flaskVolume - reagentDisplacement) * 0.001), nil
}
