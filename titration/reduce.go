package titration

import (
	"errors"
	"fmt"

	"github.com/CK6170/Oxyfit-go/convert"
	"github.com/CK6170/Oxyfit-go/models"
)

var ErrMissingSalinity = errors.New("no salinity for bottle")

// ReduceOptions configures Reduce.
type ReduceOptions struct {
	Glass GlassType
	// Expected lists the bottle numbers fired on the cast. Titrated bottles outside
	// this set are recorded as Missing.
	Expected []int
	// Salinity is indexed by bottle-1.
	Salinity []float64
}

// Reduce converts a titration run into bottle oxygen in ml/l and umol/kg.
//
// Every kept record advances a sequential counter. A bottle outside the expected set
// gets Missing oxygen, and its Bottle field in both arrays holds the counter value
// rather than its own number.
func Reduce(run *models.TitrationRun, flasks models.FlaskTable, opts ReduceOptions) (*models.OxygenResult, error) {
	if run == nil {
		return nil, ErrMissingHeader
	}
	glass := opts.Glass
	if glass == "" {
		glass = Borosilicate
	}
	if _, err := ExpansionCoefficient(glass); err != nil {
		return nil, err
	}
	normality, err := TitrantNormality(run.Header)
	if err != nil {
		return nil, fmt.Errorf("standardization: %w", err)
	}
	expected := make(map[int]bool, len(opts.Expected))
	for _, b := range opts.Expected {
		expected[b] = true
	}

	res := models.NewOxygenResult()
	res.TitrantNormality = normality
	counter := 0
	for _, rec := range run.Records {
		fail := func(err error) (*models.OxygenResult, error) {
			return nil, &RecordError{Line: rec.Line, Text: describe(rec), Err: err}
		}
		flaskVol, err := FlaskVolume(rec.Flask, flasks, rec.DrawTemperature, glass)
		if err != nil {
			return fail(err)
		}
		titrant20 := NormalizeVolume(rec.TitrantVolume, rec.TitrantTemperature)
		slot := rec.Bottle - 1
		counter++

		if !expected[rec.Bottle] {
			res.ML[slot] = models.BottleOxygen{Bottle: counter, Oxygen: models.Missing()}
			res.Kg[slot] = models.BottleOxygen{Bottle: counter, Oxygen: models.Missing()}
			continue
		}
		if slot >= len(opts.Salinity) {
			return fail(ErrMissingSalinity)
		}
		ml, err := BottleOxygen(titrant20, run.Header.Blank, normality, flaskVol)
		if err != nil {
			return fail(err)
		}
		kg := convert.MLPerLToUmolPerKg(ml, opts.Salinity[slot], rec.DrawTemperature)
		res.ML[slot] = models.BottleOxygen{Bottle: rec.Bottle, Oxygen: models.Valid(ml)}
		res.Kg[slot] = models.BottleOxygen{Bottle: rec.Bottle, Oxygen: models.Valid(kg)}
	}
	return res, nil
}

func describe(rec models.TitrationRecord) string {
	return fmt.Sprintf("station %d cast %d bottle %d flask %d", rec.Station, rec.Cast, rec.Bottle, rec.Flask)
}
