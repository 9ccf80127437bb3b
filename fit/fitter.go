// Package fit refines SBE 43 calibration coefficients against bottle oxygen.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/seawater"
	"github.com/CK6170/Oxyfit-go/sensor"
)

// Sigma is the measurement uncertainty (ml/l) that scales every residual.
const Sigma = 0.829

var (
	ErrNoOxygenSensor = errors.New("no oxygen sensor in instrument configuration")
	ErrLengthMismatch = errors.New("input series lengths differ")
)

// Input holds the bottle truth and the CTD channels sampled at each bottle.
// Temperature is in degC.
type Input struct {
	Truth       []float64 `json:"truth"`
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Salinity    []float64 `json:"salinity"`
	Voltage     []float64 `json:"voltage"`
}

// Series converts the channels, adding Kelvin temperature.
func (in Input) Series() models.Series {
	k := make([]float64, len(in.Temperature))
	for i, t := range in.Temperature {
		k[i] = seawater.Kelvin(t)
	}
	return models.Series{
		Pressure:    in.Pressure,
		Temperature: in.Temperature,
		Kelvin:      k,
		Salinity:    in.Salinity,
		Voltage:     in.Voltage,
	}
}

func (in Input) validate() error {
	n := len(in.Truth)
	if len(in.Pressure) != n || len(in.Temperature) != n || len(in.Salinity) != n || len(in.Voltage) != n {
		return fmt.Errorf("%w: truth=%d P=%d T=%d S=%d V=%d", ErrLengthMismatch,
			n, len(in.Pressure), len(in.Temperature), len(in.Salinity), len(in.Voltage))
	}
	return nil
}

// Summary describes the final residual vector.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	RMS    float64 `json:"rms"`
}

type Result struct {
	Initial      models.Coefficients `json:"initial"`
	Coefficients models.Coefficients `json:"coefficients"`
	Status       Status              `json:"status"`
	Residuals    []float64           `json:"residuals"`
	Summary      Summary             `json:"summary"`
}

type Fitter struct {
	Model    sensor.Model
	Settings Settings
	SensorID string
}

// NewFitter returns a fitter using the default transfer function and solver settings.
func NewFitter() *Fitter {
	return &Fitter{Model: sensor.Default, Settings: DefaultSettings(), SensorID: models.OxygenSensorID}
}

// SeedCoefficients reads the calibration sheet of sensorID from cfg. When several
// entries match, the last one wins.
func SeedCoefficients(cfg *models.InstrumentConfig, sensorID string) (models.Coefficients, error) {
	var c models.Coefficients
	if cfg == nil {
		return c, ErrNoOxygenSensor
	}
	found := false
	for _, s := range cfg.Sensors {
		if s.SensorID != sensorID {
			continue
		}
		c = models.Coefficients{s.Info.Soc, s.Info.Offset, s.Info.A, s.Info.B, s.Info.C, s.Info.E}
		found = true
	}
	if !found {
		return c, fmt.Errorf("%w: sensor id %s", ErrNoOxygenSensor, sensorID)
	}
	return c, nil
}

// Residuals returns |truth - model| / Sigma for every sample with positive truth.
// Samples with zero or negative truth are left out, so the result may be shorter
// than the input. Every channel of in must have the length of truth.
func (f *Fitter) Residuals(c models.Coefficients, truth []float64, in models.Series) ([]float64, error) {
	n := len(truth)
	if in.Len() != n || len(in.Kelvin) != n || len(in.Temperature) != n || len(in.Salinity) != n || len(in.Voltage) != n {
		return nil, fmt.Errorf("%w: truth=%d P=%d K=%d T=%d S=%d V=%d", ErrLengthMismatch,
			n, in.Len(), len(in.Kelvin), len(in.Temperature), len(in.Salinity), len(in.Voltage))
	}
	out := make([]float64, 0, n)
	for i, o2 := range truth {
		if o2 <= 0 {
			continue
		}
		d := o2 - f.Model.OxygenScalar(c, in.Pressure[i], in.Kelvin[i], in.Temperature[i], in.Salinity[i], in.Voltage[i])
		out = append(out, math.Sqrt(d*d/(Sigma*Sigma)))
	}
	return out, nil
}

func Residuals(c models.Coefficients, truth []float64, in models.Series) ([]float64, error) {
	return NewFitter().Residuals(c, truth, in)
}

// Fit seeds the coefficients from cfg and minimizes the residuals. An unconverged
// solve is returned with Status.Converged false and a nil error.
func (f *Fitter) Fit(ctx context.Context, cfg *models.InstrumentConfig, in Input, onProgress func(Progress)) (*Result, error) {
	id := f.SensorID
	if id == "" {
		id = models.OxygenSensorID
	}
	seed, err := SeedCoefficients(cfg, id)
	if err != nil {
		return nil, err
	}
	return f.FitFrom(ctx, seed, in, onProgress)
}

// FitFrom minimizes the residuals starting at seed.
func (f *Fitter) FitFrom(ctx context.Context, seed models.Coefficients, in Input, onProgress func(Progress)) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	series := in.Series()
	residual := func(x []float64) []float64 {
		var c models.Coefficients
		copy(c[:], x)
		// lengths were checked by validate
		r, _ := f.Residuals(c, in.Truth, series)
		return r
	}
	opt, err := LevenbergMarquardt(ctx, residual, seed[:], f.Settings, onProgress)
	if opt == nil {
		return nil, fmt.Errorf("oxygen fit: %w", err)
	}
	res := &Result{Initial: seed, Status: opt.Status, Residuals: opt.Residuals, Summary: summarize(opt.Residuals)}
	copy(res.Coefficients[:], opt.X)
	return res, err
}

// FitCoefficients runs the default fitter.
func FitCoefficients(ctx context.Context, cfg *models.InstrumentConfig, in Input) (*Result, error) {
	return NewFitter().Fit(ctx, cfg, in, nil)
}

func summarize(r []float64) Summary {
	if len(r) == 0 {
		return Summary{}
	}
	s := Summary{N: len(r), Mean: stat.Mean(r, nil)}
	if len(r) > 1 {
		s.StdDev = stat.StdDev(r, nil)
	}
	sq := 0.0
	for _, v := range r {
		sq += v * v
	}
	s.RMS = math.Sqrt(sq / float64(len(r)))
	return s
}
