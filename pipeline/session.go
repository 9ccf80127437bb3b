package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/CK6170/Oxyfit-go/colocate"
	"github.com/CK6170/Oxyfit-go/config"
	"github.com/CK6170/Oxyfit-go/fit"
	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/titration"
)

type FitPhase string

const (
	FitPhaseReducing FitPhase = "reducing"
	FitPhaseAligning FitPhase = "aligning"
	FitPhaseFitting  FitPhase = "fitting"
	FitPhaseFinished FitPhase = "finished"
)

type FitUpdate struct {
	Phase     FitPhase
	Iteration int
	Cost      float64
	X         []float64
	Message   string
}

// Session holds the inputs of one cast. Inputs are read once in Open and not
// modified afterwards.
type Session struct {
	Config     *config.Config
	Flasks     models.FlaskTable
	Run        *models.TitrationRun
	Bottles    *Bottles
	Continuous *colocate.Continuous
	Instrument *models.InstrumentConfig
}

// Open loads every input named by cfg. Fit inputs are optional; Fit reports what
// is missing.
func Open(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config nil")
	}
	s := &Session{Config: cfg}
	var err error
	if s.Flasks, err = titration.LoadFlasks(cfg.Inputs.Flasks); err != nil {
		return nil, fmt.Errorf("flasks: %w", err)
	}
	if s.Run, err = titration.LoadRun(cfg.Inputs.Titration); err != nil {
		return nil, fmt.Errorf("titration: %w", err)
	}
	if s.Bottles, err = LoadBottles(cfg.Inputs.Bottles); err != nil {
		return nil, fmt.Errorf("bottles: %w", err)
	}
	if cfg.Inputs.Continuous != "" {
		if s.Continuous, err = LoadContinuous(cfg.Inputs.Continuous); err != nil {
			return nil, fmt.Errorf("continuous: %w", err)
		}
	}
	if cfg.Inputs.Instrument != "" {
		if s.Instrument, err = LoadInstrument(cfg.Inputs.Instrument); err != nil {
			return nil, fmt.Errorf("instrument: %w", err)
		}
	}
	return s, nil
}

// ReduceOptions derives the titration options from the bottle file and config.
func (s *Session) ReduceOptions() titration.ReduceOptions {
	expected := s.Config.Titration.Expected
	if len(expected) == 0 {
		expected = s.Bottles.Number
	}
	return titration.ReduceOptions{
		Glass:    titration.GlassType(s.Config.Titration.Glass),
		Expected: expected,
		Salinity: s.Bottles.SalinityBySlot(),
	}
}

func (s *Session) Reduce() (*models.OxygenResult, error) {
	return titration.Reduce(s.Run, s.Flasks, s.ReduceOptions())
}

// Align copies temperature, salinity and oxygen from the continuous scan nearest
// in pressure to each bottle. Oxygen voltage comes from the bottle file when it has
// one, otherwise from the same scan.
func (s *Session) Align() (*colocate.Aligned, error) {
	if s.Continuous == nil {
		return nil, fmt.Errorf("no continuous cast loaded")
	}
	a, err := colocate.AlignBottles(s.Bottles.Pressure, *s.Continuous)
	if err != nil {
		return nil, err
	}
	if len(s.Bottles.Voltage) == s.Bottles.Len() && s.Bottles.Len() > 0 {
		a.Voltage = append([]float64(nil), s.Bottles.Voltage...)
	}
	return a, nil
}

// BottleChannels returns the bottle file's own channels in aligned form.
func (s *Session) BottleChannels() *colocate.Aligned {
	n := s.Bottles.Len()
	a := &colocate.Aligned{
		Index:       make([]int, n),
		Pressure:    append([]float64(nil), s.Bottles.Pressure...),
		Temperature: append([]float64(nil), s.Bottles.Temperature...),
		Salinity:    append([]float64(nil), s.Bottles.Salinity...),
		Oxygen:      make([]float64, n),
		Voltage:     append([]float64(nil), s.Bottles.Voltage...),
	}
	for i := range a.Index {
		a.Index[i] = -1
	}
	return a
}

// FitInput pairs the reduced bottle oxygen with the aligned CTD channels.
func FitInput(b *Bottles, res *models.OxygenResult, a *colocate.Aligned) (fit.Input, error) {
	n := b.Len()
	if len(a.Voltage) != n {
		return fit.Input{}, fmt.Errorf("no oxygen voltage for bottles (need a voltage column)")
	}
	in := fit.Input{
		Truth:       make([]float64, n),
		Pressure:    a.Pressure,
		Temperature: a.Temperature,
		Salinity:    a.Salinity,
		Voltage:     a.Voltage,
	}
	for i, num := range b.Number {
		// Missing bottles get zero truth and drop out of the residuals.
		in.Truth[i] = res.ML[num-1].Oxygen.Or(0)
	}
	return in, nil
}

// Report is everything one run produces.
type Report struct {
	Created   time.Time            `json:"created"`
	Reduction *models.OxygenResult `json:"reduction"`
	Aligned   *colocate.Aligned    `json:"aligned,omitempty"`
	Fit       *fit.Result          `json:"fit,omitempty"`
	Warning   string               `json:"warning,omitempty"`
}

// Fitter builds a fitter from the session config.
func (s *Session) Fitter() *fit.Fitter {
	f := fit.NewFitter()
	fc := s.Config.Fit
	if fc.SensorID != "" {
		f.SensorID = fc.SensorID
	}
	f.Settings = fit.Settings{
		MaxIterations:  fc.MaxIterations,
		FTol:           fc.FTol,
		XTol:           fc.XTol,
		GTol:           fc.GTol,
		InitialDamping: fc.InitialDamping,
	}
	return f
}

// Process reduces the titrations and, when an instrument configuration is loaded,
// fits the oxygen sensor. An unconverged fit sets Report.Warning. A canceled fit
// returns the partial report together with the context error.
func (s *Session) Process(ctx context.Context, onUpdate func(FitUpdate)) (*Report, error) {
	emit := func(u FitUpdate) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}
	rep := &Report{Created: time.Now().UTC()}

	emit(FitUpdate{Phase: FitPhaseReducing, Message: fmt.Sprintf("Reducing %d titrations...", len(s.Run.Records))})
	res, err := s.Reduce()
	if err != nil {
		return nil, err
	}
	rep.Reduction = res
	if s.Instrument == nil {
		emit(FitUpdate{Phase: FitPhaseFinished, Message: "Reduction done (no instrument configuration, fit skipped)"})
		return rep, nil
	}

	aligned := s.BottleChannels()
	if s.Config.Fit.Align && s.Continuous != nil {
		emit(FitUpdate{Phase: FitPhaseAligning, Message: "Aligning bottles to continuous cast..."})
		if aligned, err = s.Align(); err != nil {
			return nil, fmt.Errorf("align: %w", err)
		}
	}
	rep.Aligned = aligned
	in, err := FitInput(s.Bottles, res, aligned)
	if err != nil {
		return nil, err
	}

	emit(FitUpdate{Phase: FitPhaseFitting, Message: "Fitting oxygen coefficients..."})
	result, err := s.Fitter().Fit(ctx, s.Instrument, in, func(p fit.Progress) {
		emit(FitUpdate{Phase: FitPhaseFitting, Iteration: p.Iteration, Cost: p.Cost, X: p.X})
	})
	if err != nil {
		if result == nil {
			return nil, err
		}
		// canceled: keep the best point reached so far
		rep.Fit = result
		rep.Warning = fmt.Sprintf("fit stopped after %d iterations: %v", result.Status.Iterations, err)
		return rep, err
	}
	rep.Fit = result
	if !result.Status.Converged {
		rep.Warning = fmt.Sprintf("fit did not converge (%s after %d iterations)", result.Status.Reason, result.Status.Iterations)
	}
	emit(FitUpdate{Phase: FitPhaseFinished, Iteration: result.Status.Iterations, X: result.Coefficients[:], Message: "Fit done"})
	return rep, nil
}
