package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/Oxyfit-go/colocate"
	"github.com/CK6170/Oxyfit-go/config"
	"github.com/CK6170/Oxyfit-go/fit"
)

const instrumentJSON = `{"Sensors":[
 {"SensorID":"55","SensorInfo":{}},
 {"SensorID":"38","SensorInfo":{"Soc":0.45,"offset":-0.5,"A":-0.003,"B":0.00015,"C":-0.0000025,"E":0.036}}
]}`

// writeCast writes a ten-bottle cast and returns its config.
func writeCast(t *testing.T, withInstrument bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	var flasks, titr, btl, ct strings.Builder
	flasks.WriteString("# flask  Volume\n")
	titr.WriteString("1.002 0.02 0.02 5.0 20.0 20.0\n")
	btl.WriteString("btlnum,pressure,temperature,salinity,voltage\n")
	ct.WriteString("pressure,temperature,salinity,oxygen,voltage\n")
	for i := 1; i <= 10; i++ {
		p := float64(i) * 400
		temp := 22 - 2*float64(i)
		fmt.Fprintf(&flasks, "%d %.3f\n", 100+i, 130+float64(i))
		fmt.Fprintf(&titr, "1 1 %d %d %.4f 20.5 %.1f\n", i, 100+i, 0.9+0.03*float64(i%4), temp)
		fmt.Fprintf(&btl, "%d,%.1f,%.3f,%.4f,%.4f\n", i, p, temp, 34.5+0.02*float64(i), 2.6-0.1*float64(i))
	}
	for p := 0; p <= 4200; p += 100 {
		temp := 22 - float64(p)/200
		fmt.Fprintf(&ct, "%d,%.3f,%.3f,%.3f,%.3f\n", p, temp, 34.5+float64(p)/20000, 5.0, 2.6-float64(p)/4000)
	}

	cfg := config.Default()
	cfg.Inputs.Flasks = write("o2flasks.vol", flasks.String())
	cfg.Inputs.Titration = write("00101", titr.String())
	cfg.Inputs.Bottles = write("00101_btl.csv", btl.String())
	cfg.Inputs.Continuous = write("00101_ct1.csv", ct.String())
	if withInstrument {
		cfg.Inputs.Instrument = write("00101.json", instrumentJSON)
	}
	return cfg
}

func TestReduceOnly(t *testing.T) {
	cfg := writeCast(t, false)
	s, err := Open(cfg)
	require.NoError(t, err)
	assert.Len(t, s.Flasks, 10)
	assert.Len(t, s.Run.Records, 10)

	rep, err := s.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, rep.Fit)
	for i := 0; i < 10; i++ {
		assert.True(t, rep.Reduction.ML[i].Oxygen.IsValid(), "bottle %d", i+1)
		assert.True(t, rep.Reduction.Kg[i].Oxygen.IsValid(), "bottle %d", i+1)
	}
	assert.False(t, rep.Reduction.ML[10].Oxygen.IsValid())
}

func TestProcessFits(t *testing.T) {
	cfg := writeCast(t, true)
	cfg.Fit.MaxIterations = 50
	s, err := Open(cfg)
	require.NoError(t, err)

	var phases []FitPhase
	rep, err := s.Process(context.Background(), func(u FitUpdate) { phases = append(phases, u.Phase) })
	require.NoError(t, err)
	require.NotNil(t, rep.Fit)
	assert.Len(t, rep.Fit.Residuals, 10)
	assert.Equal(t, 0.45, rep.Fit.Initial.Soc())
	assert.Equal(t, FitPhaseReducing, phases[0])
	assert.Contains(t, phases, FitPhaseAligning)
	assert.Equal(t, FitPhaseFinished, phases[len(phases)-1])
	if !rep.Fit.Status.Converged {
		assert.NotEmpty(t, rep.Warning)
	}

	// bottle voltage wins over the continuous scan
	assert.Equal(t, s.Bottles.Voltage, rep.Aligned.Voltage)
	// temperature comes from the nearest scan (400 dbar -> 20 degC)
	assert.InDelta(t, 20.0, rep.Aligned.Temperature[0], 1e-9)

	out := filepath.Join(t.TempDir(), "run_fitted.json")
	require.NoError(t, SaveFittedJSON(out, rep, "38"))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "fitted")
	assert.Contains(t, decoded, "reduction")
	_, err = os.Stat(strings.TrimSuffix(out, ".json") + ".version")
	assert.NoError(t, err)
}

func TestProcessWithoutAlignment(t *testing.T) {
	cfg := writeCast(t, true)
	cfg.Fit.Align = false
	s, err := Open(cfg)
	require.NoError(t, err)
	var phases []FitPhase
	rep, err := s.Process(context.Background(), func(u FitUpdate) { phases = append(phases, u.Phase) })
	require.NoError(t, err)
	assert.NotContains(t, phases, FitPhaseAligning)
	assert.Equal(t, s.Bottles.Temperature, rep.Aligned.Temperature)
	assert.Equal(t, -1, rep.Aligned.Index[0])
}

func TestProcessCanceledKeepsPartialFit(t *testing.T) {
	cfg := writeCast(t, true)
	s, err := Open(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := s.Process(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	require.NotNil(t, rep.Fit)
	assert.Equal(t, fit.ReasonCanceled, rep.Fit.Status.Reason)
	assert.False(t, rep.Fit.Status.Converged)
	assert.Equal(t, rep.Fit.Initial, rep.Fit.Coefficients)
	assert.Contains(t, rep.Warning, "stopped")
	assert.NotNil(t, rep.Reduction)
}

func TestProcessNonFiniteBottlePressure(t *testing.T) {
	cfg := writeCast(t, true)
	s, err := Open(cfg)
	require.NoError(t, err)
	s.Bottles.Pressure[2] = math.NaN()

	assert.NotPanics(t, func() {
		_, err = s.Process(context.Background(), nil)
	})
	assert.ErrorIs(t, err, colocate.ErrNoNearest)
}

func TestSaveFittedJSONVersionError(t *testing.T) {
	cfg := writeCast(t, false)
	s, err := Open(cfg)
	require.NoError(t, err)
	rep, err := s.Process(context.Background(), nil)
	require.NoError(t, err)

	dir := t.TempDir()
	out := filepath.Join(dir, "run_fitted.json")
	// a directory in place of the version file makes its write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "run_fitted.version"), 0o755))
	err = SaveFittedJSON(out, rep, "38")
	assert.ErrorContains(t, err, "version")
	_, statErr := os.Stat(out)
	assert.NoError(t, statErr)
}

func TestReadBottlesErrors(t *testing.T) {
	_, err := ReadBottles(strings.NewReader("btlnum,pressure,temperature\n1,2,3\n"))
	assert.ErrorContains(t, err, "salinity")

	_, err = ReadBottles(strings.NewReader("btlnum,pressure,temperature,salinity\n40,2,3,35\n"))
	assert.ErrorContains(t, err, "invalid bottle number")

	_, err = ReadBottles(strings.NewReader("btlnum,pressure,temperature,salinity\n1,x,3,35\n"))
	assert.ErrorContains(t, err, "pressure")
}

func TestDecodeInstrument(t *testing.T) {
	cfg, err := DecodeInstrument([]byte(instrumentJSON))
	require.NoError(t, err)
	require.Len(t, cfg.Sensors, 2)
	assert.Equal(t, -0.5, cfg.Sensors[1].Info.Offset)

	_, err = DecodeInstrument([]byte(`{"Sensors":[]}`))
	assert.Error(t, err)
}

func TestFittedPath(t *testing.T) {
	assert.Equal(t, "run_fitted.json", FittedPath("run.toml"))
	assert.Equal(t, "run_fitted.json", FittedPath("run.json"))
	assert.Equal(t, "run_fitted.json", FittedPath("run_fitted.json"))
	assert.Equal(t, "run_fitted.json", FittedPath("run"))
}
