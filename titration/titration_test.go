package titration

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/Oxyfit-go/convert"
	"github.com/CK6170/Oxyfit-go/models"
)

const flaskFile = `# flask calibration 2016-03
Flask  Volume  Date
5   97.3    2016-03-01
12  139.45  2016-03-01
`

func TestParseFlasks(t *testing.T) {
	table, err := ParseFlasks(strings.NewReader(flaskFile))
	require.NoError(t, err)
	assert.Equal(t, models.FlaskTable{5: 97.3, 12: 139.45}, table)
}

func TestParseFlasksRejectsBadID(t *testing.T) {
	_, err := ParseFlasks(strings.NewReader("x 97.3\n"))
	var re *RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Line)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestFlaskVolumeAtReferenceTemperature(t *testing.T) {
	table := models.FlaskTable{5: 97.3}
	for _, g := range []GlassType{Borosilicate, Soft} {
		v, err := FlaskVolume(5, table, 20, g)
		require.NoError(t, err)
		assert.Equal(t, 97.3, v)
	}
	v, err := FlaskVolume(5, table, 30, Soft)
	require.NoError(t, err)
	assert.InDelta(t, 97.3*(1+0.000025*10), v, 1e-12)
}

func TestFlaskVolumeErrors(t *testing.T) {
	table := models.FlaskTable{5: 97.3}
	_, err := FlaskVolume(6, table, 20, Borosilicate)
	assert.ErrorIs(t, err, ErrUnknownFlask)
	_, err = FlaskVolume(5, table, 20, GlassType("quartz"))
	assert.ErrorIs(t, err, ErrUnknownGlass)
}

func TestNormalizeVolumeIdentityAtReference(t *testing.T) {
	assert.InDelta(t, 1.234, NormalizeVolume(1.234, 20), 1e-15)
	assert.Less(t, NormalizeVolume(1.0, 25), 1.0)
}

func TestTitrantNormality(t *testing.T) {
	n, err := TitrantNormality(models.TitrationHeader{
		TitrantVolume: 1.002, Blank: 0.02, IodateNormality: 0.02, IodateVolume: 5.0,
		IodateTemperature: 20, TitrantTemperature: 20,
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0*0.02/(1.002-0.02), n, 1e-12)
}

func TestTitrantNormalityDegenerate(t *testing.T) {
	_, err := TitrantNormality(models.TitrationHeader{
		TitrantVolume: 0.02, Blank: 0.02, IodateNormality: 0.02, IodateVolume: 5.0,
		IodateTemperature: 20, TitrantTemperature: 20,
	})
	assert.ErrorIs(t, err, ErrDegenerateTitration)
}

func TestBottleOxygenDegenerateFlask(t *testing.T) {
	_, err := BottleOxygen(1.2, 0.02, 0.1, 2.0)
	assert.ErrorIs(t, err, ErrDegenerateTitration)
}

const runLog = `# cruise 33RR2016 station 1
1.002 0.02 0.02 5.0 20.0 20.0
1 1 7 5 1.234 20.0 2.0
1 1 8 5 1.300 20.0 2.0 ABORT
1 1 99 5 1.300 20.0 2.0
1 1 37 5 1.300 20.0 2.0
`

func TestParseRun(t *testing.T) {
	run, err := ParseRun(strings.NewReader(runLog))
	require.NoError(t, err)
	assert.Equal(t, 1.002, run.Header.TitrantVolume)
	assert.Equal(t, 20.0, run.Header.TitrantTemperature)
	require.Len(t, run.Records, 1)
	assert.Equal(t, 7, run.Records[0].Bottle)
	assert.Equal(t, 3, run.Records[0].Line)
}

func TestParseRunHeaderFieldCount(t *testing.T) {
	_, err := ParseRun(strings.NewReader("1.0 0.02 0.02 5.0 20.0\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = ParseRun(strings.NewReader("# only comments\n"))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestParseRunNonNumericField(t *testing.T) {
	_, err := ParseRun(strings.NewReader("1.002 0.02 0.02 5.0 20.0 20.0\n1 1 seven 5 1.234 20.0 2.0\n"))
	var re *RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 2, re.Line)
}

func TestReduceEndToEnd(t *testing.T) {
	run, err := ParseRun(strings.NewReader(runLog))
	require.NoError(t, err)
	salinity := make([]float64, models.MaxBottles)
	salinity[6] = 34.5

	res, err := Reduce(run, models.FlaskTable{5: 97.3}, ReduceOptions{Expected: []int{7}, Salinity: salinity})
	require.NoError(t, err)

	thioN := 5.0 * 0.02 / (1.002 - 0.02)
	assert.InDelta(t, thioN, res.TitrantNormality, 1e-12)

	flaskVol := 97.3 * (1 + 0.00001*(2.0-20))
	want := ((1.234-0.02)*thioN*5.598 - 0.0017) / ((flaskVol - 2.0) * 0.001)
	got, ok := res.ML[6].Oxygen.Value()
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)
	// the uncorrected flask volume differs only by glass expansion
	assert.InDelta(t, ((1.234-0.02)*thioN*5.598-0.0017)/((97.3-2.0)*0.001), got, 2e-3)
	assert.Equal(t, 7, res.ML[6].Bottle)

	kg, ok := res.Kg[6].Oxygen.Value()
	require.True(t, ok)
	assert.InDelta(t, convert.MLPerLToUmolPerKg(want, 34.5, 2.0), kg, 1e-9)

	for i, slot := range res.ML {
		if i != 6 {
			assert.False(t, slot.Oxygen.IsValid(), "slot %d", i)
		}
	}
}

func TestReduceUnexpectedBottlesUseCounter(t *testing.T) {
	log := `1.002 0.02 0.02 5.0 20.0 20.0
1 1 3 5 1.1 20.0 2.0
1 1 5 5 1.2 20.0 2.0
1 1 9 5 1.3 20.0 2.0
`
	run, err := ParseRun(strings.NewReader(log))
	require.NoError(t, err)
	salinity := make([]float64, models.MaxBottles)

	res, err := Reduce(run, models.FlaskTable{5: 97.3}, ReduceOptions{Expected: []int{5}, Salinity: salinity})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ML[2].Bottle)
	assert.False(t, res.ML[2].Oxygen.IsValid())
	assert.False(t, res.Kg[2].Oxygen.IsValid())
	assert.Equal(t, 5, res.ML[4].Bottle)
	assert.True(t, res.ML[4].Oxygen.IsValid())
	assert.Equal(t, 3, res.ML[8].Bottle)
	assert.Equal(t, 3, res.Kg[8].Bottle)
	assert.Equal(t, models.Sentinel, res.Kg[8].Oxygen.Or(models.Sentinel))
}

func TestReduceDuplicateBottleLastWins(t *testing.T) {
	log := `1.002 0.02 0.02 5.0 20.0 20.0
1 1 4 5 1.1 20.0 2.0
1 1 4 5 1.3 20.0 2.0
`
	run, err := ParseRun(strings.NewReader(log))
	require.NoError(t, err)
	res, err := Reduce(run, models.FlaskTable{5: 97.3}, ReduceOptions{Expected: []int{4}, Salinity: make([]float64, 4)})
	require.NoError(t, err)

	n := res.TitrantNormality
	want, err := BottleOxygen(1.3, 0.02, n, 97.3*(1+0.00001*(2.0-20)))
	require.NoError(t, err)
	got, _ := res.ML[3].Oxygen.Value()
	assert.InDelta(t, want, got, 1e-9)
}

func TestReduceUnknownFlaskAborts(t *testing.T) {
	run, err := ParseRun(strings.NewReader("1.002 0.02 0.02 5.0 20.0 20.0\n1 1 4 6 1.1 20.0 2.0\n"))
	require.NoError(t, err)
	_, err = Reduce(run, models.FlaskTable{5: 97.3}, ReduceOptions{Expected: []int{4}, Salinity: make([]float64, 4)})
	assert.ErrorIs(t, err, ErrUnknownFlask)
	var re *RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 2, re.Line)
}

func TestReduceDegenerateStandardization(t *testing.T) {
	run, err := ParseRun(strings.NewReader("0.02 0.02 0.02 5.0 20.0 20.0\n"))
	require.NoError(t, err)
	_, err = Reduce(run, models.FlaskTable{}, ReduceOptions{})
	assert.ErrorIs(t, err, ErrDegenerateTitration)
}

func TestLoadRunAttachesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "o2_001.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2 3\n"), 0o644))
	_, err := LoadRun(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
