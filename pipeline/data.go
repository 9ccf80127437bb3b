package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CK6170/Oxyfit-go/colocate"
	"github.com/CK6170/Oxyfit-go/models"
)

// Bottles is the bottle summary of one cast, one entry per fired bottle.
type Bottles struct {
	Number      []int     `json:"number"`
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Salinity    []float64 `json:"salinity"`
	Voltage     []float64 `json:"voltage,omitempty"`
}

func (b *Bottles) Len() int { return len(b.Number) }

// SalinityBySlot returns bottle salinity indexed by bottle-1.
func (b *Bottles) SalinityBySlot() []float64 {
	out := make([]float64, models.MaxBottles)
	for i, n := range b.Number {
		if n >= 1 && n <= models.MaxBottles {
			out[n-1] = b.Salinity[i]
		}
	}
	return out
}

// LoadInstrument reads the parsed instrument configuration (JSON).
func LoadInstrument(path string) (*models.InstrumentConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeInstrument(b)
}

func DecodeInstrument(raw []byte) (*models.InstrumentConfig, error) {
	var cfg models.InstrumentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Sensors) == 0 {
		return nil, fmt.Errorf("no Sensors in instrument configuration")
	}
	return &cfg, nil
}

func LoadBottles(path string) (*Bottles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := ReadBottles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ReadBottles reads a bottle CSV with columns btlnum, pressure, temperature,
// salinity and an optional voltage column.
func ReadBottles(r io.Reader) (*Bottles, error) {
	t, err := readTable(r, []string{"btlnum", "pressure", "temperature", "salinity"}, []string{"voltage"})
	if err != nil {
		return nil, err
	}
	b := &Bottles{
		Pressure:    t.cols["pressure"],
		Temperature: t.cols["temperature"],
		Salinity:    t.cols["salinity"],
		Voltage:     t.cols["voltage"],
	}
	b.Number = make([]int, len(t.cols["btlnum"]))
	for i, v := range t.cols["btlnum"] {
		n := int(v)
		if float64(n) != v || n < 1 || n > models.MaxBottles {
			return nil, fmt.Errorf("row %d: invalid bottle number %v", i+2, v)
		}
		b.Number[i] = n
	}
	return b, nil
}

func LoadContinuous(path string) (*colocate.Continuous, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ReadContinuous(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ReadContinuous reads a pressure-aligned cast CSV with columns pressure,
// temperature, salinity, oxygen and voltage.
func ReadContinuous(r io.Reader) (*colocate.Continuous, error) {
	t, err := readTable(r, []string{"pressure", "temperature", "salinity", "oxygen", "voltage"}, nil)
	if err != nil {
		return nil, err
	}
	return &colocate.Continuous{
		Pressure:    t.cols["pressure"],
		Temperature: t.cols["temperature"],
		Salinity:    t.cols["salinity"],
		Oxygen:      t.cols["oxygen"],
		Voltage:     t.cols["voltage"],
	}, nil
}

type table struct {
	cols map[string][]float64
}

func readTable(r io.Reader, required, optional []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	want := make(map[string]int)
	for _, name := range required {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		want[name] = i
	}
	for _, name := range optional {
		if i, ok := index[name]; ok {
			want[name] = i
		}
	}

	t := &table{cols: make(map[string][]float64, len(want))}
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		for name, i := range want {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", row, name, err)
			}
			t.cols[name] = append(t.cols[name], v)
		}
	}
	return t, nil
}
