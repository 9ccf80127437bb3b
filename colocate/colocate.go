// Package colocate matches discrete bottle samples to the continuous CTD record.
package colocate

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptySeries = errors.New("empty continuous series")
	ErrNoNearest   = errors.New("no finite pressure to match")
)

// Continuous is a CTD record already aligned to pressure response time.
type Continuous struct {
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Salinity    []float64 `json:"salinity"`
	Oxygen      []float64 `json:"oxygen"`
	Voltage     []float64 `json:"voltage,omitempty"`
}

func (c Continuous) validate() error {
	n := len(c.Pressure)
	if n == 0 {
		return ErrEmptySeries
	}
	if len(c.Temperature) != n || len(c.Salinity) != n || len(c.Oxygen) != n {
		return fmt.Errorf("continuous series length mismatch: P=%d T=%d S=%d O=%d",
			n, len(c.Temperature), len(c.Salinity), len(c.Oxygen))
	}
	if len(c.Voltage) != 0 && len(c.Voltage) != n {
		return fmt.Errorf("continuous series length mismatch: P=%d V=%d", n, len(c.Voltage))
	}
	return nil
}

// Aligned holds the continuous values picked for each bottle.
type Aligned struct {
	Index       []int     `json:"index"`
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Salinity    []float64 `json:"salinity"`
	Oxygen      []float64 `json:"oxygen"`
	Voltage     []float64 `json:"voltage,omitempty"`
}

// Nearest returns the index of the value closest to v. Ties resolve to the first
// index. It returns -1 for an empty series.
func Nearest(series []float64, v float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, x := range series {
		d := math.Abs(x - v)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// AlignBottles picks, for each bottle pressure, the continuous scan nearest in
// pressure and copies its channels. The inputs are not modified. A NaN bottle
// pressure, or a scan with no finite pressure, fails with ErrNoNearest.
func AlignBottles(bottlePressure []float64, c Continuous) (*Aligned, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	n := len(bottlePressure)
	out := &Aligned{
		Index:       make([]int, n),
		Pressure:    append([]float64(nil), bottlePressure...),
		Temperature: make([]float64, n),
		Salinity:    make([]float64, n),
		Oxygen:      make([]float64, n),
	}
	if len(c.Voltage) > 0 {
		out.Voltage = make([]float64, n)
	}
	for i, p := range bottlePressure {
		j := Nearest(c.Pressure, p)
		if j < 0 {
			return nil, fmt.Errorf("bottle %d at %v dbar: %w", i, p, ErrNoNearest)
		}
		out.Index[i] = j
		out.Temperature[i] = c.Temperature[j]
		out.Salinity[i] = c.Salinity[j]
		out.Oxygen[i] = c.Oxygen[j]
		if out.Voltage != nil {
			out.Voltage[i] = c.Voltage[j]
		}
	}
	return out, nil
}

// Offset returns a copy of values with offset added.
func Offset(offset float64, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v + offset
	}
	return out
}
