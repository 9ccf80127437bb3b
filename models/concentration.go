package models

import (
	"encoding/json"
	"strconv"
)

// Sentinel is the wire value of a missing concentration.
const Sentinel = -999.0

// Concentration is either a valid measurement or Missing. The zero value is Missing.
type Concentration struct {
	value float64
	valid bool
}

func Valid(v float64) Concentration { return Concentration{value: v, valid: true} }

// Missing marks a slot with no usable measurement.
func Missing() Concentration { return Concentration{} }

func (c Concentration) Value() (float64, bool) { return c.value, c.valid }

func (c Concentration) IsValid() bool { return c.valid }

// Or returns the value, or def when Missing.
func (c Concentration) Or(def float64) float64 {
	if !c.valid {
		return def
	}
	return c.value
}

func (c Concentration) String() string {
	if !c.valid {
		return "missing"
	}
	return strconv.FormatFloat(c.value, 'f', 4, 64)
}

func (c Concentration) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Or(Sentinel))
}

func (c *Concentration) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == Sentinel {
		*c = Missing()
		return nil
	}
	*c = Valid(v)
	return nil
}
