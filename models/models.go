package models

// MaxBottles is the number of rosette positions. Bottle n occupies slot n-1.
const MaxBottles = 36

// OxygenSensorID is the configuration sensor-type code of the SBE 43 oxygen sensor.
const OxygenSensorID = "38"

// FlaskTable maps a flask ID to its calibrated volume at 20 degC.
type FlaskTable map[int]float64

// TitrationHeader is the standardization record heading a titration log.
type TitrationHeader struct {
	TitrantVolume      float64 `json:"titrant_volume"`
	Blank              float64 `json:"blank"`
	IodateNormality    float64 `json:"iodate_normality"`
	IodateVolume       float64 `json:"iodate_volume"`
	IodateTemperature  float64 `json:"iodate_temperature"`
	TitrantTemperature float64 `json:"titrant_temperature"`
}

// TitrationRecord is one titrated bottle.
type TitrationRecord struct {
	Line               int     `json:"line"`
	Station            int     `json:"station"`
	Cast               int     `json:"cast"`
	Bottle             int     `json:"bottle"`
	Flask              int     `json:"flask"`
	TitrantVolume      float64 `json:"titrant_volume"`
	TitrantTemperature float64 `json:"titrant_temperature"`
	DrawTemperature    float64 `json:"draw_temperature"`
	Status             string  `json:"status,omitempty"`
}

type TitrationRun struct {
	Header  TitrationHeader   `json:"header"`
	Records []TitrationRecord `json:"records"`
}

// BottleOxygen is one slot of an OxygenResult.
type BottleOxygen struct {
	Bottle int           `json:"bottle"`
	Oxygen Concentration `json:"oxygen"`
}

// OxygenResult holds bottle oxygen in ml/l (ML) and umol/kg (Kg), indexed by bottle-1.
type OxygenResult struct {
	ML               [MaxBottles]BottleOxygen `json:"ml_per_l"`
	Kg               [MaxBottles]BottleOxygen `json:"umol_per_kg"`
	TitrantNormality float64                  `json:"titrant_normality"`
}

// NewOxygenResult returns a result with every slot Missing.
func NewOxygenResult() *OxygenResult {
	return &OxygenResult{}
}

// Truth returns the ml/l values as a fit truth vector; Missing slots become 0 so the
// fitter skips them.
func (r *OxygenResult) Truth() []float64 {
	out := make([]float64, MaxBottles)
	for i, b := range r.ML {
		if v, ok := b.Oxygen.Value(); ok {
			out[i] = v
		}
	}
	return out
}

// Coefficients are the SBE 43 calibration parameters in the order
// Soc, Voffset, A, B, C, E.
type Coefficients [6]float64

func (c Coefficients) Soc() float64     { return c[0] }
func (c Coefficients) Voffset() float64 { return c[1] }
func (c Coefficients) A() float64       { return c[2] }
func (c Coefficients) B() float64       { return c[3] }
func (c Coefficients) C() float64       { return c[4] }
func (c Coefficients) E() float64       { return c[5] }

// CoefficientNames lists the coefficient labels in vector order.
var CoefficientNames = [6]string{"Soc", "Voffset", "A", "B", "C", "E"}

// SensorSample is one time-aligned CTD scan.
type SensorSample struct {
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
	Kelvin      float64 `json:"kelvin"`
	Salinity    float64 `json:"salinity"`
	Voltage     float64 `json:"voltage"`
}

// Series holds equal-length sensor channels.
type Series struct {
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Kelvin      []float64 `json:"kelvin"`
	Salinity    []float64 `json:"salinity"`
	Voltage     []float64 `json:"voltage"`
}

func (s Series) Len() int { return len(s.Pressure) }

// Sample returns the i-th scan of the series.
func (s Series) Sample(i int) SensorSample {
	return SensorSample{
		Pressure:    s.Pressure[i],
		Temperature: s.Temperature[i],
		Kelvin:      s.Kelvin[i],
		Salinity:    s.Salinity[i],
		Voltage:     s.Voltage[i],
	}
}

// SensorInfo carries the calibration sheet values of one sensor.
type SensorInfo struct {
	Soc    float64 `json:"Soc"`
	Offset float64 `json:"offset"`
	A      float64 `json:"A"`
	B      float64 `json:"B"`
	C      float64 `json:"C"`
	E      float64 `json:"E"`
}

type Sensor struct {
	SensorID string     `json:"SensorID"`
	Info     SensorInfo `json:"SensorInfo"`
}

// InstrumentConfig is the parsed instrument configuration.
type InstrumentConfig struct {
	Sensors []Sensor `json:"Sensors"`
}
