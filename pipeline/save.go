package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CK6170/Oxyfit-go/fit"
	"github.com/CK6170/Oxyfit-go/models"
)

// Version is written next to every saved report.
var Version = "oxyfit local"

// FittedCoefficients is the persisted form of a fit, keyed by coefficient name.
type FittedCoefficients struct {
	SensorID     string             `json:"SensorID"`
	Coefficients map[string]float64 `json:"Coefficients"`
	Converged    bool               `json:"Converged"`
	Reason       string             `json:"Reason"`
	RMS          float64            `json:"RMS"`
}

// NewFittedCoefficients names the coefficients of a fit result.
func NewFittedCoefficients(res *fit.Result, sensorID string) *FittedCoefficients {
	coefs := make(map[string]float64, len(models.CoefficientNames))
	for i, name := range models.CoefficientNames {
		coefs[name] = res.Coefficients[i]
	}
	return &FittedCoefficients{
		SensorID:     sensorID,
		Coefficients: coefs,
		Converged:    res.Status.Converged,
		Reason:       string(res.Status.Reason),
		RMS:          res.Summary.RMS,
	}
}

type savedReport struct {
	*Report
	Fitted *FittedCoefficients `json:"fitted,omitempty"`
}

// EncodeReport renders a report as indented JSON.
func EncodeReport(rep *Report, sensorID string) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("report nil")
	}
	out := savedReport{Report: rep}
	if rep.Fit != nil {
		out.Fitted = NewFittedCoefficients(rep.Fit, sensorID)
	}
	return json.MarshalIndent(out, "", "  ")
}

// SaveFittedJSON writes the report and a sibling .version file.
func SaveFittedJSON(path string, rep *Report, sensorID string) error {
	data, err := EncodeReport(rep, sensorID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	verFile := strings.TrimSuffix(path, ".json") + ".version"
	if err := os.WriteFile(verFile, []byte(Version+"\n"), 0644); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

// FittedPath derives the default output path from the run config path.
func FittedPath(configPath string) string {
	lower := strings.ToLower(configPath)
	if strings.HasSuffix(lower, "_fitted.json") {
		return configPath
	}
	for _, ext := range []string{".toml", ".json"} {
		if strings.HasSuffix(lower, ext) {
			return configPath[:len(configPath)-len(ext)] + "_fitted.json"
		}
	}
	return configPath + "_fitted.json"
}
