package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/titration"
)

type InputsConfig struct {
	Flasks     string `toml:"flasks"`
	Titration  string `toml:"titration"`
	Bottles    string `toml:"bottles"`
	Continuous string `toml:"continuous"`
	Instrument string `toml:"instrument"`
}

type TitrationConfig struct {
	Glass string `toml:"glass"`
	// Expected overrides the bottle numbers read from the bottle file.
	Expected []int `toml:"expected"`
}

type FitConfig struct {
	SensorID       string  `toml:"sensor_id"`
	MaxIterations  int     `toml:"max_iterations"`
	FTol           float64 `toml:"ftol"`
	XTol           float64 `toml:"xtol"`
	GTol           float64 `toml:"gtol"`
	InitialDamping float64 `toml:"initial_damping"`
	// Align replaces bottle T/S with the nearest continuous scan by pressure.
	Align bool `toml:"align"`
}

type OutputConfig struct {
	Path  string `toml:"path"`
	Debug bool   `toml:"debug"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type Config struct {
	Inputs    InputsConfig    `toml:"inputs"`
	Titration TitrationConfig `toml:"titration"`
	Fit       FitConfig       `toml:"fit"`
	Output    OutputConfig    `toml:"output"`
	Server    ServerConfig    `toml:"server"`
}

func Default() *Config {
	return &Config{
		Titration: TitrationConfig{Glass: string(titration.Borosilicate)},
		Fit: FitConfig{
			SensorID:       models.OxygenSensorID,
			MaxIterations:  1400,
			FTol:           1.49012e-8,
			XTol:           1.49012e-8,
			InitialDamping: 1e-3,
			Align:          true,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Load reads a TOML run configuration on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from OXYFIT_* environment variables.
func (c *Config) ApplyEnv() error {
	str := map[string]*string{
		"OXYFIT_FLASKS":      &c.Inputs.Flasks,
		"OXYFIT_TITRATION":   &c.Inputs.Titration,
		"OXYFIT_BOTTLES":     &c.Inputs.Bottles,
		"OXYFIT_CONTINUOUS":  &c.Inputs.Continuous,
		"OXYFIT_INSTRUMENT":  &c.Inputs.Instrument,
		"OXYFIT_GLASS":       &c.Titration.Glass,
		"OXYFIT_SENSOR_ID":   &c.Fit.SensorID,
		"OXYFIT_OUTPUT":      &c.Output.Path,
		"OXYFIT_SERVER_ADDR": &c.Server.Addr,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv("OXYFIT_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OXYFIT_MAX_ITERATIONS: %w", err)
		}
		c.Fit.MaxIterations = n
	}
	if v, ok := os.LookupEnv("OXYFIT_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OXYFIT_DEBUG: %w", err)
		}
		c.Output.Debug = b
	}
	return nil
}

// Validate checks that a reduction can start. Fit inputs are only required when
// fit is true.
func (c *Config) Validate(fit bool) error {
	if c.Inputs.Flasks == "" {
		return fmt.Errorf("inputs.flasks is required")
	}
	if c.Inputs.Titration == "" {
		return fmt.Errorf("inputs.titration is required")
	}
	if c.Inputs.Bottles == "" {
		return fmt.Errorf("inputs.bottles is required")
	}
	if _, err := titration.ExpansionCoefficient(titration.GlassType(c.Titration.Glass)); err != nil {
		return fmt.Errorf("titration.glass: %w", err)
	}
	for _, b := range c.Titration.Expected {
		if b < 1 || b > models.MaxBottles {
			return fmt.Errorf("titration.expected: bottle %d out of range 1..%d", b, models.MaxBottles)
		}
	}
	if !fit {
		return nil
	}
	if c.Inputs.Instrument == "" {
		return fmt.Errorf("inputs.instrument is required to fit")
	}
	if c.Fit.Align && c.Inputs.Continuous == "" {
		return fmt.Errorf("inputs.continuous is required when fit.align is set")
	}
	if c.Fit.MaxIterations < 0 {
		return fmt.Errorf("fit.max_iterations must be >= 0")
	}
	return nil
}
