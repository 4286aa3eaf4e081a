// Package config loads BIPV scenario files.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/simulator"
	"bipv_simulator/internal/solar"
)

// Config is a scenario: a set of buildings simulated over a year range under
// one replacement policy.
type Config struct {
	Scenario           string `yaml:"scenario"`
	StartYear          int    `yaml:"start_year"`
	EndYear            int    `yaml:"end_year"`
	ContinueSimulation bool   `yaml:"continue_simulation"` // resume from states in output_dir
	Seed               uint64 `yaml:"seed"`
	Workers            int    `yaml:"workers"`

	Policy     policy.Config           `yaml:"policy"`
	Conversion panel.ConversionOptions `yaml:"conversion"`
	Economics  Economics               `yaml:"economics"`

	TechnologyCatalog string     `yaml:"technology_catalog"` // CSV; built-in defaults when empty
	IrradianceDir     string     `yaml:"irradiance_dir"`
	Site              solar.Site `yaml:"site"` // for surfaces without an irradiance file

	Buildings []Building `yaml:"buildings"`

	OutputDir          string `yaml:"output_dir"`
	PostgresConnString string `yaml:"postgres_conn_string"`
}

type Economics struct {
	ElectricityPricePerKWh float64 `yaml:"electricity_price_per_kwh"`
}

type Building struct {
	ID             string    `yaml:"id"`
	IrradianceFile string    `yaml:"irradiance_file"` // relative to irradiance_dir
	Surfaces       []Surface `yaml:"surfaces"`
}

type Surface struct {
	ID                string            `yaml:"id"`
	Kind              model.SurfaceKind `yaml:"kind"`
	PanelCount        int               `yaml:"panel_count"`
	PanelAreaM2       float64           `yaml:"panel_area_m2"`
	Technology        string            `yaml:"technology"`
	UpgradeTechnology string            `yaml:"upgrade_technology"`

	// Orientation of the synthetic irradiance, used only without an
	// irradiance file. Defaults to a south roof or south facade.
	Orientation *solar.Orientation `yaml:"orientation"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Scenario:   "default",
		StartYear:  2020,
		EndYear:    2070,
		Seed:       1,
		Workers:    runtime.NumCPU(),
		Policy:     policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 5},
		Conversion: panel.DefaultConversion,
		Economics:  Economics{ElectricityPricePerKWh: 0.20},
		Site:       solar.Site{Latitude: 52.52, Longitude: 13.405, Albedo: 0.2}, // Berlin
		OutputDir:  "results",
	}
}

// Load loads a scenario from a YAML file
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader decodes YAML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func LoadFromReader(reader io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode config YAML: %v: %w", err, model.ErrInvalidParameter)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveToWriter writes the configuration as YAML.
func (c *Config) SaveToWriter(writer io.Writer) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode config YAML: %w", err)
	}
	_, err := writer.Write(buf.Bytes())
	return err
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return model.InvalidParameter("scenario cannot be empty")
	}
	if c.EndYear < c.StartYear {
		return model.InvalidParameter("end_year %d before start_year %d", c.EndYear, c.StartYear)
	}
	if c.Workers < 1 {
		return model.InvalidParameter("workers must be at least 1, got: %d", c.Workers)
	}
	if _, err := policy.New(c.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if !(c.Conversion.PerformanceRatio > 0) || c.Conversion.PerformanceRatio > 1 {
		return model.InvalidParameter("performance_ratio must be in (0, 1], got: %v", c.Conversion.PerformanceRatio)
	}
	if c.Economics.ElectricityPricePerKWh < 0 {
		return model.InvalidParameter("electricity_price_per_kwh cannot be negative, got: %v", c.Economics.ElectricityPricePerKWh)
	}
	if len(c.Buildings) == 0 {
		return model.InvalidParameter("no buildings configured")
	}

	seen := make(map[string]bool, len(c.Buildings))
	for _, b := range c.Buildings {
		if b.ID == "" {
			return model.InvalidParameter("building id cannot be empty")
		}
		if seen[b.ID] {
			return model.InvalidParameter("duplicate building id %q", b.ID)
		}
		seen[b.ID] = true
		if err := b.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (b Building) validate() error {
	if len(b.Surfaces) == 0 {
		return model.InvalidParameter("building %s has no surfaces", b.ID)
	}
	seen := make(map[string]bool, len(b.Surfaces))
	for _, s := range b.Surfaces {
		if s.ID == "" {
			return model.InvalidParameter("building %s: surface id cannot be empty", b.ID)
		}
		if seen[s.ID] {
			return model.InvalidParameter("building %s: duplicate surface id %q", b.ID, s.ID)
		}
		seen[s.ID] = true
		if !s.Kind.Valid() {
			return model.InvalidParameter("surface %s: kind must be roof or facade, got: %q", s.ID, s.Kind)
		}
		if s.PanelCount <= 0 {
			return model.InvalidParameter("surface %s: panel_count must be greater than 0, got: %d", s.ID, s.PanelCount)
		}
		if !(s.PanelAreaM2 > 0) {
			return model.InvalidParameter("surface %s: panel_area_m2 must be greater than 0, got: %v", s.ID, s.PanelAreaM2)
		}
		if s.Technology == "" {
			return model.InvalidParameter("surface %s: technology cannot be empty", s.ID)
		}
	}
	return nil
}

// Years returns the simulated year range.
func (c *Config) Years() model.YearRange {
	return model.YearRange{Start: c.StartYear, End: c.EndYear}
}

// Options returns the simulator options shared by every building.
func (c *Config) Options() (simulator.Options, error) {
	p, err := policy.New(c.Policy)
	if err != nil {
		return simulator.Options{}, err
	}
	return simulator.Options{
		Policy:           p,
		Conversion:       c.Conversion,
		ElectricityPrice: c.Economics.ElectricityPricePerKWh,
		Seed:             c.Seed,
	}, nil
}
