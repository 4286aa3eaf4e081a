package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bipv_simulator/internal/ingest"
	"bipv_simulator/internal/model"
	"bipv_simulator/internal/simulator"
	"bipv_simulator/internal/solar"
	"bipv_simulator/internal/technology"
)

// LoadCatalog reads the technology catalog CSV, or returns the built-in
// defaults when none is configured.
func (c *Config) LoadCatalog() (*technology.Catalog, error) {
	if c.TechnologyCatalog == "" {
		return technology.DefaultCatalog(), nil
	}
	f, err := os.Open(c.TechnologyCatalog)
	if err != nil {
		return nil, fmt.Errorf("opening technology catalog: %w", err)
	}
	defer f.Close()
	return ingest.ParseCatalog(f)
}

// BuildJobs creates one simulation job per building. Surfaces read their
// irradiance from the building's file, or get a synthetic clear-sky year at
// the configured site. resume holds previous states by building id and is
// only consulted when continue_simulation is set.
func (c *Config) BuildJobs(catalog *technology.Catalog, resume map[string]*simulator.BuildingState) ([]simulator.Job, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	synthetic := make(map[solar.Orientation][]float64)
	jobs := make([]simulator.Job, 0, len(c.Buildings))
	for _, bc := range c.Buildings {
		var series map[string][]float64
		if bc.IrradianceFile != "" {
			if series, err = c.readIrradiance(bc.IrradianceFile); err != nil {
				return nil, fmt.Errorf("building %s: %w", bc.ID, err)
			}
		}

		b := &simulator.Building{ID: bc.ID}
		for _, sc := range bc.Surfaces {
			irradiance, err := c.surfaceIrradiance(sc, series, synthetic)
			if err != nil {
				return nil, fmt.Errorf("building %s: %w", bc.ID, err)
			}
			surf, err := simulator.NewSurface(simulator.SurfaceSpec{
				ID:                sc.ID,
				Kind:              sc.Kind,
				PanelCount:        sc.PanelCount,
				PanelArea:         sc.PanelAreaM2,
				TechnologyID:      sc.Technology,
				UpgradeTechnology: sc.UpgradeTechnology,
			}, irradiance, catalog)
			if err != nil {
				return nil, fmt.Errorf("building %s: %w", bc.ID, err)
			}
			b.Surfaces = append(b.Surfaces, surf)
		}

		job := simulator.Job{Building: b, Options: opts, Years: c.Years()}
		if c.ContinueSimulation {
			st, ok := resume[bc.ID]
			if !ok {
				return nil, fmt.Errorf("building %s: no saved state to continue: %w", bc.ID, model.ErrStateMismatch)
			}
			job.Resume = st
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (c *Config) readIrradiance(name string) (map[string][]float64, error) {
	path := name
	if !filepath.IsAbs(path) && c.IrradianceDir != "" {
		path = filepath.Join(c.IrradianceDir, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening irradiance: %w", err)
	}
	defer f.Close()

	parser := &ingest.IrradianceParser{}
	return parser.Parse(f)
}

func (c *Config) surfaceIrradiance(sc Surface, series map[string][]float64, synthetic map[solar.Orientation][]float64) ([]float64, error) {
	if series != nil {
		s, ok := series[sc.ID]
		if !ok {
			return nil, fmt.Errorf("no irradiance for surface %s: %w", sc.ID, model.ErrNotFound)
		}
		return s, nil
	}

	o := solar.RoofSouth
	if sc.Kind == model.SurfaceFacade {
		o = solar.FacadeSouth
	}
	if sc.Orientation != nil {
		o = *sc.Orientation
	}
	if s, ok := synthetic[o]; ok {
		return s, nil
	}
	s, err := solar.ClearSkySeries(c.Site, o, c.StartYear, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("surface %s: %w", sc.ID, err)
	}
	synthetic[o] = s
	return s, nil
}
