package simulator

import (
	"fmt"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
	"bipv_simulator/internal/technology"
)

// Surface is one panelled roof or facade of a building.
type Surface struct {
	ID   string
	Kind model.SurfaceKind

	// Irradiance is one year of incident energy per time step (Wh/m²). It is
	// replayed every simulated year.
	Irradiance []float64

	Panels []*panel.Panel

	// Base is the technology every panel starts with on a fresh run.
	Base *technology.Technology

	// Upgrade, when set, is installed instead of the current technology on
	// every replacement.
	Upgrade *technology.Technology
}

// SurfaceSpec describes a surface to be built from a catalog.
type SurfaceSpec struct {
	ID                string
	Kind              model.SurfaceKind
	PanelCount        int
	PanelArea         float64
	TechnologyID      string
	UpgradeTechnology string
}

// NewSurface resolves technologies in the catalog and creates PanelCount
// panels in the not-working state.
func NewSurface(spec SurfaceSpec, irradiance []float64, catalog *technology.Catalog) (*Surface, error) {
	if !spec.Kind.Valid() {
		return nil, model.InvalidParameter("surface %s: unknown kind %q", spec.ID, spec.Kind)
	}
	if spec.PanelCount <= 0 {
		return nil, model.InvalidParameter("surface %s: panel count must be positive, got %d", spec.ID, spec.PanelCount)
	}
	if !(spec.PanelArea > 0) {
		return nil, model.InvalidParameter("surface %s: panel area must be positive, got %v", spec.ID, spec.PanelArea)
	}

	tech, err := catalog.Get(spec.TechnologyID)
	if err != nil {
		return nil, fmt.Errorf("surface %s: %w", spec.ID, err)
	}
	s := &Surface{
		ID:         spec.ID,
		Kind:       spec.Kind,
		Irradiance: irradiance,
		Base:       tech,
		Panels:     make([]*panel.Panel, spec.PanelCount),
	}
	if spec.UpgradeTechnology != "" {
		if s.Upgrade, err = catalog.Get(spec.UpgradeTechnology); err != nil {
			return nil, fmt.Errorf("surface %s upgrade: %w", spec.ID, err)
		}
	}
	for i := range s.Panels {
		s.Panels[i] = panel.New(i, spec.PanelArea, tech)
	}
	return s, nil
}

// Building groups the surfaces simulated together.
type Building struct {
	ID       string
	Surfaces []*Surface
}

// PanelCount returns the number of panel slots on surfaces of the given kind.
func (b *Building) PanelCount(kind model.SurfaceKind) int {
	n := 0
	for _, s := range b.Surfaces {
		if s.Kind == kind {
			n += len(s.Panels)
		}
	}
	return n
}

// WorkingPanels returns the number of panels currently producing.
func (b *Building) WorkingPanels() int {
	n := 0
	for _, s := range b.Surfaces {
		for _, p := range s.Panels {
			if p.IsWorking() {
				n++
			}
		}
	}
	return n
}
