package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter marks malformed policy, technology or scenario parameters.
	// It is always returned at configuration time, before any year is simulated.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNotFound marks an unknown technology identifier or a missing catalog entry.
	ErrNotFound = errors.New("not found")
	// ErrStateMismatch marks a continued simulation whose recorded state does not
	// line up with the requested start year.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrSchemaMismatch marks two result trees that cannot be combined leaf by leaf.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// InvalidParameter wraps ErrInvalidParameter with a formatted reason.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

type SurfaceKind string

const (
	SurfaceRoof   SurfaceKind = "roof"
	SurfaceFacade SurfaceKind = "facade"
)

// Valid reports whether k is a known surface kind.
func (k SurfaceKind) Valid() bool {
	return k == SurfaceRoof || k == SurfaceFacade
}

// ResultKey is the key under which a surface kind is reported in a building result tree.
func (k SurfaceKind) ResultKey() string {
	if k == SurfaceFacade {
		return "facades"
	}
	return string(k)
}

// Footprint is an amount of embodied primary energy (kWh), carbon (kgCO2eq) and cost.
type Footprint struct {
	PrimaryEnergy float64 `json:"primary_energy" yaml:"primary_energy"`
	Carbon        float64 `json:"carbon" yaml:"carbon"`
	Cost          float64 `json:"cost" yaml:"cost"`
}

// Scale returns f multiplied by k, e.g. a per-m² footprint by a panel area.
func (f Footprint) Scale(k float64) Footprint {
	return Footprint{
		PrimaryEnergy: f.PrimaryEnergy * k,
		Carbon:        f.Carbon * k,
		Cost:          f.Cost * k,
	}
}

// Add returns the component-wise sum of f and o.
func (f Footprint) Add(o Footprint) Footprint {
	return Footprint{
		PrimaryEnergy: f.PrimaryEnergy + o.PrimaryEnergy,
		Carbon:        f.Carbon + o.Carbon,
		Cost:          f.Cost + o.Cost,
	}
}

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of years in the range, 0 when End precedes Start.
func (r YearRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether year lies in the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}
