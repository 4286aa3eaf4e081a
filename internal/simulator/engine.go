package simulator

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/results"
)

// State represents the current simulation state of a building.
type State struct {
	BuildingID string `json:"building_id"`
	Year       int    `json:"year"`
	Running    bool   `json:"running"`
}

// Callback receives simulation events. Implementations passed to RunCanopy
// are called from several workers and must be safe for concurrent use.
type Callback interface {
	OnState(state State)
	OnYear(record YearRecord)
	OnBuilding(outcome Outcome)
}

// Options configure a fleet simulation.
type Options struct {
	Policy           policy.Policy
	Conversion       panel.ConversionOptions
	ElectricityPrice float64 // revenue per kWh harvested
	Seed             uint64
}

// Simulator ages, fails and replaces the panels of one building year by year.
// Years depend on each other, so a Simulator runs on a single goroutine;
// State may be read concurrently.
type Simulator struct {
	mu       sync.Mutex
	building *Building
	opts     Options
	callback Callback

	src *rand.PCG
	rng *rand.Rand

	running    bool
	hasRun     bool
	originYear int // first year of the first run, anchors the policy cycle
	lastYear   int
	history    []YearRecord
}

func New(b *Building, opts Options, cb Callback) *Simulator {
	s := &Simulator{
		building: b,
		opts:     opts,
		callback: cb,
	}
	s.reseed()
	return s
}

// reseed derives the random stream from the scenario seed and the building
// id so that buildings are independent and runs are reproducible.
func (s *Simulator) reseed() {
	h := fnv.New64a()
	h.Write([]byte(s.building.ID))
	s.src = rand.NewPCG(s.opts.Seed, h.Sum64())
	s.rng = rand.New(s.src)
}

// State returns the current simulation state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		BuildingID: s.building.ID,
		Year:       s.lastYear,
		Running:    s.running,
	}
}

// Building returns the simulated building.
func (s *Simulator) Building() *Building {
	return s.building
}

// Run simulates the inclusive year range. A fresh run initializes every panel
// in startYear. With continueSimulation the run resumes from the panel state
// left by the previous run and must start the year after it ended.
func (s *Simulator) Run(startYear, endYear int, continueSimulation bool) error {
	if endYear < startYear {
		return model.InvalidParameter("end year %d before start year %d", endYear, startYear)
	}

	s.mu.Lock()
	if continueSimulation {
		if !s.hasRun {
			s.mu.Unlock()
			return fmt.Errorf("building %s: no recorded prior run to continue: %w", s.building.ID, model.ErrStateMismatch)
		}
		if startYear != s.lastYear+1 {
			s.mu.Unlock()
			return fmt.Errorf("building %s: continuing at %d but last simulated year is %d: %w",
				s.building.ID, startYear, s.lastYear, model.ErrStateMismatch)
		}
	} else {
		s.reset(startYear)
	}
	s.running = true
	s.mu.Unlock()
	s.broadcastState()

	for year := startYear; year <= endYear; year++ {
		initial := !continueSimulation && year == startYear
		rec := s.simulateYear(year, initial)

		s.mu.Lock()
		s.history = append(s.history, rec)
		s.lastYear = year
		s.hasRun = true
		s.mu.Unlock()

		if s.callback != nil {
			s.callback.OnYear(rec)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.broadcastState()
	return nil
}

// reset discards history and panel state. Must be called with mu held.
func (s *Simulator) reset(startYear int) {
	s.originYear = startYear
	s.lastYear = startYear - 1
	s.hasRun = false
	s.history = nil
	for _, surf := range s.building.Surfaces {
		for _, p := range surf.Panels {
			p.Reset(surf.Base)
		}
	}
	s.reseed()
}

func (s *Simulator) simulateYear(year int, initial bool) YearRecord {
	rec := YearRecord{BuildingID: s.building.ID, Year: year}

	for _, surf := range s.building.Surfaces {
		f := rec.flows(surf.Kind)

		if initial {
			for _, p := range surf.Panels {
				f.Manufacturing = f.Manufacturing.Add(p.InitializeOrReplace(s.rng, nil))
				f.Installations++
			}
		} else {
			for _, p := range surf.Panels {
				if !p.IsWorking() {
					continue
				}
				p.AdvanceOneYear()
				if !p.IsWorking() {
					f.Failures++
					decommission(p, f)
				}
			}

			// Replacement wins over a failure in the same year.
			for _, i := range s.opts.Policy.SelectPanelsToReplace(surf.Panels, year, s.originYear) {
				p := surf.Panels[i]
				if p.IsWorking() {
					decommission(p, f)
				}
				f.Manufacturing = f.Manufacturing.Add(p.InitializeOrReplace(s.rng, surf.Upgrade))
				f.Installations++
			}
		}

		for _, p := range surf.Panels {
			f.EnergyHarvested += p.YearlyEnergy(surf.Irradiance, s.opts.Conversion)
		}
		f.Revenue = f.EnergyHarvested * s.opts.ElectricityPrice
	}

	return rec
}

// decommission charges the end-of-life footprint and waste of removing p.
// A panel that fails is charged in its failure year even when the policy
// replaces it in that same year; a working panel is charged when replaced.
func decommission(p *panel.Panel, f *Flows) {
	fp, waste := p.Decommissioning()
	f.EndOfLife = f.EndOfLife.Add(fp)
	f.Waste += waste
}

// History returns a copy of the yearly records since the last fresh run.
func (s *Simulator) History() []YearRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]YearRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Result builds the building result tree (roof, facades and total) for all
// simulated years.
func (s *Simulator) Result() results.Result {
	history := s.History()

	s.mu.Lock()
	start := s.originYear
	s.mu.Unlock()

	roof := s.building.PanelCount(model.SurfaceRoof)
	facades := s.building.PanelCount(model.SurfaceFacade)

	tree := results.NewBranch().
		Set(results.KeyRoof, quantitiesTree(history, func(r YearRecord) Flows { return r.Roof }, roof)).
		Set(results.KeyFacades, quantitiesTree(history, func(r YearRecord) Flows { return r.Facades }, facades)).
		Set(results.KeyTotal, quantitiesTree(history, YearRecord.Total, roof+facades))
	return results.Result{StartYear: start, Tree: tree}
}

func (s *Simulator) broadcastState() {
	if s.callback != nil {
		s.callback.OnState(s.State())
	}
}
