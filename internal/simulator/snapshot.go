package simulator

import (
	"fmt"
	"math/rand/v2"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
	"bipv_simulator/internal/technology"
)

// SurfaceState is the serializable panel state of one surface.
type SurfaceState struct {
	ID     string        `json:"id"`
	Panels []panel.State `json:"panels"`
}

// BuildingState is everything needed to continue a building simulation in a
// later process: panel states, the year bookkeeping, the random stream and
// the yearly records so far.
type BuildingState struct {
	BuildingID string         `json:"building_id"`
	OriginYear int            `json:"origin_year"`
	LastYear   int            `json:"last_year"`
	RNG        []byte         `json:"rng"`
	Surfaces   []SurfaceState `json:"surfaces"`
	History    []YearRecord   `json:"history"`
}

// Snapshot captures the simulator state by value.
func (s *Simulator) Snapshot() (BuildingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRun {
		return BuildingState{}, fmt.Errorf("building %s: nothing simulated yet: %w", s.building.ID, model.ErrStateMismatch)
	}
	rng, err := s.src.MarshalBinary()
	if err != nil {
		return BuildingState{}, fmt.Errorf("encoding random state: %w", err)
	}

	st := BuildingState{
		BuildingID: s.building.ID,
		OriginYear: s.originYear,
		LastYear:   s.lastYear,
		RNG:        rng,
		Surfaces:   make([]SurfaceState, len(s.building.Surfaces)),
		History:    make([]YearRecord, len(s.history)),
	}
	copy(st.History, s.history)
	for i, surf := range s.building.Surfaces {
		panels := make([]panel.State, len(surf.Panels))
		for j, p := range surf.Panels {
			panels[j] = p.Snapshot()
		}
		st.Surfaces[i] = SurfaceState{ID: surf.ID, Panels: panels}
	}
	return st, nil
}

// Restore loads a snapshot into the simulator so that the next Run with
// continueSimulation resumes after st.LastYear. The building layout must
// match the snapshot surface by surface.
func (s *Simulator) Restore(st BuildingState, catalog *technology.Catalog) error {
	if st.BuildingID != s.building.ID {
		return fmt.Errorf("snapshot of building %s restored into %s: %w", st.BuildingID, s.building.ID, model.ErrStateMismatch)
	}
	if st.LastYear < st.OriginYear || len(st.History) != st.LastYear-st.OriginYear+1 {
		return fmt.Errorf("building %s: %d yearly records for %d-%d: %w",
			st.BuildingID, len(st.History), st.OriginYear, st.LastYear, model.ErrStateMismatch)
	}
	if len(st.Surfaces) != len(s.building.Surfaces) {
		return fmt.Errorf("building %s: snapshot has %d surfaces, building has %d: %w",
			st.BuildingID, len(st.Surfaces), len(s.building.Surfaces), model.ErrStateMismatch)
	}

	restored := make([][]*panel.Panel, len(st.Surfaces))
	for i, ss := range st.Surfaces {
		surf := s.building.Surfaces[i]
		if ss.ID != surf.ID || len(ss.Panels) != len(surf.Panels) {
			return fmt.Errorf("building %s: surface %s (%d panels) does not match %s (%d panels): %w",
				st.BuildingID, ss.ID, len(ss.Panels), surf.ID, len(surf.Panels), model.ErrStateMismatch)
		}
		restored[i] = make([]*panel.Panel, len(ss.Panels))
		for j, ps := range ss.Panels {
			p, err := panel.Restore(ps, catalog)
			if err != nil {
				return err
			}
			restored[i][j] = p
		}
	}

	src := &rand.PCG{}
	if err := src.UnmarshalBinary(st.RNG); err != nil {
		return fmt.Errorf("decoding random state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, surf := range s.building.Surfaces {
		surf.Panels = restored[i]
	}
	s.src = src
	s.rng = rand.New(src)
	s.originYear = st.OriginYear
	s.lastYear = st.LastYear
	s.hasRun = true
	s.history = append([]YearRecord(nil), st.History...)
	return nil
}
