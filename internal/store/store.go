package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/simulator"
)

// Entry is the stored outcome of one building in one scenario run.
type Entry struct {
	RunID      uuid.UUID                `json:"run_id"`
	Scenario   string                   `json:"scenario"`
	BuildingID string                   `json:"building_id"`
	Result     results.Result           `json:"result"`
	Indicators kpi.Indicators           `json:"indicators"`
	State      *simulator.BuildingState `json:"state,omitempty"`
	SavedAt    time.Time                `json:"saved_at"`
}

// NewEntry converts a successful simulation outcome.
func NewEntry(runID uuid.UUID, scenario string, o simulator.Outcome) Entry {
	st := o.State
	return Entry{
		RunID:      runID,
		Scenario:   scenario,
		BuildingID: o.BuildingID,
		Result:     o.Result,
		Indicators: o.Indicators,
		State:      &st,
	}
}

// Sink persists scenario results.
type Sink interface {
	Save(ctx context.Context, entries ...Entry) error
}

type key struct {
	scenario string
	building string
}

// Store holds results in memory, keyed by scenario and building. A later
// save for the same building replaces the earlier one.
type Store struct {
	mu      sync.RWMutex
	entries map[key]Entry
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[key]Entry),
		now:     time.Now,
	}
}

// Save stores entries. It never fails.
func (s *Store) Save(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.SavedAt.IsZero() {
			e.SavedAt = s.now()
		}
		s.entries[key{e.Scenario, e.BuildingID}] = e
	}
	return nil
}

// Get returns the entry of a building in a scenario.
func (s *Store) Get(scenario, building string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key{scenario, building}]
	return e, ok
}

// Scenarios returns all scenario names, sorted.
func (s *Store) Scenarios() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for k := range s.entries {
		if !seen[k.scenario] {
			seen[k.scenario] = true
			names = append(names, k.scenario)
		}
	}
	sort.Strings(names)
	return names
}

// Entries returns the entries of a scenario ordered by building id.
func (s *Store) Entries(scenario string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for k, e := range s.entries {
		if k.scenario == scenario {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BuildingID < out[j].BuildingID })
	return out
}

// States returns the continuation states of a scenario by building id.
func (s *Store) States(scenario string) map[string]*simulator.BuildingState {
	out := make(map[string]*simulator.BuildingState)
	for _, e := range s.Entries(scenario) {
		if e.State != nil {
			out[e.BuildingID] = e.State
		}
	}
	return out
}

// Aggregate sums the results of every building of a scenario.
func (s *Store) Aggregate(scenario string) (results.Result, error) {
	entries := s.Entries(scenario)
	rs := make([]results.Result, len(entries))
	for i, e := range entries {
		rs[i] = e.Result
	}
	return results.Sum(rs...)
}

// Delete removes a scenario and returns the number of entries removed.
func (s *Store) Delete(scenario string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if k.scenario == scenario {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
