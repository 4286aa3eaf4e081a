package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/simulator"
)

func makeResult(start int, energy ...float64) results.Result {
	tree := results.NewBranch().
		Set(results.KeyTotal, results.NewBranch().
			Set(results.KeyEnergyHarvested, results.NewSeries(energy)).
			Set(results.KeyPanelCount, results.NewScalar(1)))
	return results.Result{StartYear: start, Tree: tree}
}

func makeEntry(scenario, building string, start int, energy ...float64) Entry {
	return Entry{
		RunID:      uuid.New(),
		Scenario:   scenario,
		BuildingID: building,
		Result:     makeResult(start, energy...),
	}
}

var savedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	s := New()
	s.now = func() time.Time { return savedAt }
	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore()
	e := makeEntry("base", "b1", 2020, 1, 2, 3)
	require.NoError(t, s.Save(context.Background(), e))

	got, ok := s.Get("base", "b1")
	require.True(t, ok)
	assert.Equal(t, e.RunID, got.RunID)
	assert.Equal(t, savedAt, got.SavedAt)

	_, ok = s.Get("base", "b2")
	assert.False(t, ok)
	_, ok = s.Get("other", "b1")
	assert.False(t, ok)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := newTestStore()
	first := makeEntry("base", "b1", 2020, 1)
	second := makeEntry("base", "b1", 2020, 5)
	require.NoError(t, s.Save(context.Background(), first))
	require.NoError(t, s.Save(context.Background(), second))

	got, ok := s.Get("base", "b1")
	require.True(t, ok)
	assert.Equal(t, second.RunID, got.RunID)
	assert.Len(t, s.Entries("base"), 1)
}

func TestStore_ScenariosAndEntries(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Save(context.Background(),
		makeEntry("retrofit", "b2", 2020, 1),
		makeEntry("base", "b3", 2020, 1),
		makeEntry("retrofit", "b1", 2020, 1),
	))

	assert.Equal(t, []string{"base", "retrofit"}, s.Scenarios())

	entries := s.Entries("retrofit")
	require.Len(t, entries, 2)
	assert.Equal(t, "b1", entries[0].BuildingID)
	assert.Equal(t, "b2", entries[1].BuildingID)
	assert.Empty(t, s.Entries("missing"))
}

func TestStore_Aggregate(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Save(context.Background(),
		makeEntry("base", "b1", 2021, 100, 200),
		makeEntry("base", "b2", 2022, 100, 200, 200),
	))

	agg, err := s.Aggregate("base")
	require.NoError(t, err)
	assert.Equal(t, 2021, agg.StartYear)

	energy, err := agg.Tree.SeriesAt(results.KeyTotal, results.KeyEnergyHarvested)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 300, 200, 200}, energy.Yearly)
	assert.InDelta(t, 800, energy.Total, 1e-9)

	_, err = s.Aggregate("missing")
	assert.Error(t, err)
}

func TestStore_StatesAndDelete(t *testing.T) {
	s := newTestStore()
	outcome := simulator.Outcome{
		BuildingID: "b1",
		Result:     makeResult(2020, 1, 1),
		Indicators: kpi.Indicators{EnergyHarvested: 2},
		State:      simulator.BuildingState{BuildingID: "b1", OriginYear: 2020, LastYear: 2021},
	}
	runID := uuid.New()
	require.NoError(t, s.Save(context.Background(),
		NewEntry(runID, "base", outcome),
		makeEntry("base", "b2", 2020, 1),
	))

	states := s.States("base")
	require.Len(t, states, 1)
	assert.Equal(t, 2021, states["b1"].LastYear)

	e, ok := s.Get("base", "b1")
	require.True(t, ok)
	assert.Equal(t, runID, e.RunID)
	assert.InDelta(t, 2, e.Indicators.EnergyHarvested, 1e-12)

	assert.Equal(t, 2, s.Delete("base"))
	assert.Empty(t, s.Scenarios())
}

func TestStore_Sink(t *testing.T) {
	var _ Sink = New()
	var _ Sink = (*Postgres)(nil)
}
