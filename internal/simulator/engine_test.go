package simulator

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
	"bipv_simulator/internal/policy"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/technology"
)

type mockCallback struct {
	mu       sync.Mutex
	states   []State
	years    []YearRecord
	outcomes []Outcome
}

func (m *mockCallback) OnState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, s)
}

func (m *mockCallback) OnYear(r YearRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years = append(m.years, r)
}

func (m *mockCallback) OnBuilding(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
}

func (m *mockCallback) yearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.years)
}

var irradiance = []float64{0, 1000, 1000, 0}

func testCatalog(t *testing.T, techs ...technology.Technology) *technology.Catalog {
	t.Helper()
	c := technology.NewCatalog()
	for _, tech := range techs {
		require.NoError(t, c.Add(tech))
	}
	return c
}

func makeTech(id string, shape, scale float64) technology.Technology {
	return technology.Technology{
		ID:                id,
		InitialEfficiency: 0.2,
		Degradation: technology.Degradation{
			Model:             technology.DegradationFirstYearDrop,
			FirstYearDrop:     0.02,
			AnnualDegradation: 0.005,
		},
		Weibull:       technology.Weibull{Shape: shape, Scale: scale},
		Manufacturing: model.Footprint{PrimaryEnergy: 100, Carbon: 20, Cost: 30},
		EndOfLife:     model.Footprint{PrimaryEnergy: 5, Carbon: 1, Cost: 2},
		WeightPerArea: 10,
	}
}

func makeBuilding(t *testing.T, catalog *technology.Catalog, id, techID string, roofPanels, facadePanels int) *Building {
	t.Helper()
	b := &Building{ID: id}
	if roofPanels > 0 {
		s, err := NewSurface(SurfaceSpec{
			ID: id + "-roof", Kind: model.SurfaceRoof, PanelCount: roofPanels, PanelArea: 1, TechnologyID: techID,
		}, irradiance, catalog)
		require.NoError(t, err)
		b.Surfaces = append(b.Surfaces, s)
	}
	if facadePanels > 0 {
		s, err := NewSurface(SurfaceSpec{
			ID: id + "-facade", Kind: model.SurfaceFacade, PanelCount: facadePanels, PanelArea: 1, TechnologyID: techID,
		}, irradiance, catalog)
		require.NoError(t, err)
		b.Surfaces = append(b.Surfaces, s)
	}
	return b
}

func mustPolicy(t *testing.T, cfg policy.Config) policy.Policy {
	t.Helper()
	p, err := policy.New(cfg)
	require.NoError(t, err)
	return p
}

func makeOptions(t *testing.T, cfg policy.Config, seed uint64) Options {
	return Options{
		Policy:           mustPolicy(t, cfg),
		Conversion:       panel.ConversionOptions{PerformanceRatio: 0.75},
		ElectricityPrice: 0.2,
		Seed:             seed,
	}
}

func TestSimulator_InitialYear(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 5, 30))
	b := makeBuilding(t, catalog, "b1", "si", 4, 2)
	cb := &mockCallback{}
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.NoReplacement}, 1), cb)

	require.NoError(t, sim.Run(2020, 2020, false))
	require.Equal(t, 1, cb.yearCount())

	rec := cb.years[0]
	assert.Equal(t, 2020, rec.Year)
	assert.Equal(t, 4, rec.Roof.Installations)
	assert.Equal(t, 2, rec.Facades.Installations)
	assert.InDelta(t, 600, rec.Total().Manufacturing.PrimaryEnergy, 1e-9)
	assert.InDelta(t, 180, rec.Total().Cost(), 1e-9)
	// 2000 Wh/m² * 0.2 * 0.75 = 0.3 kWh per panel at age 0
	assert.InDelta(t, 1.2, rec.Roof.EnergyHarvested, 1e-9)
	assert.InDelta(t, 0.6, rec.Facades.EnergyHarvested, 1e-9)
	assert.InDelta(t, 0.36, rec.Total().Revenue, 1e-9)
	assert.Equal(t, 6, b.WorkingPanels())

	require.GreaterOrEqual(t, len(cb.states), 2)
	assert.True(t, cb.states[0].Running)
	assert.False(t, cb.states[len(cb.states)-1].Running)
	assert.Equal(t, 2020, sim.State().Year)
}

func TestSimulator_NoReplacementReachesZero(t *testing.T) {
	catalog := testCatalog(t, makeTech("short", 2, 5))
	b := makeBuilding(t, catalog, "b1", "short", 20, 0)
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.NoReplacement}, 3), nil)

	require.NoError(t, sim.Run(2020, 2080, false))
	assert.Equal(t, 0, b.WorkingPanels())

	failures := 0
	allFailed := false
	for _, rec := range sim.History() {
		if allFailed {
			assert.Equal(t, 0.0, rec.Total().EnergyHarvested, "year %d", rec.Year)
			assert.Equal(t, 0, rec.Total().Installations)
		}
		failures += rec.Total().Failures
		if failures == 20 {
			allFailed = true
		}
	}
	assert.True(t, allFailed)

	res := sim.Result()
	waste, err := res.Tree.SeriesAt(results.KeyTotal, results.KeyDMFAWaste)
	require.NoError(t, err)
	assert.InDelta(t, 200, waste.Total, 1e-9, "every panel decommissioned exactly once")
}

func TestSimulator_ReplaceAllResetsAges(t *testing.T) {
	catalog := testCatalog(t, makeTech("short", 2, 6))
	b := makeBuilding(t, catalog, "b1", "short", 15, 5)
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.ReplaceAllEveryNYears, FrequencyYears: 4}, 11), nil)

	require.NoError(t, sim.Run(2020, 2024, false))
	assertAllNew(t, b)

	// Continue cycle by cycle; the policy stays anchored on 2020.
	for end := 2028; end <= 2040; end += 4 {
		require.NoError(t, sim.Run(end-3, end, true))
		assertAllNew(t, b)
	}
	assert.Len(t, sim.History(), 21)
}

func assertAllNew(t *testing.T, b *Building) {
	t.Helper()
	for _, s := range b.Surfaces {
		for _, p := range s.Panels {
			age, ok := p.Age()
			require.True(t, ok, "panel %d of %s not working after replace-all", p.Index, s.ID)
			assert.Equal(t, 0, age)
		}
	}
}

func TestSimulator_ReplacementWinsOverFailure(t *testing.T) {
	// Lifetime always one year: every panel fails every year.
	catalog := testCatalog(t, makeTech("fragile", 10, 0.01))
	b := makeBuilding(t, catalog, "b1", "fragile", 3, 0)
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 1}, 5), nil)

	require.NoError(t, sim.Run(2020, 2030, false))
	for _, rec := range sim.History()[1:] {
		assert.Equal(t, 3, rec.Roof.Failures, "year %d", rec.Year)
		assert.Equal(t, 3, rec.Roof.Installations, "year %d", rec.Year)
		assert.InDelta(t, 0.9, rec.Roof.EnergyHarvested, 1e-9, "fresh panels every year")
	}
	assert.Equal(t, 3, b.WorkingPanels())
}

func TestSimulator_ForcedReplacementChargesWaste(t *testing.T) {
	catalog := testCatalog(t, makeTech("durable", 50, 1000))
	b := makeBuilding(t, catalog, "b1", "durable", 2, 0)
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.ReplaceFailedAndAgedEveryNYears, FrequencyYears: 5, MinAgeYears: 10}, 1), nil)

	require.NoError(t, sim.Run(2020, 2030, false))
	h := sim.History()
	assert.Equal(t, 0, h[5].Roof.Installations, "aged 5 in 2025, below threshold")
	assert.Equal(t, 2, h[10].Roof.Installations, "aged 10 in 2030")
	assert.InDelta(t, 20, h[10].Roof.Waste, 1e-9)
	assert.InDelta(t, 10, h[10].Roof.EndOfLife.PrimaryEnergy, 1e-9)
	assert.Equal(t, 0, h[10].Roof.Failures)
}

// The single-panel reference scenario: shape 2, scale 25, replace failed
// panels every 5 years over 2020-2070 with a footprint of 100 per panel.
func TestSimulator_SinglePanelScenario(t *testing.T) {
	catalog := testCatalog(t, makeTech("ref", 2, 25))
	opts := makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 5}, 2024)

	trace := func() []int {
		b := makeBuilding(t, catalog, "ref", "ref", 1, 0)
		sim := New(b, opts, nil)
		require.NoError(t, sim.Run(2020, 2070, false))

		var installs []int
		total := 0
		for _, rec := range sim.History() {
			if rec.Roof.Installations > 0 {
				installs = append(installs, rec.Year)
				if rec.Year != 2020 {
					assert.Equal(t, 0, (rec.Year-2020)%5, "replacements only on policy years")
				}
			}
			total += rec.Roof.Installations
		}

		pe, err := sim.Result().Tree.SeriesAt(results.KeyRoof, results.KeyPrimaryEnergy, results.KeyManufacturing)
		require.NoError(t, err)
		assert.InDelta(t, 100*float64(total), pe.Total, 1e-9)
		assert.InDelta(t, 300, pe.Total, 1e-9, "three installations")
		return installs
	}

	// Installation years recorded for seed 2024.
	want := []int{2020, 2045, 2070}
	assert.Equal(t, want, trace())
	assert.Equal(t, want, trace(), "same seed, same replacement events")
}

func TestSimulator_ContinuationMatchesSingleRun(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12))
	opts := makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 3}, 99)

	whole := New(makeBuilding(t, catalog, "b", "si", 10, 4), opts, nil)
	require.NoError(t, whole.Run(2020, 2060, false))

	split := New(makeBuilding(t, catalog, "b", "si", 10, 4), opts, nil)
	require.NoError(t, split.Run(2020, 2035, false))
	require.NoError(t, split.Run(2036, 2060, true))

	assert.Equal(t, whole.History(), split.History())
	assert.Equal(t, 2020, split.Result().StartYear)
}

func TestSimulator_ContinuationErrors(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12))
	sim := New(makeBuilding(t, catalog, "b", "si", 2, 0), makeOptions(t, policy.Config{Kind: policy.NoReplacement}, 1), nil)

	err := sim.Run(2030, 2040, true)
	assert.True(t, errors.Is(err, model.ErrStateMismatch), "no prior run")

	require.NoError(t, sim.Run(2020, 2029, false))
	err = sim.Run(2032, 2040, true)
	assert.True(t, errors.Is(err, model.ErrStateMismatch), "gap in years")
	err = sim.Run(2029, 2040, true)
	assert.True(t, errors.Is(err, model.ErrStateMismatch), "overlap")
	assert.Len(t, sim.History(), 10, "failed continuation leaves state untouched")

	err = sim.Run(2040, 2030, false)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestSimulator_FreshRunResets(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12))
	opts := makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 2}, 4)
	sim := New(makeBuilding(t, catalog, "b", "si", 5, 0), opts, nil)

	require.NoError(t, sim.Run(2020, 2040, false))
	first := sim.History()
	require.NoError(t, sim.Run(2020, 2040, false))
	assert.Equal(t, first, sim.History())
}

func TestSimulator_FreshRunRestoresBaseTechnology(t *testing.T) {
	catalog := testCatalog(t, makeTech("old", 10, 0.01), makeTech("new", 50, 1000))
	s, err := NewSurface(SurfaceSpec{
		ID: "roof", Kind: model.SurfaceRoof, PanelCount: 2, PanelArea: 1,
		TechnologyID: "old", UpgradeTechnology: "new",
	}, irradiance, catalog)
	require.NoError(t, err)
	b := &Building{ID: "b", Surfaces: []*Surface{s}}
	sim := New(b, makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 1}, 7), nil)

	require.NoError(t, sim.Run(2020, 2022, false))
	first := sim.History()
	assert.Equal(t, 2, first[1].Roof.Failures, "old panels last one year")
	for _, p := range s.Panels {
		require.Equal(t, "new", p.Technology().ID)
	}

	require.NoError(t, sim.Run(2020, 2022, false))
	assert.Equal(t, first, sim.History())
	for _, p := range s.Panels {
		assert.Equal(t, "new", p.Technology().ID, "upgraded again by the rerun")
	}
}

func TestSimulator_SnapshotRestore(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12), makeTech("si2", 4, 20))
	opts := makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 5}, 21)

	whole := New(makeBuilding(t, catalog, "b", "si", 6, 3), opts, nil)
	require.NoError(t, whole.Run(2020, 2070, false))

	first := New(makeBuilding(t, catalog, "b", "si", 6, 3), opts, nil)
	_, err := first.Snapshot()
	assert.True(t, errors.Is(err, model.ErrStateMismatch))

	require.NoError(t, first.Run(2020, 2044, false))
	st, err := first.Snapshot()
	require.NoError(t, err)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded BuildingState
	require.NoError(t, json.Unmarshal(data, &decoded))

	second := New(makeBuilding(t, catalog, "b", "si", 6, 3), opts, nil)
	require.NoError(t, second.Restore(decoded, catalog))
	require.NoError(t, second.Run(2045, 2070, true))
	assert.Equal(t, whole.History(), second.History())

	other := New(makeBuilding(t, catalog, "b", "si", 5, 3), opts, nil)
	assert.True(t, errors.Is(other.Restore(decoded, catalog), model.ErrStateMismatch))

	renamed := New(makeBuilding(t, catalog, "c", "si", 6, 3), opts, nil)
	assert.True(t, errors.Is(renamed.Restore(decoded, catalog), model.ErrStateMismatch))
}

func TestSimulator_UpgradeTechnology(t *testing.T) {
	catalog := testCatalog(t, makeTech("old", 10, 0.01), makeTech("new", 50, 1000))
	s, err := NewSurface(SurfaceSpec{
		ID: "roof", Kind: model.SurfaceRoof, PanelCount: 4, PanelArea: 1,
		TechnologyID: "old", UpgradeTechnology: "new",
	}, irradiance, catalog)
	require.NoError(t, err)
	b := &Building{ID: "b", Surfaces: []*Surface{s}}

	sim := New(b, makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 1}, 1), nil)
	require.NoError(t, sim.Run(2020, 2025, false))

	for _, p := range s.Panels {
		assert.Equal(t, "new", p.Technology().ID)
		assert.True(t, p.IsWorking())
	}
}

func TestSimulator_ResultTree(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12))
	sim := New(makeBuilding(t, catalog, "b", "si", 6, 4), makeOptions(t, policy.Config{Kind: policy.ReplaceFailedEveryNYears, FrequencyYears: 5}, 8), nil)
	require.NoError(t, sim.Run(2020, 2049, false))

	res := sim.Result()
	assert.Equal(t, 2020, res.StartYear)
	assert.Equal(t, model.YearRange{Start: 2020, End: 2049}, res.Years())

	for _, path := range [][]string{
		{results.KeyEnergyHarvested},
		{results.KeyDMFAWaste},
		{results.KeyPrimaryEnergy, results.KeyTotal},
		{results.KeyCarbon, results.KeyManufacturing},
		{results.KeyEconomic, results.KeyNetBenefit},
	} {
		roof, err := res.Tree.SeriesAt(append([]string{results.KeyRoof}, path...)...)
		require.NoError(t, err)
		facades, err := res.Tree.SeriesAt(append([]string{results.KeyFacades}, path...)...)
		require.NoError(t, err)
		total, err := res.Tree.SeriesAt(append([]string{results.KeyTotal}, path...)...)
		require.NoError(t, err)

		require.Len(t, total.Yearly, 30)
		assert.InDelta(t, roof.Total+facades.Total, total.Total, 1e-6, "%v", path)
		assert.InDelta(t, total.Cumulative[len(total.Cumulative)-1], total.Total, 1e-9)
	}

	_, err := res.Tree.SeriesAt(results.KeyTotal, results.KeyPanelCount)
	assert.Error(t, err, "panel count is a scalar")
	node, ok := res.Tree.Lookup(results.KeyTotal, results.KeyPanelCount)
	require.True(t, ok)
	n, ok := node.Scalar()
	require.True(t, ok)
	assert.Equal(t, 10.0, n)
}

func TestNewSurface_Errors(t *testing.T) {
	catalog := testCatalog(t, makeTech("si", 3, 12))
	valid := SurfaceSpec{ID: "s", Kind: model.SurfaceRoof, PanelCount: 1, PanelArea: 1, TechnologyID: "si"}

	_, err := NewSurface(valid, irradiance, catalog)
	require.NoError(t, err)

	bad := valid
	bad.TechnologyID = "unknown"
	_, err = NewSurface(bad, irradiance, catalog)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	bad = valid
	bad.UpgradeTechnology = "unknown"
	_, err = NewSurface(bad, irradiance, catalog)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	bad = valid
	bad.PanelCount = 0
	_, err = NewSurface(bad, irradiance, catalog)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	bad = valid
	bad.Kind = "window"
	_, err = NewSurface(bad, irradiance, catalog)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
}
