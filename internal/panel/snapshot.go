package panel

import (
	"fmt"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/technology"
)

// State is the serializable form of a panel. Age and LifeExpectancy are nil
// together when the panel is not working.
type State struct {
	Index          int     `json:"index"`
	Area           float64 `json:"area"`
	TechnologyID   string  `json:"technology_id"`
	Age            *int    `json:"age"`
	LifeExpectancy *int    `json:"life_expectancy"`
}

// Snapshot captures the panel state by value.
func (p *Panel) Snapshot() State {
	s := State{
		Index:        p.Index,
		Area:         p.Area,
		TechnologyID: p.tech.ID,
	}
	if p.IsWorking() {
		age, life := p.age, p.lifeExpectancy
		s.Age = &age
		s.LifeExpectancy = &life
	}
	return s
}

// Restore rebuilds a panel from a snapshot, resolving its technology in the catalog.
func Restore(s State, catalog *technology.Catalog) (*Panel, error) {
	tech, err := catalog.Get(s.TechnologyID)
	if err != nil {
		return nil, fmt.Errorf("restoring panel %d: %w", s.Index, err)
	}
	p := New(s.Index, s.Area, tech)

	switch {
	case s.Age == nil && s.LifeExpectancy == nil:
		return p, nil
	case s.Age == nil || s.LifeExpectancy == nil:
		return nil, fmt.Errorf("panel %d: age and life expectancy must both be set or both be null: %w", s.Index, model.ErrStateMismatch)
	case *s.Age < 0 || *s.LifeExpectancy < 1 || *s.Age >= *s.LifeExpectancy:
		return nil, fmt.Errorf("panel %d: age %d inconsistent with life expectancy %d: %w", s.Index, *s.Age, *s.LifeExpectancy, model.ErrStateMismatch)
	}

	p.age = *s.Age
	p.lifeExpectancy = *s.LifeExpectancy
	return p, nil
}
