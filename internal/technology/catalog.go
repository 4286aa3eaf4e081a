package technology

import (
	"fmt"
	"sort"

	"bipv_simulator/internal/model"
)

// Catalog maps technology identifiers to technologies. It is filled once at
// load time and only read afterwards, so it can be shared by concurrent
// simulations without locking.
type Catalog struct {
	techs map[string]*Technology
}

func NewCatalog() *Catalog {
	return &Catalog{techs: make(map[string]*Technology)}
}

// Add validates and registers a technology. A duplicate id is rejected.
func (c *Catalog) Add(t Technology) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, ok := c.techs[t.ID]; ok {
		return model.InvalidParameter("duplicate technology id %q", t.ID)
	}
	tech := t
	c.techs[t.ID] = &tech
	return nil
}

// Get returns the shared technology registered under id.
func (c *Catalog) Get(id string) (*Technology, error) {
	t, ok := c.techs[id]
	if !ok {
		return nil, fmt.Errorf("technology %q: %w", id, model.ErrNotFound)
	}
	return t, nil
}

// IDs returns the registered identifiers in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.techs))
	for id := range c.techs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) Len() int {
	return len(c.techs)
}

// Defaults are the built-in crystalline silicon roof and facade products. The
// Weibull parameters follow the regular-loss scenario for c-Si modules.
var Defaults = []Technology{
	{
		ID:                "c-si_roof",
		InitialEfficiency: 0.20,
		Degradation: Degradation{
			Model:             DegradationFirstYearDrop,
			FirstYearDrop:     0.02,
			AnnualDegradation: 0.005,
		},
		Weibull:       Weibull{Shape: 5.3759, Scale: 30},
		Manufacturing: model.Footprint{PrimaryEnergy: 1100, Carbon: 250, Cost: 300},
		EndOfLife:     model.Footprint{PrimaryEnergy: 20, Carbon: 5, Cost: 10},
		WeightPerArea: 12,
	},
	{
		ID:                "c-si_facade",
		InitialEfficiency: 0.18,
		Degradation: Degradation{
			Model:             DegradationLinear,
			AnnualDegradation: 0.007,
		},
		Weibull:       Weibull{Shape: 5.3759, Scale: 30},
		Manufacturing: model.Footprint{PrimaryEnergy: 1300, Carbon: 290, Cost: 420},
		EndOfLife:     model.Footprint{PrimaryEnergy: 25, Carbon: 6, Cost: 12},
		WeightPerArea: 20,
	},
}

// DefaultCatalog returns a catalog holding Defaults.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, t := range Defaults {
		if err := c.Add(t); err != nil {
			panic(fmt.Sprintf("invalid built-in technology %s: %v", t.ID, err))
		}
	}
	return c
}
