package simulator

import (
	"bipv_simulator/internal/model"
	"bipv_simulator/internal/results"
)

// Flows are the quantities accumulated for one surface kind in one year.
type Flows struct {
	EnergyHarvested float64         `json:"energy_harvested"` // kWh
	Waste           float64         `json:"dmfa_waste"`       // kg
	Manufacturing   model.Footprint `json:"manufacturing"`
	EndOfLife       model.Footprint `json:"end_of_life"`
	Revenue         float64         `json:"revenue"`

	Installations int `json:"installations"`
	Failures      int `json:"failures"`
}

// Cost is the money spent in the year: new panels plus decommissioning.
func (f Flows) Cost() float64 {
	return f.Manufacturing.Cost + f.EndOfLife.Cost
}

func (f Flows) add(o Flows) Flows {
	return Flows{
		EnergyHarvested: f.EnergyHarvested + o.EnergyHarvested,
		Waste:           f.Waste + o.Waste,
		Manufacturing:   f.Manufacturing.Add(o.Manufacturing),
		EndOfLife:       f.EndOfLife.Add(o.EndOfLife),
		Revenue:         f.Revenue + o.Revenue,
		Installations:   f.Installations + o.Installations,
		Failures:        f.Failures + o.Failures,
	}
}

// YearRecord is emitted for every simulated year of a building.
type YearRecord struct {
	BuildingID string `json:"building_id"`
	Year       int    `json:"year"`
	Roof       Flows  `json:"roof"`
	Facades    Flows  `json:"facades"`
}

// Total returns the roof and facade flows combined.
func (r YearRecord) Total() Flows {
	return r.Roof.add(r.Facades)
}

func (r *YearRecord) flows(kind model.SurfaceKind) *Flows {
	if kind == model.SurfaceFacade {
		return &r.Facades
	}
	return &r.Roof
}

// quantitiesTree builds the result subtree of one surface kind (or the
// total) from the yearly flows.
func quantitiesTree(history []YearRecord, pick func(YearRecord) Flows, panels int) *results.Tree {
	n := len(history)
	var (
		energy     = make([]float64, n)
		waste      = make([]float64, n)
		peMan      = make([]float64, n)
		peEoL      = make([]float64, n)
		peTotal    = make([]float64, n)
		co2Man     = make([]float64, n)
		co2EoL     = make([]float64, n)
		co2Total   = make([]float64, n)
		revenue    = make([]float64, n)
		cost       = make([]float64, n)
		netBenefit = make([]float64, n)
	)
	for i, rec := range history {
		f := pick(rec)
		energy[i] = f.EnergyHarvested
		waste[i] = f.Waste
		peMan[i] = f.Manufacturing.PrimaryEnergy
		peEoL[i] = f.EndOfLife.PrimaryEnergy
		peTotal[i] = peMan[i] + peEoL[i]
		co2Man[i] = f.Manufacturing.Carbon
		co2EoL[i] = f.EndOfLife.Carbon
		co2Total[i] = co2Man[i] + co2EoL[i]
		revenue[i] = f.Revenue
		cost[i] = f.Cost()
		netBenefit[i] = revenue[i] - cost[i]
	}

	return results.NewBranch().
		Set(results.KeyEnergyHarvested, results.NewSeries(energy)).
		Set(results.KeyDMFAWaste, results.NewSeries(waste)).
		Set(results.KeyPrimaryEnergy, results.NewBranch().
			Set(results.KeyManufacturing, results.NewSeries(peMan)).
			Set(results.KeyEndOfLife, results.NewSeries(peEoL)).
			Set(results.KeyTotal, results.NewSeries(peTotal))).
		Set(results.KeyCarbon, results.NewBranch().
			Set(results.KeyManufacturing, results.NewSeries(co2Man)).
			Set(results.KeyEndOfLife, results.NewSeries(co2EoL)).
			Set(results.KeyTotal, results.NewSeries(co2Total))).
		Set(results.KeyEconomic, results.NewBranch().
			Set(results.KeyRevenue, results.NewSeries(revenue)).
			Set(results.KeyCost, results.NewSeries(cost)).
			Set(results.KeyNetBenefit, results.NewSeries(netBenefit))).
		Set(results.KeyPanelCount, results.NewScalar(float64(panels)))
}
