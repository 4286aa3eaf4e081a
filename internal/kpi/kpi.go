package kpi

import (
	"encoding/json"
	"math"

	"bipv_simulator/internal/results"
)

// Indicators are the scalar KPIs of one aggregated result tree. Ratios with a
// zero denominator are +Inf (or NaN for 0/0); paybacks that never happen
// within the horizon are nil.
type Indicators struct {
	EnergyHarvested       float64 // kWh
	EmbodiedPrimaryEnergy float64 // kWh
	EmbodiedCarbon        float64 // kgCO2eq
	Revenue               float64
	Cost                  float64

	EROI                 float64
	EnergyPaybackYears   *int
	EconomicPaybackYears *int
	GHGIntensity         float64 // kgCO2eq/kWh
	NetEconomicBenefit   float64
}

// Compute derives the indicators from a building or canopy tree. When the
// tree has a "total" branch (roof/facades/total layout) that branch is used.
func Compute(tree *results.Tree) (Indicators, error) {
	root := tree
	if total, ok := tree.Lookup(results.KeyTotal); ok && total.IsBranch() {
		root = total
	}

	energy, err := root.SeriesAt(results.KeyEnergyHarvested)
	if err != nil {
		return Indicators{}, err
	}
	primary, err := root.SeriesAt(results.KeyPrimaryEnergy, results.KeyTotal)
	if err != nil {
		return Indicators{}, err
	}
	carbon, err := root.SeriesAt(results.KeyCarbon, results.KeyTotal)
	if err != nil {
		return Indicators{}, err
	}
	revenue, err := root.SeriesAt(results.KeyEconomic, results.KeyRevenue)
	if err != nil {
		return Indicators{}, err
	}
	cost, err := root.SeriesAt(results.KeyEconomic, results.KeyCost)
	if err != nil {
		return Indicators{}, err
	}

	return Indicators{
		EnergyHarvested:       energy.Total,
		EmbodiedPrimaryEnergy: primary.Total,
		EmbodiedCarbon:        carbon.Total,
		Revenue:               revenue.Total,
		Cost:                  cost.Total,

		EROI:                 ratio(energy.Total, primary.Total),
		EnergyPaybackYears:   payback(energy.Cumulative, primary.Cumulative),
		EconomicPaybackYears: payback(revenue.Cumulative, cost.Cumulative),
		GHGIntensity:         ratio(carbon.Total, energy.Total),
		NetEconomicBenefit:   revenue.Total - cost.Total,
	}, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return math.NaN()
		}
		return math.Copysign(math.Inf(1), num)
	}
	return num / den
}

// payback returns the first year index at which gain has caught up with
// spent, or nil if that never happens.
func payback(gain, spent []float64) *int {
	n := min(len(gain), len(spent))
	for i := 0; i < n; i++ {
		if gain[i] > 0 && gain[i] >= spent[i] {
			year := i
			return &year
		}
	}
	return nil
}

type indicatorsJSON struct {
	EnergyHarvested       *float64 `json:"energy_harvested"`
	EmbodiedPrimaryEnergy *float64 `json:"embodied_primary_energy"`
	EmbodiedCarbon        *float64 `json:"embodied_carbon"`
	Revenue               *float64 `json:"revenue"`
	Cost                  *float64 `json:"cost"`
	EROI                  *float64 `json:"eroi"`
	EnergyPaybackYears    *int     `json:"energy_payback_years"`
	EconomicPaybackYears  *int     `json:"economic_payback_years"`
	GHGIntensity          *float64 `json:"ghg_intensity"`
	NetEconomicBenefit    *float64 `json:"net_economic_benefit"`
}

// finite returns nil for Inf and NaN, which JSON cannot represent.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (ind Indicators) MarshalJSON() ([]byte, error) {
	return json.Marshal(indicatorsJSON{
		EnergyHarvested:       finite(ind.EnergyHarvested),
		EmbodiedPrimaryEnergy: finite(ind.EmbodiedPrimaryEnergy),
		EmbodiedCarbon:        finite(ind.EmbodiedCarbon),
		Revenue:               finite(ind.Revenue),
		Cost:                  finite(ind.Cost),
		EROI:                  finite(ind.EROI),
		EnergyPaybackYears:    ind.EnergyPaybackYears,
		EconomicPaybackYears:  ind.EconomicPaybackYears,
		GHGIntensity:          finite(ind.GHGIntensity),
		NetEconomicBenefit:    finite(ind.NetEconomicBenefit),
	})
}

func (ind *Indicators) UnmarshalJSON(data []byte) error {
	var raw indicatorsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	orInf := func(v *float64) float64 {
		if v == nil {
			return math.Inf(1)
		}
		return *v
	}
	orZero := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	}
	*ind = Indicators{
		EnergyHarvested:       orZero(raw.EnergyHarvested),
		EmbodiedPrimaryEnergy: orZero(raw.EmbodiedPrimaryEnergy),
		EmbodiedCarbon:        orZero(raw.EmbodiedCarbon),
		Revenue:               orZero(raw.Revenue),
		Cost:                  orZero(raw.Cost),
		EROI:                  orInf(raw.EROI),
		EnergyPaybackYears:    raw.EnergyPaybackYears,
		EconomicPaybackYears:  raw.EconomicPaybackYears,
		GHGIntensity:          orInf(raw.GHGIntensity),
		NetEconomicBenefit:    orZero(raw.NetEconomicBenefit),
	}
	return nil
}
