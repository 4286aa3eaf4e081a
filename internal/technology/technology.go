package technology

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"bipv_simulator/internal/model"
)

type DegradationModel string

const (
	// DegradationFirstYearDrop applies a one-off drop in the first year, then a
	// constant relative decay every following year.
	DegradationFirstYearDrop DegradationModel = "first_year_drop"
	// DegradationLinear loses a fixed share of the initial efficiency every year.
	DegradationLinear DegradationModel = "linear"
)

// Degradation describes how panel efficiency decays with age.
type Degradation struct {
	Model             DegradationModel `json:"model"`
	FirstYearDrop     float64          `json:"first_year_drop"`    // fraction, first_year_drop only
	AnnualDegradation float64          `json:"annual_degradation"` // fraction per year
}

// Efficiency returns the efficiency of a panel of the given age. The result is
// non-increasing in age and clamped to [0, initial].
func (d Degradation) Efficiency(initial float64, age int) float64 {
	if age <= 0 {
		return initial
	}

	var eff float64
	switch d.Model {
	case DegradationLinear:
		eff = initial * (1 - d.AnnualDegradation*float64(age))
	default:
		eff = initial * (1 - d.FirstYearDrop) * math.Pow(1-d.AnnualDegradation, float64(age-1))
	}

	if eff < 0 {
		return 0
	}
	if eff > initial {
		return initial
	}
	return eff
}

func (d Degradation) validate() error {
	switch d.Model {
	case DegradationFirstYearDrop, DegradationLinear:
	default:
		return model.InvalidParameter("unknown degradation model %q", d.Model)
	}
	if d.FirstYearDrop < 0 || d.FirstYearDrop > 1 {
		return model.InvalidParameter("first_year_drop must be in [0, 1], got %v", d.FirstYearDrop)
	}
	if d.AnnualDegradation < 0 || d.AnnualDegradation > 1 {
		return model.InvalidParameter("annual_degradation must be in [0, 1], got %v", d.AnnualDegradation)
	}
	return nil
}

// Weibull holds the failure-time distribution of a technology. Scale is the
// characteristic lifetime in years, Shape controls the dispersion.
type Weibull struct {
	Shape float64 `json:"shape"`
	Scale float64 `json:"scale"`
}

func (w Weibull) dist() distuv.Weibull {
	return distuv.Weibull{K: w.Shape, Lambda: w.Scale}
}

// CDF returns the probability that a panel has failed by the given age in years.
func (w Weibull) CDF(years float64) float64 {
	return w.dist().CDF(years)
}

// Technology is an immutable description of one PV product. Panels hold a
// pointer to a shared Technology and never modify it.
type Technology struct {
	ID                string      `json:"id"`
	InitialEfficiency float64     `json:"initial_efficiency"`
	Degradation       Degradation `json:"degradation"`
	Weibull           Weibull     `json:"weibull"`

	// Per m² of panel area.
	Manufacturing model.Footprint `json:"manufacturing"`
	EndOfLife     model.Footprint `json:"end_of_life"`
	WeightPerArea float64         `json:"weight_per_area"` // kg/m²
}

// Validate checks the distribution and efficiency parameters.
func (t *Technology) Validate() error {
	if t.ID == "" {
		return model.InvalidParameter("technology id cannot be empty")
	}
	if !(t.Weibull.Shape > 0) {
		return model.InvalidParameter("technology %s: weibull shape must be positive, got %v", t.ID, t.Weibull.Shape)
	}
	if !(t.Weibull.Scale > 0) {
		return model.InvalidParameter("technology %s: weibull scale must be positive, got %v", t.ID, t.Weibull.Scale)
	}
	if !(t.InitialEfficiency > 0) || t.InitialEfficiency > 1 {
		return model.InvalidParameter("technology %s: initial efficiency must be in (0, 1], got %v", t.ID, t.InitialEfficiency)
	}
	if t.WeightPerArea < 0 {
		return model.InvalidParameter("technology %s: weight per area cannot be negative", t.ID)
	}
	if err := t.Degradation.validate(); err != nil {
		return err
	}
	return nil
}

// SampleLifeExpectancy draws a failure time from the Weibull quantile function
// scale * (-ln(1-U))^(1/shape) and rounds it up to whole years, never below 1.
func (t *Technology) SampleLifeExpectancy(rng *rand.Rand) int {
	u := rng.Float64()
	years := int(math.Ceil(t.Weibull.dist().Quantile(u)))
	if years < 1 {
		return 1
	}
	return years
}

// EfficiencyAt returns the conversion efficiency of a panel of this
// technology at the given age.
func (t *Technology) EfficiencyAt(age int) float64 {
	return t.Degradation.Efficiency(t.InitialEfficiency, age)
}
