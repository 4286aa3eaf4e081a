package panel

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/technology"
)

// notWorking is the age/life expectancy sentinel of a panel that is not
// producing: never initialized, or failed and not yet replaced.
const notWorking = -1

// ConversionOptions holds the system-level conversion parameters applied on
// top of the technology efficiency.
type ConversionOptions struct {
	PerformanceRatio float64 `json:"performance_ratio" yaml:"performance_ratio"` // inverter, wiring and soiling losses
}

// DefaultConversion is used when no options are configured.
var DefaultConversion = ConversionOptions{PerformanceRatio: 0.75}

// Panel is one physical panel on a building surface.
type Panel struct {
	Index int
	Area  float64 // m²

	tech           *technology.Technology
	age            int
	lifeExpectancy int
}

// New creates a panel in the not-working state.
func New(index int, area float64, tech *technology.Technology) *Panel {
	return &Panel{
		Index:          index,
		Area:           area,
		tech:           tech,
		age:            notWorking,
		lifeExpectancy: notWorking,
	}
}

// IsWorking reports whether the panel currently produces power.
func (p *Panel) IsWorking() bool {
	return p.lifeExpectancy != notWorking
}

// Age returns the years since the last initialization; ok is false when the
// panel is not working.
func (p *Panel) Age() (age int, ok bool) {
	if !p.IsWorking() {
		return 0, false
	}
	return p.age, true
}

// LifeExpectancy returns the sampled failure age; ok is false when the panel
// is not working.
func (p *Panel) LifeExpectancy() (years int, ok bool) {
	if !p.IsWorking() {
		return 0, false
	}
	return p.lifeExpectancy, true
}

func (p *Panel) Technology() *technology.Technology {
	return p.tech
}

// InitializeOrReplace installs a fresh panel in this slot. When tech is not
// nil the panel switches to that technology first. A new life expectancy is
// drawn independently of any previous one and the age is reset to 0. The
// manufacturing footprint charged for the new panel is returned.
func (p *Panel) InitializeOrReplace(rng *rand.Rand, tech *technology.Technology) model.Footprint {
	if tech != nil {
		p.tech = tech
	}
	p.lifeExpectancy = p.tech.SampleLifeExpectancy(rng)
	p.age = 0
	return p.tech.Manufacturing.Scale(p.Area)
}

// Fail puts the panel in the not-working state. Calling it on a failed panel
// is a no-op.
func (p *Panel) Fail() {
	p.age = notWorking
	p.lifeExpectancy = notWorking
}

// Reset puts the panel back in its never-installed state with the given
// technology. A nil tech keeps the current one.
func (p *Panel) Reset(tech *technology.Technology) {
	if tech != nil {
		p.tech = tech
	}
	p.Fail()
}

// AdvanceOneYear ages a working panel by one year and fails it when it
// reaches its life expectancy. A failed panel stays failed until it is
// explicitly replaced.
func (p *Panel) AdvanceOneYear() {
	if !p.IsWorking() {
		return
	}
	p.age++
	if p.age == p.lifeExpectancy {
		p.Fail()
	}
}

// Decommissioning returns the end-of-life footprint and the waste mass (kg)
// of removing this panel from its surface.
func (p *Panel) Decommissioning() (model.Footprint, float64) {
	return p.tech.EndOfLife.Scale(p.Area), p.tech.WeightPerArea * p.Area
}

// Efficiency returns the current conversion efficiency, 0 when not working.
func (p *Panel) Efficiency() float64 {
	if !p.IsWorking() {
		return 0
	}
	return p.tech.EfficiencyAt(p.age)
}

// PowerSeries converts an irradiance series (Wh/m² per time step) into the
// energy produced by the panel at each step (Wh). The output has the same
// length as the input and depends only on the current panel state.
func (p *Panel) PowerSeries(irradiance []float64, opts ConversionOptions) []float64 {
	out := make([]float64, len(irradiance))
	if !p.IsWorking() {
		return out
	}
	k := p.Efficiency() * p.Area * opts.PerformanceRatio
	for i, g := range irradiance {
		if g > 0 {
			out[i] = g * k
		}
	}
	return out
}

// YearlyEnergy integrates PowerSeries over the year and returns kWh.
func (p *Panel) YearlyEnergy(irradiance []float64, opts ConversionOptions) float64 {
	if !p.IsWorking() {
		return 0
	}
	return floats.Sum(p.PowerSeries(irradiance, opts)) / 1000
}
