package policy

import (
	"sort"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/panel"
)

type Kind string

const (
	NoReplacement                   Kind = "no_replacement"
	ReplaceFailedEveryNYears        Kind = "replace_failed_every_n_years"
	ReplaceAllEveryNYears           Kind = "replace_all_every_n_years"
	ReplaceFailedAndAgedEveryNYears Kind = "replace_failed_and_aged_every_n_years"
)

// Kinds lists every supported policy kind.
var Kinds = []Kind{
	NoReplacement,
	ReplaceFailedEveryNYears,
	ReplaceAllEveryNYears,
	ReplaceFailedAndAgedEveryNYears,
}

// Config is the replacement policy section of a scenario.
type Config struct {
	Kind           Kind `json:"kind" yaml:"kind"`
	FrequencyYears int  `json:"frequency_years,omitempty" yaml:"frequency_years,omitempty"`
	MinAgeYears    int  `json:"min_age_years,omitempty" yaml:"min_age_years,omitempty"`
}

// Policy decides which panels are reinitialized in a given year. It is a
// validated Config and holds no state of its own.
type Policy struct {
	cfg Config
}

// New validates cfg. Frequency and minimum age must be present exactly when
// the kind uses them.
func New(cfg Config) (Policy, error) {
	switch cfg.Kind {
	case NoReplacement:
		if cfg.FrequencyYears != 0 || cfg.MinAgeYears != 0 {
			return Policy{}, model.InvalidParameter("%s takes no frequency or minimum age", cfg.Kind)
		}
	case ReplaceFailedEveryNYears, ReplaceAllEveryNYears:
		if cfg.FrequencyYears <= 0 {
			return Policy{}, model.InvalidParameter("%s: frequency must be a positive number of years, got %d", cfg.Kind, cfg.FrequencyYears)
		}
		if cfg.MinAgeYears != 0 {
			return Policy{}, model.InvalidParameter("%s takes no minimum age", cfg.Kind)
		}
	case ReplaceFailedAndAgedEveryNYears:
		if cfg.FrequencyYears <= 0 {
			return Policy{}, model.InvalidParameter("%s: frequency must be a positive number of years, got %d", cfg.Kind, cfg.FrequencyYears)
		}
		if cfg.MinAgeYears <= 0 {
			return Policy{}, model.InvalidParameter("%s: minimum age must be a positive number of years, got %d", cfg.Kind, cfg.MinAgeYears)
		}
	default:
		return Policy{}, model.InvalidParameter("unknown replacement policy %q", cfg.Kind)
	}
	return Policy{cfg: cfg}, nil
}

func (p Policy) Config() Config {
	return p.cfg
}

// Triggered reports whether currentYear is a replacement year, i.e. a
// positive multiple of the frequency after startYear.
func (p Policy) Triggered(currentYear, startYear int) bool {
	if p.cfg.Kind == NoReplacement || p.cfg.FrequencyYears <= 0 {
		return false
	}
	elapsed := currentYear - startYear
	return elapsed > 0 && elapsed%p.cfg.FrequencyYears == 0
}

// SelectPanelsToReplace returns the sorted indices (positions in panels) of
// the panels to reinitialize in currentYear.
func (p Policy) SelectPanelsToReplace(panels []*panel.Panel, currentYear, startYear int) []int {
	if !p.Triggered(currentYear, startYear) {
		return nil
	}

	var selected []int
	for i, pn := range panels {
		if p.selects(pn) {
			selected = append(selected, i)
		}
	}
	sort.Ints(selected)
	return selected
}

func (p Policy) selects(pn *panel.Panel) bool {
	switch p.cfg.Kind {
	case ReplaceFailedEveryNYears:
		return !pn.IsWorking()
	case ReplaceAllEveryNYears:
		return true
	case ReplaceFailedAndAgedEveryNYears:
		age, working := pn.Age()
		return !working || age >= p.cfg.MinAgeYears
	}
	return false
}
