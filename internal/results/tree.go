package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bipv_simulator/internal/model"
)

// Keys used in building and canopy result trees.
const (
	KeyRoof    = "roof"
	KeyFacades = "facades"
	KeyTotal   = "total"

	KeyEnergyHarvested = "energy_harvested"
	KeyDMFAWaste       = "dmfa_waste"
	KeyPrimaryEnergy   = "lca_primary_energy"
	KeyCarbon          = "lca_carbon_footprint"
	KeyEconomic        = "economic"
	KeyPanelCount      = "panel_count"

	KeyManufacturing = "manufacturing"
	KeyEndOfLife     = "end_of_life"
	KeyRevenue       = "revenue"
	KeyCost          = "cost"
	KeyNetBenefit    = "net_benefit"
)

// Series is a yearly time series with its running sum. Index 0 is the start
// year of the tree holding it.
type Series struct {
	Yearly     []float64 `json:"yearly"`
	Cumulative []float64 `json:"cumulative"`
	Total      float64   `json:"total"`
}

// Tree is a nested result record. A node is either a branch with named
// children, a Series leaf or a scalar leaf.
type Tree struct {
	children map[string]*Tree
	series   *Series
	scalar   *float64
}

// NewBranch returns an empty branch node.
func NewBranch() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// NewSeries returns a series leaf with cumulative and total computed from yearly.
func NewSeries(yearly []float64) *Tree {
	y := make([]float64, len(yearly))
	copy(y, yearly)
	s := &Series{Yearly: y}
	s.recompute()
	return &Tree{series: s}
}

// NewScalar returns a scalar leaf.
func NewScalar(v float64) *Tree {
	return &Tree{scalar: &v}
}

// Set adds or replaces a child of a branch and returns the branch.
func (t *Tree) Set(key string, child *Tree) *Tree {
	if t.children == nil {
		t.children = make(map[string]*Tree)
	}
	t.children[key] = child
	return t
}

func (t *Tree) IsBranch() bool { return t.series == nil && t.scalar == nil }

// Series returns the series of a series leaf.
func (t *Tree) Series() (*Series, bool) {
	return t.series, t.series != nil
}

// Scalar returns the value of a scalar leaf.
func (t *Tree) Scalar() (float64, bool) {
	if t.scalar == nil {
		return 0, false
	}
	return *t.scalar, true
}

// Keys returns the sorted child keys of a branch.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup follows path from t.
func (t *Tree) Lookup(path ...string) (*Tree, bool) {
	node := t
	for _, key := range path {
		child, ok := node.children[key]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

// SeriesAt returns the series leaf at path.
func (t *Tree) SeriesAt(path ...string) (*Series, error) {
	node, ok := t.Lookup(path...)
	if !ok {
		return nil, fmt.Errorf("no node at %q: %w", strings.Join(path, "."), model.ErrNotFound)
	}
	s, ok := node.Series()
	if !ok {
		return nil, fmt.Errorf("node at %q is not a series: %w", strings.Join(path, "."), model.ErrSchemaMismatch)
	}
	return s, nil
}

// Span returns the length of the longest yearly series in the tree.
func (t *Tree) Span() int {
	if t.series != nil {
		return len(t.series.Yearly)
	}
	n := 0
	for _, c := range t.children {
		if l := c.Span(); l > n {
			n = l
		}
	}
	return n
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	switch {
	case t.series != nil:
		s := *t.series
		if s.Yearly == nil {
			s.Yearly = []float64{}
		}
		if s.Cumulative == nil {
			s.Cumulative = []float64{}
		}
		return json.Marshal(s)
	case t.scalar != nil:
		return json.Marshal(*t.scalar)
	default:
		children := t.children
		if children == nil {
			children = map[string]*Tree{}
		}
		return json.Marshal(children)
	}
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("result leaf must be an object or a number: %w", err)
		}
		*t = Tree{scalar: &v}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw["yearly"]; ok {
		var s Series
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Tree{series: &s}
		return nil
	}

	children := make(map[string]*Tree, len(raw))
	for k, v := range raw {
		child := &Tree{}
		if err := child.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		children[k] = child
	}
	*t = Tree{children: children}
	return nil
}

// Result is a result tree together with the calendar year of its index 0.
type Result struct {
	StartYear int   `json:"start_year"`
	Tree      *Tree `json:"tree"`
}

// Years returns the calendar years covered by the result.
func (r Result) Years() model.YearRange {
	return model.YearRange{Start: r.StartYear, End: r.StartYear + r.Tree.Span() - 1}
}
