package results

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"bipv_simulator/internal/model"
)

func (s *Series) recompute() {
	s.Cumulative = make([]float64, len(s.Yearly))
	if len(s.Yearly) == 0 {
		s.Total = 0
		return
	}
	floats.CumSum(s.Cumulative, s.Yearly)
	s.Total = s.Cumulative[len(s.Cumulative)-1]
}

// ComputeCumulativeAndTotal walks the tree and recomputes cumulative and
// total for every series from its yearly values. It returns t.
func ComputeCumulativeAndTotal(t *Tree) *Tree {
	if t.series != nil {
		t.series.recompute()
		return t
	}
	for _, c := range t.children {
		ComputeCumulativeAndTotal(c)
	}
	return t
}

// BoundaryYears returns the first and last calendar year covered by any of
// the results.
func BoundaryYears(rs ...Result) (earliest, latest int, err error) {
	if len(rs) == 0 {
		return 0, 0, model.InvalidParameter("no results to align")
	}
	for i, r := range rs {
		y := r.Years()
		if i == 0 || y.Start < earliest {
			earliest = y.Start
		}
		if i == 0 || y.End > latest {
			latest = y.End
		}
	}
	return earliest, latest, nil
}

// Realign places yearly, which starts in startYear, on the zero-padded axis
// [earliest, latest].
func Realign(yearly []float64, startYear, earliest, latest int) ([]float64, error) {
	if latest < earliest-1 {
		return nil, model.InvalidParameter("latest year %d before earliest year %d", latest, earliest)
	}
	out := make([]float64, latest-earliest+1)
	if len(yearly) == 0 {
		return out, nil
	}
	offset := startYear - earliest
	if offset < 0 || startYear+len(yearly)-1 > latest {
		return nil, model.InvalidParameter("series %d-%d does not fit in %d-%d",
			startYear, startYear+len(yearly)-1, earliest, latest)
	}
	copy(out[offset:], yearly)
	return out, nil
}

// SumTrees adds two results leaf by leaf on their common year axis. Yearly
// series are realigned before being added and cumulative/total are
// recomputed from the merged yearly values. Scalars are summed. Trees with
// different keys or leaf kinds fail with ErrSchemaMismatch.
func SumTrees(a, b Result) (Result, error) {
	earliest, latest, err := BoundaryYears(a, b)
	if err != nil {
		return Result{}, err
	}
	merged, err := sumNode(a.Tree, b.Tree, a.StartYear, b.StartYear, earliest, latest, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{StartYear: earliest, Tree: merged}, nil
}

// Sum folds SumTrees over rs.
func Sum(rs ...Result) (Result, error) {
	if len(rs) == 0 {
		return Result{}, model.InvalidParameter("no results to sum")
	}
	acc := rs[0]
	if len(rs) == 1 {
		// Realign onto itself so the caller always gets a fresh tree.
		return SumTrees(acc, zeroLike(acc))
	}
	for _, r := range rs[1:] {
		var err error
		if acc, err = SumTrees(acc, r); err != nil {
			return Result{}, err
		}
	}
	return acc, nil
}

// zeroLike returns a result with the same shape as r and all values zero.
func zeroLike(r Result) Result {
	return Result{StartYear: r.StartYear, Tree: zeroNode(r.Tree)}
}

func zeroNode(t *Tree) *Tree {
	switch {
	case t.series != nil:
		return NewSeries(nil)
	case t.scalar != nil:
		return NewScalar(0)
	}
	out := NewBranch()
	for k, c := range t.children {
		out.Set(k, zeroNode(c))
	}
	return out
}

func sumNode(a, b *Tree, startA, startB, earliest, latest int, path []string) (*Tree, error) {
	where := strings.Join(path, ".")
	switch {
	case a.series != nil && b.series != nil:
		ya, err := Realign(a.series.Yearly, startA, earliest, latest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		yb, err := Realign(b.series.Yearly, startB, earliest, latest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		floats.Add(ya, yb)
		return NewSeries(ya), nil

	case a.scalar != nil && b.scalar != nil:
		return NewScalar(*a.scalar + *b.scalar), nil

	case a.IsBranch() && b.IsBranch():
		if len(a.children) != len(b.children) {
			return nil, fmt.Errorf("%s: keys %v and %v differ: %w", where, a.Keys(), b.Keys(), model.ErrSchemaMismatch)
		}
		out := NewBranch()
		for k, ca := range a.children {
			cb, ok := b.children[k]
			if !ok {
				return nil, fmt.Errorf("%s: keys %v and %v differ: %w", where, a.Keys(), b.Keys(), model.ErrSchemaMismatch)
			}
			merged, err := sumNode(ca, cb, startA, startB, earliest, latest, append(path[:len(path):len(path)], k))
			if err != nil {
				return nil, err
			}
			out.Set(k, merged)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: leaf kinds differ: %w", where, model.ErrSchemaMismatch)
}
