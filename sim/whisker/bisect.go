package whisker

import "math"

// splitCandidate is one way of cutting a whisker's domain in two.
type splitCandidate struct {
	axis    Axis
	point   float64
	balance float64 // share of samples on the smaller side
	width   float64 // extent of the axis in quanta
}

func (c splitCandidate) better(o splitCandidate) bool {
	if c.balance != o.balance {
		return c.balance > o.balance
	}
	if c.width != o.width {
		return c.width > o.width
	}
	return c.axis < o.axis
}

// Bisect splits w's domain along the single axis that gives the most balanced
// non-degenerate cut. Split points are placed at the median of the memory
// points recorded while tracing, or at the snapped midpoint of the axis when
// nothing was recorded. Both children keep w's action and generation.
//
// When no axis can be cut, the returned tree has exactly one child equal to w;
// callers must check NumChildren() == 1.
func (t *WhiskerTree) Bisect(w Whisker) *WhiskerTree {
	s := t.settings
	var best *splitCandidate
	for i := 0; i < NumAxes; i++ {
		c, ok := candidateFor(w, Axis(i), s)
		if !ok {
			continue
		}
		if best == nil || c.better(*best) {
			best = &c
		}
	}

	sub := &WhiskerTree{domain: w.Domain, settings: s}
	if best == nil {
		sub.children = []*WhiskerTree{newLeaf(NewWhisker(w.Domain, w.Action, w.Generation), s)}
		return sub
	}
	lo, hi := w.Domain.split(best.axis, best.point)
	sub.children = []*WhiskerTree{
		newLeaf(Whisker{Domain: lo, Action: w.Action, Generation: w.Generation}, s),
		newLeaf(Whisker{Domain: hi, Action: w.Action, Generation: w.Generation}, s),
	}
	return sub
}

func candidateFor(w Whisker, axis Axis, s *Settings) (splitCandidate, bool) {
	as := s.Axes[axis]
	if !as.Active || as.Quantum <= 0 {
		return splitCandidate{}, false
	}
	lower, upper := w.Domain.Lower[axis], w.Domain.Upper[axis]
	extent := math.Min(upper, as.Ceiling) - lower
	c := splitCandidate{axis: axis, width: math.Floor(extent / as.Quantum)}

	total := w.samples.count()
	if point, below, ok := w.samples.bestCut(axis, lower, upper, s); ok {
		c.point = point
		c.balance = float64(min(below, total-below)) / float64(total)
		return c, true
	}

	if extent <= 0 {
		return splitCandidate{}, false
	}
	c.point = as.snap(lower + extent/2)
	if !(c.point > lower && c.point < upper) {
		return splitCandidate{}, false
	}
	if total > 0 {
		below := w.samples.below(axis, c.point, s)
		c.balance = float64(min(below, total-below)) / float64(total)
	}
	return c, true
}
