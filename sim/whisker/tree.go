package whisker

import (
	"fmt"
	"sort"
	"strings"
)

// WhiskerTree is the policy: a hierarchy of memory-space regions whose leaves
// are whiskers. Siblings always partition their parent's domain, so every
// memory point matches exactly one leaf.
//
// Thread-safety: NOT thread-safe. Concurrent evaluations each work on a Clone.
type WhiskerTree struct {
	domain   MemoryRange
	children []*WhiskerTree
	leaf     *Whisker

	settings    *Settings
	usedWindows []uint64
}

// NewWhiskerTree returns a single-leaf tree covering the whole memory space with
// the default action.
func NewWhiskerTree(s Settings) *WhiskerTree {
	w := NewWhisker(FullRange(), s.DefaultAction(), 0)
	return newLeaf(w, &s)
}

func newLeaf(w Whisker, s *Settings) *WhiskerTree {
	return &WhiskerTree{domain: w.Domain, leaf: &w, settings: s}
}

// Settings returns the settings the tree was built with.
func (t *WhiskerTree) Settings() Settings {
	return *t.settings
}

// Domain returns the region covered by the tree.
func (t *WhiskerTree) Domain() MemoryRange {
	return t.domain
}

// IsLeaf reports whether the node is a single whisker.
func (t *WhiskerTree) IsLeaf() bool {
	return t.leaf != nil
}

// NumChildren returns the number of direct children (0 for a leaf).
func (t *WhiskerTree) NumChildren() int {
	return len(t.children)
}

// Clone returns a deep copy, including usage counters and the window histogram.
func (t *WhiskerTree) Clone() *WhiskerTree {
	c := &WhiskerTree{domain: t.domain, settings: t.settings}
	if t.leaf != nil {
		w := *t.leaf
		w.samples = nil
		c.leaf = &w
	}
	if len(t.children) > 0 {
		c.children = make([]*WhiskerTree, len(t.children))
		for i, child := range t.children {
			c.children[i] = child.Clone()
		}
	}
	if t.usedWindows != nil {
		c.usedWindows = append([]uint64(nil), t.usedWindows...)
	}
	return c
}

// Assign overwrites t with a deep copy of o.
func (t *WhiskerTree) Assign(o *WhiskerTree) {
	*t = *o.Clone()
}

// findLeaf returns the leaf node whose domain equals d, or nil.
func (t *WhiskerTree) findLeaf(d MemoryRange) *WhiskerTree {
	if t.leaf != nil {
		if t.domain == d {
			return t
		}
		return nil
	}
	for _, c := range t.children {
		if d.Within(c.domain) {
			if found := c.findLeaf(d); found != nil {
				return found
			}
		}
	}
	return nil
}

// Replace substitutes w for the leaf with the same domain. It returns false if
// no such leaf exists.
func (t *WhiskerTree) Replace(w Whisker) bool {
	node := t.findLeaf(w.Domain)
	if node == nil {
		return false
	}
	node.leaf = &w
	return true
}

// ReplaceSubtree substitutes sub for the leaf whose domain equals old's.
// sub must cover exactly old's domain.
func (t *WhiskerTree) ReplaceSubtree(old Whisker, sub *WhiskerTree) bool {
	if sub.domain != old.Domain {
		return false
	}
	node := t.findLeaf(old.Domain)
	if node == nil {
		return false
	}
	clone := sub.Clone()
	node.leaf = clone.leaf
	node.children = clone.children
	node.reparent(t.settings)
	return true
}

func (t *WhiskerTree) reparent(s *Settings) {
	t.settings = s
	for _, c := range t.children {
		c.reparent(s)
	}
}

// Lookup returns the leaf whisker matching m, or nil if m is outside the tree.
func (t *WhiskerTree) Lookup(m Memory) *Whisker {
	if !t.domain.Contains(m) {
		return nil
	}
	node := t
	for node.leaf == nil {
		var next *WhiskerTree
		for _, c := range node.children {
			if c.domain.Contains(m) {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node.leaf
}

// Use returns the whisker matching m and records the match on it. When trace
// is set, m is also recorded for later bisection.
func (t *WhiskerTree) Use(m Memory, trace bool) *Whisker {
	w := t.Lookup(m)
	if w == nil {
		panic(fmt.Sprintf("WhiskerTree.Use: no whisker matches %s", m))
	}
	w.use(m, trace, t.settings)
	return w
}

// RecordWindow adds one observation of congestion window size to the
// histogram. Sizes above the configured maximum land in the last bucket.
func (t *WhiskerTree) RecordWindow(window, maxWindow int) {
	if t.usedWindows == nil {
		t.usedWindows = make([]uint64, maxWindow+1)
	}
	if window < 0 {
		window = 0
	}
	if window >= len(t.usedWindows) {
		window = len(t.usedWindows) - 1
	}
	t.usedWindows[window]++
}

// UsedWindows returns a copy of the window histogram.
func (t *WhiskerTree) UsedWindows() []uint64 {
	return append([]uint64(nil), t.usedWindows...)
}

// Walk calls fn on every leaf in pre-order. Returning false stops the walk.
func (t *WhiskerTree) Walk(fn func(w *Whisker) bool) bool {
	if t.leaf != nil {
		return fn(t.leaf)
	}
	for _, c := range t.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Leaves returns copies of all whiskers in pre-order.
func (t *WhiskerTree) Leaves() []Whisker {
	var ret []Whisker
	t.Walk(func(w *Whisker) bool {
		ret = append(ret, *w)
		return true
	})
	return ret
}

// NumLeaves returns the number of whiskers in the tree.
func (t *WhiskerTree) NumLeaves() int {
	n := 0
	t.Walk(func(*Whisker) bool { n++; return true })
	return n
}

// Promote raises every whisker's generation to at least g.
func (t *WhiskerTree) Promote(g uint) {
	t.Walk(func(w *Whisker) bool { w.Promote(g); return true })
}

// ResetCounts zeroes every usage counter and the window histogram.
func (t *WhiskerTree) ResetCounts() {
	t.Walk(func(w *Whisker) bool {
		w.Count = 0
		w.samples = nil
		return true
	})
	t.usedWindows = nil
}

// ResetGeneration sets every whisker's generation to zero.
func (t *WhiskerTree) ResetGeneration() {
	t.Walk(func(w *Whisker) bool { w.Generation = 0; return true })
}

// MostUsed returns the used whisker of exactly generation g with the highest
// count. Ties go to the first whisker in pre-order.
func (t *WhiskerTree) MostUsed(g uint) (Whisker, bool) {
	var best *Whisker
	t.Walk(func(w *Whisker) bool {
		if w.Generation == g && w.Count > 0 && (best == nil || w.Count > best.Count) {
			best = w
		}
		return true
	})
	if best == nil {
		return Whisker{}, false
	}
	return *best, true
}

// Validate checks the partition invariant at every level of the tree.
func (t *WhiskerTree) Validate() error {
	if t.leaf != nil {
		if t.leaf.Domain != t.domain {
			return fmt.Errorf("leaf domain %s differs from node domain %s", t.leaf.Domain, t.domain)
		}
		return nil
	}
	if len(t.children) == 0 {
		return fmt.Errorf("interior node %s has no children", t.domain)
	}
	for i, c := range t.children {
		if c.domain.Empty() {
			return fmt.Errorf("child %s of %s is empty", c.domain, t.domain)
		}
		if !c.domain.Within(t.domain) {
			return fmt.Errorf("child %s escapes parent %s", c.domain, t.domain)
		}
		for _, o := range t.children[i+1:] {
			if c.domain.Overlaps(o.domain) {
				return fmt.Errorf("children %s and %s overlap", c.domain, o.domain)
			}
		}
	}
	if err := t.checkCoverage(); err != nil {
		return err
	}
	for _, c := range t.children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// checkCoverage cuts the parent domain into the grid formed by all child
// boundaries and checks that every grid cell belongs to some child.
func (t *WhiskerTree) checkCoverage() error {
	var cuts [NumAxes][]float64
	for i := 0; i < NumAxes; i++ {
		set := map[float64]bool{t.domain.Lower[i]: true}
		for _, c := range t.children {
			for _, v := range []float64{c.domain.Lower[i], c.domain.Upper[i]} {
				if v > t.domain.Lower[i] && v < t.domain.Upper[i] {
					set[v] = true
				}
			}
		}
		for v := range set {
			cuts[i] = append(cuts[i], v)
		}
		sort.Float64s(cuts[i])
	}
	var probe Memory
	var visit func(axis int) error
	visit = func(axis int) error {
		if axis == NumAxes {
			for _, c := range t.children {
				if c.domain.Contains(probe) {
					return nil
				}
			}
			return fmt.Errorf("point %s of %s is not covered by any child", probe, t.domain)
		}
		for _, v := range cuts[axis] {
			probe[axis] = v
			if err := visit(axis + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(0)
}

func (t *WhiskerTree) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *WhiskerTree) write(sb *strings.Builder) {
	if t.leaf != nil {
		sb.WriteString(t.leaf.String())
		return
	}
	sb.WriteString("{")
	for i, c := range t.children {
		if i > 0 {
			sb.WriteString(" ")
		}
		c.write(sb)
	}
	sb.WriteString("}")
}
