package whisker

import (
	"fmt"
	"math"
	"sort"
)

const actionPrecision = 1e4

func roundAction(v float64) float64 {
	return math.Round(v*actionPrecision) / actionPrecision
}

// Action is the sending-rate rule applied while a whisker is the matching leaf.
type Action struct {
	WindowIncrement int     // added to the scaled window on every ack
	WindowMultiple  float64 // multiplies the previous window on every ack
	Intersend       float64 // minimum spacing between two sends (ms)
}

func (a Action) rounded() Action {
	a.WindowMultiple = roundAction(a.WindowMultiple)
	a.Intersend = roundAction(a.Intersend)
	return a
}

// Window applies the action to the previous congestion window, clamped to [0, maxWindow].
func (a Action) Window(previous int, maxWindow int) int {
	w := int(float64(previous)*a.WindowMultiple) + a.WindowIncrement
	if w < 0 {
		return 0
	}
	if w > maxWindow {
		return maxWindow
	}
	return w
}

func (a Action) String() string {
	return fmt.Sprintf("{incr=%d, mult=%.4f, intersend=%.4f}", a.WindowIncrement, a.WindowMultiple, a.Intersend)
}

// Key is the value identity of a whisker. Two whiskers with equal keys are
// interchangeable regardless of generation, usage or position in a tree.
type Key struct {
	Domain MemoryRange
	Action Action
}

// Whisker is a single rule of the policy: a region of memory space and the
// action applied there.
type Whisker struct {
	Domain     MemoryRange
	Action     Action
	Generation uint
	Count      uint64

	samples *sampleHistogram
}

// NewWhisker builds a whisker with a rounded action and no usage.
func NewWhisker(domain MemoryRange, action Action, generation uint) Whisker {
	return Whisker{Domain: domain, Action: action.rounded(), Generation: generation}
}

// Key returns the value identity of w.
func (w Whisker) Key() Key {
	return Key{Domain: w.Domain, Action: w.Action}
}

// Equal reports value equality (domain and action only).
func (w Whisker) Equal(o Whisker) bool {
	return w.Key() == o.Key()
}

// Promote raises the generation to at least g.
func (w *Whisker) Promote(g uint) {
	if w.Generation < g {
		w.Generation = g
	}
}

// Demote sets the generation to exactly g.
func (w *Whisker) Demote(g uint) {
	w.Generation = g
}

// use records one match of memory m.
func (w *Whisker) use(m Memory, trace bool, s *Settings) {
	w.Count++
	if !trace {
		return
	}
	if w.samples == nil {
		w.samples = newSampleHistogram()
	}
	w.samples.add(m, s)
}

// withAction returns a copy of w for the next generation carrying action a.
func (w Whisker) withAction(a Action) Whisker {
	return Whisker{
		Domain:     w.Domain,
		Action:     a.rounded(),
		Generation: w.Generation + 1,
	}
}

// NextGeneration returns every candidate reachable by perturbing the window
// increment and window multiple by one step of their ladders. The unchanged
// action comes first.
func (w Whisker) NextGeneration(s Settings) []Whisker {
	var ret []Whisker
	for _, incr := range s.WindowIncrement.Alternatives(w.Action.WindowIncrement) {
		for _, mult := range s.WindowMultiple.Alternatives(w.Action.WindowMultiple) {
			ret = append(ret, w.withAction(Action{
				WindowIncrement: incr,
				WindowMultiple:  mult,
				Intersend:       w.Action.Intersend,
			}))
		}
	}
	return ret
}

// NextGenerationIntersend returns the candidates that only perturb the
// intersend time. w is normally a window-phase candidate that already belongs
// to the next generation, so the candidates keep w's generation.
func (w Whisker) NextGenerationIntersend(s Settings) []Whisker {
	var ret []Whisker
	for _, is := range s.Intersend.Alternatives(w.Action.Intersend) {
		a := w.Action
		a.Intersend = is
		c := w.withAction(a)
		c.Generation = w.Generation
		ret = append(ret, c)
	}
	return ret
}

func (w Whisker) String() string {
	return fmt.Sprintf("[%s => %s gen=%d count=%d]", w.Domain, w.Action, w.Generation, w.Count)
}

// sampleHistogram keeps quantized per-axis counts of matched memory points.
type sampleHistogram struct {
	bins  [NumAxes]map[int64]uint64
	total uint64
}

func newSampleHistogram() *sampleHistogram {
	h := &sampleHistogram{}
	for i := range h.bins {
		h.bins[i] = make(map[int64]uint64)
	}
	return h
}

func (h *sampleHistogram) add(m Memory, s *Settings) {
	for i := 0; i < NumAxes; i++ {
		h.bins[i][s.Axes[i].bin(m[i])]++
	}
	h.total++
}

// bestCut returns the bin boundary on axis strictly inside (lower, upper)
// that splits the recorded samples most evenly, along with the number of
// samples below it. ok is false when no boundary separates any samples.
func (h *sampleHistogram) bestCut(axis Axis, lower, upper float64, s *Settings) (point float64, below uint64, ok bool) {
	if h == nil || h.total == 0 {
		return 0, 0, false
	}
	keys := make([]int64, 0, len(h.bins[axis]))
	for k := range h.bins[axis] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var seen, bestMin uint64
	for _, k := range keys {
		cut := float64(k) * s.Axes[axis].Quantum
		if seen > 0 && cut > lower && cut < upper {
			m := min(seen, h.total-seen)
			if m > bestMin {
				point, below, bestMin, ok = cut, seen, m, true
			}
		}
		seen += h.bins[axis][k]
	}
	return point, below, ok
}

// below counts samples on axis whose bin lies strictly under point.
func (h *sampleHistogram) below(axis Axis, point float64, s *Settings) uint64 {
	if h == nil {
		return 0
	}
	cut := s.Axes[axis].bin(point)
	var n uint64
	for k, c := range h.bins[axis] {
		if k < cut {
			n += c
		}
	}
	return n
}

func (h *sampleHistogram) count() uint64 {
	if h == nil {
		return 0
	}
	return h.total
}
