package whisker

import (
	"fmt"
	"math"
	"strings"
)

// NumAxes is the dimension of the memory space.
const NumAxes = 3

// Axis indexes into a Memory vector.
type Axis int

const (
	// AxisSendEWMA is the EWMA of the send-time spacing of acknowledged packets (ms).
	AxisSendEWMA Axis = iota
	// AxisRecEWMA is the EWMA of the ack inter-arrival time (ms).
	AxisRecEWMA
	// AxisRTTRatio is the last RTT divided by the minimum RTT observed by the flow.
	AxisRTTRatio
)

var axisNames = [NumAxes]string{"send_ewma", "rec_ewma", "rtt_ratio"}

func (a Axis) String() string {
	if a < 0 || int(a) >= NumAxes {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// Memory is the observed network state of one sender. It is only used as a
// lookup key into a WhiskerTree.
type Memory [NumAxes]float64

func (m Memory) String() string {
	return fmt.Sprintf("<send_ewma=%.4f, rec_ewma=%.4f, rtt_ratio=%.4f>",
		m[AxisSendEWMA], m[AxisRecEWMA], m[AxisRTTRatio])
}

// MemoryRange is an axis-aligned box [Lower, Upper) in memory space.
type MemoryRange struct {
	Lower Memory
	Upper Memory
}

// FullRange covers the whole (non-negative) memory space.
func FullRange() MemoryRange {
	var r MemoryRange
	for i := range r.Upper {
		r.Upper[i] = math.Inf(1)
	}
	return r
}

// Contains reports whether m lies inside the half-open box.
func (r MemoryRange) Contains(m Memory) bool {
	for i := 0; i < NumAxes; i++ {
		if m[i] < r.Lower[i] || m[i] >= r.Upper[i] {
			return false
		}
	}
	return true
}

// Within reports whether r is entirely inside outer.
func (r MemoryRange) Within(outer MemoryRange) bool {
	for i := 0; i < NumAxes; i++ {
		if r.Lower[i] < outer.Lower[i] || r.Upper[i] > outer.Upper[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether the two boxes share any point.
func (r MemoryRange) Overlaps(o MemoryRange) bool {
	for i := 0; i < NumAxes; i++ {
		if r.Upper[i] <= o.Lower[i] || o.Upper[i] <= r.Lower[i] {
			return false
		}
	}
	return true
}

// Empty reports whether the box has zero width along some axis.
func (r MemoryRange) Empty() bool {
	for i := 0; i < NumAxes; i++ {
		if !(r.Lower[i] < r.Upper[i]) {
			return true
		}
	}
	return false
}

// split cuts the box at point along axis.
func (r MemoryRange) split(axis Axis, point float64) (MemoryRange, MemoryRange) {
	lo, hi := r, r
	lo.Upper[axis] = point
	hi.Lower[axis] = point
	return lo, hi
}

func (r MemoryRange) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i := 0; i < NumAxes; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=[%g, %g)", Axis(i), r.Lower[i], r.Upper[i])
	}
	sb.WriteString("}")
	return sb.String()
}
