package whisker

import "math"

// Numeric is the set of types an action parameter can take.
type Numeric interface {
	int | float64
}

// OptimizationSetting describes the discretized domain of one action parameter
// and the ladder of step sizes the search explores around a value.
type OptimizationSetting[T Numeric] struct {
	Min        T // smallest legal value
	Max        T // largest legal value
	MinChange  T // first (smallest) step
	MaxChange  T // largest step explored
	Multiplier T // step growth factor; must be > 1
	Default    T // value used by a fresh root whisker
}

// Alternatives returns value itself followed by every value reachable with one
// step from the ladder, in ascending step order (up before down).
func (o OptimizationSetting[T]) Alternatives(value T) []T {
	ret := []T{value}
	if o.MinChange <= 0 || o.Multiplier <= 1 {
		return ret
	}
	for step := o.MinChange; step <= o.MaxChange; step *= o.Multiplier {
		if up := value + step; up <= o.Max {
			ret = append(ret, up)
		}
		if down := value - step; down >= o.Min {
			ret = append(ret, down)
		}
	}
	return ret
}

// AxisSetting controls how an axis of the memory space can be partitioned.
type AxisSetting struct {
	Quantum float64 // split points are multiples of Quantum
	Ceiling float64 // values at or above Ceiling share one histogram bin
	Active  bool    // inactive axes are never bisected
}

// bin maps a memory value to its quantized histogram bin.
func (a AxisSetting) bin(v float64) int64 {
	if v >= a.Ceiling {
		v = a.Ceiling
	}
	if v < 0 {
		v = 0
	}
	return int64(math.Floor(v / a.Quantum))
}

// snap rounds v down to a multiple of Quantum.
func (a AxisSetting) snap(v float64) float64 {
	return math.Floor(v/a.Quantum) * a.Quantum
}

// Settings groups the tunables that the policy representation depends on.
type Settings struct {
	Axes            [NumAxes]AxisSetting
	WindowIncrement OptimizationSetting[int]
	WindowMultiple  OptimizationSetting[float64]
	Intersend       OptimizationSetting[float64]
}

// DefaultSettings returns the settings used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		Axes: [NumAxes]AxisSetting{
			AxisSendEWMA: {Quantum: 0.0625, Ceiling: 16384, Active: true},
			AxisRecEWMA:  {Quantum: 0.0625, Ceiling: 16384, Active: true},
			AxisRTTRatio: {Quantum: 0.0625, Ceiling: 64, Active: true},
		},
		WindowIncrement: OptimizationSetting[int]{Min: 0, Max: 256, MinChange: 1, MaxChange: 32, Multiplier: 4, Default: 1},
		WindowMultiple:  OptimizationSetting[float64]{Min: 0, Max: 1, MinChange: 0.01, MaxChange: 0.5, Multiplier: 4, Default: 1},
		Intersend:       OptimizationSetting[float64]{Min: 0.25, Max: 3, MinChange: 0.05, MaxChange: 1, Multiplier: 4, Default: 3},
	}
}

// DefaultAction is the action carried by the root whisker of a fresh tree.
func (s Settings) DefaultAction() Action {
	return Action{
		WindowIncrement: s.WindowIncrement.Default,
		WindowMultiple:  s.WindowMultiple.Default,
		Intersend:       s.Intersend.Default,
	}.rounded()
}
