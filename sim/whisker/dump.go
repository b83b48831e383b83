package whisker

import "gopkg.in/yaml.v3"

// leafView is the human-readable form of one whisker.
type leafView struct {
	Lower           []float64 `yaml:"lower,flow"`
	Upper           []float64 `yaml:"upper,flow"`
	WindowIncrement int       `yaml:"window_increment"`
	WindowMultiple  float64   `yaml:"window_multiple"`
	Intersend       float64   `yaml:"intersend"`
	Generation      uint      `yaml:"generation"`
	Count           uint64    `yaml:"count"`
}

// DumpYAML renders the leaves of t in pre-order as YAML. Infinite bounds are
// written as .inf.
func DumpYAML(t *WhiskerTree) ([]byte, error) {
	var views []leafView
	t.Walk(func(w *Whisker) bool {
		views = append(views, leafView{
			Lower:           bounds(w.Domain.Lower),
			Upper:           bounds(w.Domain.Upper),
			WindowIncrement: w.Action.WindowIncrement,
			WindowMultiple:  w.Action.WindowMultiple,
			Intersend:       w.Action.Intersend,
			Generation:      w.Generation,
			Count:           w.Count,
		})
		return true
	})
	return yaml.Marshal(map[string][]leafView{"whiskers": views})
}

func bounds(m Memory) []float64 {
	return append([]float64(nil), m[:]...)
}
