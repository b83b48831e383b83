package sim

import "fmt"

// NetConfig describes one network scenario: a single bottleneck link shared by
// NumSenders on/off senders. It is a comparable value type and can be used as a
// map key.
type NetConfig struct {
	LinkPPT         float64 `yaml:"link_ppt" validate:"gt=0"`           // link rate, packets per ms
	Delay           float64 `yaml:"delay" validate:"gt=0"`              // base round-trip time, ms
	NumSenders      int     `yaml:"num_senders" validate:"gte=1"`       // competing senders
	MeanOnDuration  float64 `yaml:"mean_on_duration" validate:"gte=0"`  // mean of exponential on periods, ms
	MeanOffDuration float64 `yaml:"mean_off_duration" validate:"gte=0"` // mean of exponential off periods, ms
}

// DefaultNetConfig returns the baseline scenario.
func DefaultNetConfig() NetConfig {
	return NetConfig{
		LinkPPT:         1.0,
		Delay:           100,
		NumSenders:      2,
		MeanOnDuration:  5000,
		MeanOffDuration: 5000,
	}
}

// WithLinkPPT returns a copy with the link rate set.
func (c NetConfig) WithLinkPPT(v float64) NetConfig { c.LinkPPT = v; return c }

// WithDelay returns a copy with the round-trip time set.
func (c NetConfig) WithDelay(v float64) NetConfig { c.Delay = v; return c }

// WithNumSenders returns a copy with the sender count set.
func (c NetConfig) WithNumSenders(n int) NetConfig { c.NumSenders = n; return c }

// WithOnDuration returns a copy with the mean on period set.
func (c NetConfig) WithOnDuration(v float64) NetConfig { c.MeanOnDuration = v; return c }

// WithOffDuration returns a copy with the mean off period set.
func (c NetConfig) WithOffDuration(v float64) NetConfig { c.MeanOffDuration = v; return c }

// AlwaysOn reports whether senders skip on/off switching entirely.
func (c NetConfig) AlwaysOn() bool {
	return c.MeanOnDuration <= 0 || c.MeanOffDuration <= 0
}

func (c NetConfig) String() string {
	return fmt.Sprintf("nsrc=%d, link_ppt=%f, delay=%f, mean_on=%f, mean_off=%f",
		c.NumSenders, c.LinkPPT, c.Delay, c.MeanOnDuration, c.MeanOffDuration)
}
