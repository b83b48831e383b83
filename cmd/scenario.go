package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/remy-sim/remy-sim/sim"
)

// Scenario describes the battery of network configurations a policy is trained on.
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	LinkPPT       []float64       `yaml:"link_ppt" validate:"len=2,dive,gt=0"` // [lo, hi] packets per ms
	RTTMs         []float64       `yaml:"rtt_ms" validate:"len=2,dive,gt=0"`   // [lo, hi] ms
	MaxSenders    int             `yaml:"max_senders" validate:"gte=1"`
	LoOnly        bool            `yaml:"lo_only"` // only the low anchor, no range sweep
	RandomConfigs int             `yaml:"random_configs" validate:"gte=0"`
	Seed          int64           `yaml:"seed"`                    // seeds the random configs
	OnOff         []sim.NetConfig `yaml:"on_off" validate:"dive"` // extra configs appended verbatim
}

// extraOnOffDuration is the mean on and off period of the bursty anchor config.
const extraOnOffDuration = 500

// DefaultScenario trains on a single operating point.
func DefaultScenario(link, rtt float64, nsrc int) Scenario {
	return Scenario{
		LinkPPT:    []float64{link, link},
		RTTMs:      []float64{rtt, rtt},
		MaxSenders: nsrc,
		LoOnly:     true,
	}
}

// Validate checks struct tags and range ordering.
func (s Scenario) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	if s.LinkPPT[1] < s.LinkPPT[0] {
		return fmt.Errorf("invalid scenario: link_ppt range [%g, %g] is reversed", s.LinkPPT[0], s.LinkPPT[1])
	}
	if s.RTTMs[1] < s.RTTMs[0] {
		return fmt.Errorf("invalid scenario: rtt_ms range [%g, %g] is reversed", s.RTTMs[0], s.RTTMs[1])
	}
	return nil
}

// Configs expands the scenario into concrete configurations. The low anchor
// comes first. Unless LoOnly is set, the other three range corners and
// RandomConfigs uniformly drawn points follow. A single-sender and a bursty
// two-sender config at the low anchor always close the battery, before any OnOff extras.
func (s Scenario) Configs() []sim.NetConfig {
	linkLo, linkHi := s.LinkPPT[0], s.LinkPPT[1]
	rttLo, rttHi := s.RTTMs[0], s.RTTMs[1]
	base := sim.DefaultNetConfig()

	configs := []sim.NetConfig{base.WithLinkPPT(linkLo).WithDelay(rttLo).WithNumSenders(s.MaxSenders)}
	if !s.LoOnly {
		configs = append(configs,
			base.WithLinkPPT(linkLo).WithDelay(rttHi).WithNumSenders(s.MaxSenders),
			base.WithLinkPPT(linkHi).WithDelay(rttLo).WithNumSenders(s.MaxSenders),
			base.WithLinkPPT(linkHi).WithDelay(rttHi).WithNumSenders(s.MaxSenders),
		)
		rng := sim.NewPartitionedRNG(sim.NewSimulationKey(s.Seed)).ForSubsystem("scenario")
		for i := 0; i < s.RandomConfigs; i++ {
			link := linkLo + rng.Float64()*(linkHi-linkLo)
			rtt := rttLo + rng.Float64()*(rttHi-rttLo)
			nsrc := 1 + rng.Intn(s.MaxSenders)
			configs = append(configs, base.WithLinkPPT(link).WithDelay(rtt).WithNumSenders(nsrc))
		}
	}
	configs = append(configs,
		base.WithLinkPPT(linkLo).WithDelay(rttLo).WithNumSenders(1),
		base.WithLinkPPT(linkLo).WithDelay(rttLo).WithNumSenders(2).
			WithOnDuration(extraOnOffDuration).WithOffDuration(extraOnOffDuration),
	)
	return append(configs, s.OnOff...)
}

// LoadScenario reads a scenario file with strict field checking (typos must cause errors).
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
