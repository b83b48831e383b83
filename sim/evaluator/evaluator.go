// Package evaluator scores a policy by simulating it across a battery of
// network configurations with a random seed frozen for the evaluator's lifetime.
package evaluator

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// DefaultBaseTicks is the simulated duration (ms) of one configuration at
// carefulness 1.
const DefaultBaseTicks int64 = 100000

// Options tunes an Evaluator.
type Options struct {
	BaseTicks int64 // ms simulated per configuration at carefulness 1
	MaxWindow int   // congestion window bound and histogram size
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{BaseTicks: DefaultBaseTicks, MaxWindow: sim.DefaultMaxWindow}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaseTicks <= 0 {
		o.BaseTicks = d.BaseTicks
	}
	if o.MaxWindow <= 0 {
		o.MaxWindow = d.MaxWindow
	}
	return o
}

// ConfigResult holds the per-sender results of one configuration.
type ConfigResult struct {
	Config  sim.NetConfig
	Senders []sim.SenderResult
}

// Outcome is the result of one Score call.
type Outcome struct {
	Score             float64
	ThroughputsDelays []ConfigResult
	// UsedWhiskers is the tree that was simulated, carrying the usage counters
	// (and traced samples) of this evaluation.
	UsedWhiskers *whisker.WhiskerTree
	// UsedWindows[i] counts how often the congestion window was set to i.
	UsedWindows []uint64
}

// Evaluator scores variations of a base tree. Every Score call replays the same
// random streams, so scores of different replacements are directly comparable.
//
// Thread-safety: Score may be called concurrently; the base tree is never mutated.
type Evaluator struct {
	key     sim.SimulationKey
	base    *whisker.WhiskerTree
	configs []sim.NetConfig
	opts    Options
}

// New snapshots tree and returns an evaluator over configs with a frozen seed.
func New(tree *whisker.WhiskerTree, configs []sim.NetConfig, seed int64, opts Options) *Evaluator {
	return &Evaluator{
		key:     sim.NewSimulationKey(seed),
		base:    tree.Clone(),
		configs: append([]sim.NetConfig(nil), configs...),
		opts:    opts.withDefaults(),
	}
}

// Key returns the frozen simulation key.
func (e *Evaluator) Key() sim.SimulationKey {
	return e.key
}

// Configs returns the scenarios the evaluator runs.
func (e *Evaluator) Configs() []sim.NetConfig {
	return append([]sim.NetConfig(nil), e.configs...)
}

// Score simulates the base tree with replacements applied. Each configuration
// runs for BaseTicks*carefulness ms; a carefulness of 0 counts as 1. When trace
// is set the matched memory points are recorded for bisection.
//
// A replacement whose domain is not a leaf of the base tree is a caller bug and panics.
func (e *Evaluator) Score(replacements []whisker.Whisker, trace bool, carefulness uint) *Outcome {
	return e.ScoreTree(e.base, replacements, trace, carefulness)
}

// ScoreTree is Score against an arbitrary tree instead of the base tree, using
// the same frozen seed. It is used to compare two trees under identical traffic.
func (e *Evaluator) ScoreTree(tree *whisker.WhiskerTree, replacements []whisker.Whisker, trace bool, carefulness uint) *Outcome {
	if carefulness == 0 {
		carefulness = 1
	}
	run := tree.Clone()
	for _, r := range replacements {
		if !run.Replace(r) {
			panic(fmt.Sprintf("Evaluator.Score: replacement %s matches no whisker", r))
		}
	}
	run.ResetCounts()

	ticks := e.opts.BaseTicks * int64(carefulness)
	rng := sim.NewPartitionedRNG(e.key)
	outcome := &Outcome{UsedWhiskers: run}
	for i, cfg := range e.configs {
		network := sim.NewNetwork(run, cfg, rng.ForSubsystem(sim.SubsystemConfig(i)),
			sim.NetworkOptions{MaxWindow: e.opts.MaxWindow, Trace: trace})
		network.Run(ticks)

		outcome.Score += network.Utility()
		outcome.ThroughputsDelays = append(outcome.ThroughputsDelays, ConfigResult{
			Config:  cfg,
			Senders: network.Results(),
		})
	}
	outcome.UsedWindows = run.UsedWindows()
	logrus.Debugf("scored %d whiskers over %d configs x %s ticks: %.6f",
		run.NumLeaves(), len(e.configs), humanize.Comma(ticks), outcome.Score)
	return outcome
}

// NormalizedScore sums log2(throughput/link rate) - log2(delay/base delay) over
// every sender of every configuration, without the special cases of
// sim.Utility. Senders that delivered nothing make it -Inf or NaN.
func (o *Outcome) NormalizedScore() float64 {
	total := 0.0
	for _, run := range o.ThroughputsDelays {
		for _, s := range run.Senders {
			total += math.Log2(s.Throughput/run.Config.LinkPPT) - math.Log2(s.Delay/run.Config.Delay)
		}
	}
	return total
}
