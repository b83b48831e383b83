package breeder

import (
	"runtime"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/trace"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// Scorer scores trees under one frozen random seed. *evaluator.Evaluator
// implements it.
type Scorer interface {
	Score(replacements []whisker.Whisker, traced bool, carefulness uint) *evaluator.Outcome
	ScoreTree(tree *whisker.WhiskerTree, replacements []whisker.Whisker, traced bool, carefulness uint) *evaluator.Outcome
}

// ScorerFactory builds a Scorer over a snapshot of tree.
type ScorerFactory func(tree *whisker.WhiskerTree, seed int64) Scorer

// Options configures a Breeder.
type Options struct {
	Workers     int  // parallel candidate simulations; 0 means runtime.NumCPU()
	Carefulness uint // carefulness of the closing comparison; 0 means 10
	SplitEvery  uint // split when the generation reaches a multiple of this; 0 means 4
	Evaluator   evaluator.Options
	Seed        int64 // seeds the source every evaluator seed is drawn from

	Trace *trace.SearchTrace // nil disables decision recording

	// NewScorer overrides how evaluators are built. Nil uses evaluator.New
	// over the breeder's configurations.
	NewScorer ScorerFactory
}

// DefaultCarefulness multiplies the simulated time of the closing comparison.
const DefaultCarefulness = 10

// DefaultSplitEvery is the generation period of structural splits.
const DefaultSplitEvery = 4

func (o Options) withDefaults(configs []sim.NetConfig) Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Carefulness == 0 {
		o.Carefulness = DefaultCarefulness
	}
	if o.SplitEvery == 0 {
		o.SplitEvery = DefaultSplitEvery
	}
	if o.NewScorer == nil {
		evalOpts := o.Evaluator
		o.NewScorer = func(tree *whisker.WhiskerTree, seed int64) Scorer {
			return evaluator.New(tree, configs, seed, evalOpts)
		}
	}
	return o
}
