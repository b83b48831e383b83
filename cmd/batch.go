package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/breeder"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// testCarefulness multiplies the simulated time of held-out evaluations.
const testCarefulness = 10

// batchCmd trains for a fixed number of steps, then reports held-out statistics
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Train for a fixed number of steps and report held-out score statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := resolveScenario(cmd)
		if err != nil {
			return err
		}
		tree, err := loadTree(inputFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runBatch(ctx, os.Stdout, tree, scenario.Configs(), batchOptions{
			Iterations: batchIterations,
			Tests:      testRuns,
			Workers:    workers,
			Seed:       seed,
			Evaluator:  evaluatorOptions(),
		})
		return err
	},
}

type batchOptions struct {
	Iterations int
	Tests      int
	Workers    int
	Seed       int64
	Evaluator  evaluator.Options
}

// configStats summarizes the held-out normalized scores of one config.
type configStats struct {
	Config sim.NetConfig
	Scores []float64
	Mean   float64
	StdDev float64 // population standard deviation
}

// runBatch trains tree in place, then evaluates it opts.Tests times on every
// config alone, each time under a fresh seed.
func runBatch(ctx context.Context, w io.Writer, tree *whisker.WhiskerTree, configs []sim.NetConfig, opts batchOptions) ([]configStats, error) {
	fmt.Fprintln(w, "********** Training **********")
	b := breeder.New(configs, breeder.Options{Workers: opts.Workers, Seed: opts.Seed, Evaluator: opts.Evaluator})
	for i := 0; i < opts.Iterations; i++ {
		outcome, err := b.Improve(ctx, tree)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "run = %d, score = %f\n", i, outcome.Score)
		printOutcome(w, outcome)
	}

	fmt.Fprintln(w, "*********** Testing ***********")
	seeds := sim.NewPartitionedRNG(sim.NewSimulationKey(opts.Seed)).ForSubsystem("test")
	stats := make([]configStats, len(configs))
	for j, cfg := range configs {
		stats[j].Config = cfg
	}
	for i := 0; i < opts.Tests; i++ {
		for j, cfg := range configs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e := evaluator.New(tree, []sim.NetConfig{cfg}, seeds.Int63(), opts.Evaluator)
			outcome := e.Score(nil, false, testCarefulness)
			fmt.Fprintf(w, "score = %f\n", outcome.Score)
			printOutcome(w, outcome)
			norm := outcome.NormalizedScore()
			fmt.Fprintf(w, "normalized_score = %f\n", norm)
			stats[j].Scores = append(stats[j].Scores, norm)
		}
	}

	for j := range stats {
		stats[j].Mean = stat.Mean(stats[j].Scores, nil)
		stats[j].StdDev = stat.PopStdDev(stats[j].Scores, nil)
		fmt.Fprintf(w, "Stats for config %s: mean %f, stdev %f\n", stats[j].Config, stats[j].Mean, stats[j].StdDev)
	}
	return stats, nil
}
