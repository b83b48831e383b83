package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/breeder"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/history"
	"github.com/remy-sim/remy-sim/sim/trace"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// trainCmd breeds a policy until interrupted or until --iterations steps ran
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Breed a congestion-control policy, checkpointing after every step",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := resolveScenario(cmd)
		if err != nil {
			return err
		}
		configs := scenario.Configs()
		tree, err := loadTree(inputFile)
		if err != nil {
			return err
		}

		var st *trace.SearchTrace
		if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
			st = trace.NewSearchTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
		}
		b := breeder.New(configs, breeder.Options{
			Workers:   workers,
			Seed:      seed,
			Evaluator: evaluatorOptions(),
			Trace:     st,
		})

		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr)
			defer func() { _ = srv.Close() }()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		t := &trainer{
			breeder:      b,
			out:          os.Stdout,
			outputPrefix: outputPrefix,
			iterations:   trainIterations,
			seed:         seed,
			runID:        history.NewRunID(),
		}
		if historyDB != "" {
			store := history.NewSQLiteStore(historyDB)
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("open history %s: %w", historyDB, err)
			}
			defer func() { _ = store.Close() }()
			t.store = store
		}

		printHeader(t.out, scenario, configs, tree, outputPrefix)
		_, err = t.run(ctx, tree)
		if st != nil {
			s := trace.Summarize(st)
			logrus.Infof("trace: %d commits (%d improving, mean gain %.6f), %d splits, %d reverts, cache hit rate %.2f",
				s.TotalCommits, s.ImprovingCommits, s.MeanGain, s.Splits, s.Reverts, s.CacheHitRate)
		}
		if errors.Is(err, context.Canceled) {
			logrus.Warnf("training interrupted")
			return nil
		}
		return err
	},
}

func printHeader(w io.Writer, s Scenario, configs []sim.NetConfig, tree *whisker.WhiskerTree, prefix string) {
	fmt.Fprintln(w, "#######################")
	fmt.Fprintf(w, "Optimizing for link packets_per_ms in [%f, %f]\n", s.LinkPPT[0], s.LinkPPT[1])
	fmt.Fprintf(w, "Optimizing for rtt_ms in [%f, %f]\n", s.RTTMs[0], s.RTTMs[1])
	fmt.Fprintf(w, "Optimizing for num_senders = 1-%d\n", s.MaxSenders)
	fmt.Fprintf(w, "Training on %d configs\n", len(configs))
	fmt.Fprintf(w, "Initial rules (use --if FILE to read from disk): %s\n", tree)
	fmt.Fprintln(w, "#######################")
	if prefix != "" {
		fmt.Fprintf(w, "Writing to \"%s.N\".\n", prefix)
	} else {
		fmt.Fprintln(w, "Not saving output. Use --of PREFIX to save the results.")
	}
}

// trainer runs improvement steps and persists every result.
type trainer struct {
	breeder      *breeder.Breeder
	out          io.Writer
	outputPrefix string
	iterations   int // 0 = until ctx is cancelled
	seed         int64
	store        *history.SQLiteStore
	runID        string
}

func (t *trainer) run(ctx context.Context, tree *whisker.WhiskerTree) (*evaluator.Outcome, error) {
	if t.store != nil {
		err := t.store.StartRun(ctx, history.Run{
			ID:        t.runID,
			Seed:      t.seed,
			Configs:   describeConfigs(t.breeder.Configs()),
			StartedAt: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	var last *evaluator.Outcome
	for i := 0; t.iterations == 0 || i < t.iterations; i++ {
		leaves := tree.NumLeaves()
		start := time.Now()
		outcome, err := t.breeder.Improve(ctx, tree)
		if err != nil {
			return last, err
		}
		last = outcome
		reverted := tree.NumLeaves() == leaves

		fmt.Fprintf(t.out, "run = %d, score = %f\n", i, outcome.Score)
		fmt.Fprintf(t.out, "whiskers: %s\n", tree)
		printOutcome(t.out, outcome)
		logrus.Infof("run %s step %d took %s, %s whiskers",
			t.runID, i, time.Since(start).Round(time.Millisecond), humanize.Comma(int64(tree.NumLeaves())))

		if t.outputPrefix != "" {
			path := checkpointPath(t.outputPrefix, i)
			if err := saveTree(path, tree); err != nil {
				return last, err
			}
			fmt.Fprintf(t.out, "Wrote to %s\n", path)
		}
		if t.store != nil {
			err := t.store.SaveIteration(ctx, history.Iteration{
				RunID:    t.runID,
				Index:    i,
				Score:    outcome.Score,
				Leaves:   tree.NumLeaves(),
				Reverted: reverted,
				Tree:     whisker.Marshal(tree),
			})
			if err != nil {
				return last, err
			}
		}
	}
	return last, nil
}

func describeConfigs(configs []sim.NetConfig) string {
	parts := make([]string, len(configs))
	for i, c := range configs {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}
