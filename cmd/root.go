package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/trace"
)

var (
	// Tree input/output
	inputFile    string // Serialized tree to start from (empty = default single whisker)
	outputPrefix string // Checkpoint prefix; the tree is written to PREFIX.N after every step

	// Scenario shaping
	numSenders   int     // Maximum number of competing senders
	linkPPT      float64 // Link rate in packets per ms
	rttMs        float64 // Base round-trip time in ms
	scenarioPath string  // YAML scenario file

	// Search
	seed            int64  // Seed for every evaluator and scenario draw
	trainIterations int    // Improvement steps to run (0 = until interrupted)
	batchIterations int    // Training steps before held-out testing in batch mode
	testRuns        int    // Careful held-out evaluations per config in batch mode
	workers         int    // Parallel candidate simulations (0 = one per CPU)
	baseTicks       int64  // Simulated ms per config at carefulness 1
	traceLevel      string // Decision trace verbosity
	logLevel        string // Log verbosity level
	metricsAddr     string // Address for the Prometheus /metrics endpoint (empty = disabled)
	historyDB       string // SQLite file recording every improvement step (empty = disabled)
	dumpYAML        bool   // Print the tree as YAML instead of the compact form
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "remy-sim",
	Short: "Congestion-control rule synthesis by simulation",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func evaluatorOptions() evaluator.Options {
	return evaluator.Options{BaseTicks: baseTicks, MaxWindow: sim.DefaultMaxWindow}
}

// addScenarioFlags binds the scenario-shaping flags shared by every subcommand.
func addScenarioFlags(cmd *cobra.Command) {
	def := sim.DefaultNetConfig()
	cmd.Flags().IntVar(&numSenders, "nsrc", def.NumSenders, "Maximum number of competing senders")
	cmd.Flags().Float64Var(&linkPPT, "link", def.LinkPPT, "Link rate (packets per ms)")
	cmd.Flags().Float64Var(&rttMs, "rtt", def.Delay, "Base round-trip time (ms)")
	cmd.Flags().StringVar(&scenarioPath, "config", "", "YAML scenario file; --nsrc/--link/--rtt override it when set")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for evaluators and random scenario configs")
	cmd.Flags().Int64Var(&baseTicks, "base-ticks", evaluator.DefaultBaseTicks, "Simulated ms per config at carefulness 1")
	cmd.Flags().StringVar(&inputFile, "if", "", "Serialized tree to start from")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")

	addScenarioFlags(trainCmd)
	trainCmd.Flags().StringVar(&outputPrefix, "of", "", "Checkpoint prefix; writes PREFIX.N after every step")
	trainCmd.Flags().IntVar(&trainIterations, "iterations", 0, "Improvement steps to run (0 = until interrupted)")
	trainCmd.Flags().IntVar(&workers, "workers", 0, "Parallel candidate simulations (0 = one per CPU)")
	trainCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	trainCmd.Flags().StringVar(&historyDB, "history-db", "", "SQLite file recording every improvement step")

	addScenarioFlags(batchCmd)
	batchCmd.Flags().IntVar(&batchIterations, "iterations", 15, "Training steps before testing")
	batchCmd.Flags().IntVar(&testRuns, "tests", 10, "Careful evaluations per config after training")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "Parallel candidate simulations (0 = one per CPU)")

	addScenarioFlags(printCmd)
	printCmd.Flags().BoolVar(&dumpYAML, "yaml", false, "Print the tree as YAML")

	rootCmd.AddCommand(trainCmd, batchCmd, printCmd)
}
