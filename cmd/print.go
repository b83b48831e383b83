package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// printCmd evaluates a stored tree once and prints what it does
var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Evaluate a tree carefully and print its scores, window histogram and rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := resolveScenario(cmd)
		if err != nil {
			return err
		}
		tree, err := loadTree(inputFile)
		if err != nil {
			return err
		}
		return printTree(os.Stdout, tree, scenario.Configs(), seed, evaluatorOptions(), dumpYAML)
	},
}

func printTree(w io.Writer, tree *whisker.WhiskerTree, configs []sim.NetConfig, seed int64, opts evaluator.Options, asYAML bool) error {
	outcome := evaluator.New(tree, configs, seed, opts).Score(nil, false, testCarefulness)
	fmt.Fprintf(w, "score = %f\n", outcome.Score)
	printOutcome(w, outcome)
	fmt.Fprintf(w, "normalized_score = %f\n", outcome.NormalizedScore())
	printWindows(w, outcome.UsedWindows)

	if !asYAML {
		fmt.Fprintf(w, "Whiskers: %s\n", outcome.UsedWhiskers)
		return nil
	}
	data, err := whisker.DumpYAML(outcome.UsedWhiskers)
	if err != nil {
		return fmt.Errorf("dump tree: %w", err)
	}
	_, err = w.Write(data)
	return err
}
