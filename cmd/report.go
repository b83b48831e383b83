package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/metrics"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// resolveScenario builds the scenario from --config, letting explicitly set
// --link/--rtt/--nsrc flags override the file's low anchor.
func resolveScenario(cmd *cobra.Command) (Scenario, error) {
	if scenarioPath == "" {
		s := DefaultScenario(linkPPT, rttMs, numSenders)
		return s, s.Validate()
	}
	s, err := LoadScenario(scenarioPath)
	if err != nil {
		return Scenario{}, err
	}
	if cmd.Flags().Changed("link") {
		s.LinkPPT[0] = linkPPT
		s.LinkPPT[1] = max(s.LinkPPT[1], linkPPT)
	}
	if cmd.Flags().Changed("rtt") {
		s.RTTMs[0] = rttMs
		s.RTTMs[1] = max(s.RTTMs[1], rttMs)
	}
	if cmd.Flags().Changed("nsrc") {
		s.MaxSenders = numSenders
	}
	return s, s.Validate()
}

// loadTree reads a serialized tree, or returns the default single-whisker tree
// when path is empty.
func loadTree(path string) (*whisker.WhiskerTree, error) {
	if path == "" {
		return whisker.NewWhiskerTree(whisker.DefaultSettings()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	tree, err := whisker.Load(f, whisker.DefaultSettings())
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return tree, nil
}

func saveTree(path string, tree *whisker.WhiskerTree) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := whisker.Save(f, tree); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func checkpointPath(prefix string, n int) string {
	return fmt.Sprintf("%s.%d", prefix, n)
}

// printOutcome prints normalized throughput and delay for every sender.
func printOutcome(w io.Writer, o *evaluator.Outcome) {
	for _, run := range o.ThroughputsDelays {
		fmt.Fprintf(w, "===\nconfig: %s\n", run.Config)
		for _, s := range run.Senders {
			fmt.Fprintf(w, "sender: [tp=%f, del=%f]\n", s.Throughput/run.Config.LinkPPT, s.Delay/run.Config.Delay)
		}
	}
}

// printWindows prints the share of window settings that landed on each size.
func printWindows(w io.Writer, used []uint64) {
	var total uint64
	for _, c := range used {
		total += c
	}
	fmt.Fprint(w, "Windows:")
	for i, c := range used {
		if c > 0 {
			fmt.Fprintf(w, " [%d=%.4f]", i, float64(c)/float64(total))
		}
	}
	fmt.Fprintln(w)
}

// serveMetrics exposes the search metrics on addr in the background.
func serveMetrics(addr string) *http.Server {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("serving metrics on %s/metrics", addr)
	return srv
}
