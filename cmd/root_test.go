package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"train", "batch", "print"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestSubcommands_IterationDefaultsAreIndependent(t *testing.T) {
	// GIVEN train and batch both expose --iterations
	train := trainCmd.Flags().Lookup("iterations")
	batch := batchCmd.Flags().Lookup("iterations")

	// THEN train runs forever by default and batch trains 15 steps
	require.NotNil(t, train)
	require.NotNil(t, batch)
	assert.Equal(t, "0", train.DefValue)
	assert.Equal(t, "15", batch.DefValue)
}

func TestSubcommands_ShareScenarioFlags(t *testing.T) {
	for _, c := range []string{"nsrc", "link", "rtt", "config", "seed", "if", "base-ticks"} {
		assert.NotNil(t, trainCmd.Flags().Lookup(c), "train --%s", c)
		assert.NotNil(t, batchCmd.Flags().Lookup(c), "batch --%s", c)
		assert.NotNil(t, printCmd.Flags().Lookup(c), "print --%s", c)
	}
	assert.NotNil(t, trainCmd.Flags().Lookup("of"))
	assert.NotNil(t, trainCmd.Flags().Lookup("metrics-addr"))
	assert.NotNil(t, trainCmd.Flags().Lookup("history-db"))
}

func TestResolveScenario_FlagsOverrideFile(t *testing.T) {
	// GIVEN a scenario file and an explicitly set --link
	path := writeScenario(t, "link_ppt: [0.5, 1.5]\nrtt_ms: [50, 150]\nmax_senders: 4\n")
	require.NoError(t, trainCmd.Flags().Set("config", path))
	require.NoError(t, trainCmd.Flags().Set("link", "0.8"))
	t.Cleanup(func() {
		scenarioPath = ""
		linkPPT = 1.0
		trainCmd.Flags().Lookup("link").Changed = false
		trainCmd.Flags().Lookup("config").Changed = false
	})

	// WHEN the scenario is resolved
	s, err := resolveScenario(trainCmd)

	// THEN only the overridden field changes
	require.NoError(t, err)
	assert.Equal(t, []float64{0.8, 1.5}, s.LinkPPT)
	assert.Equal(t, []float64{50, 150}, s.RTTMs)
	assert.Equal(t, 4, s.MaxSenders)
}
