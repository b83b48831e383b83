package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_RegistersOnce(t *testing.T) {
	// GIVEN the default registry
	// WHEN Init is called twice
	assert.NotPanics(t, Init)
	assert.NotPanics(t, Init)

	// THEN the instruments are gathered from the default registry
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["remy_splits_total"])
	assert.True(t, names["remy_best_score"])
}

func TestCommits_LabelledByImprovement(t *testing.T) {
	before := testutil.ToFloat64(Commits.WithLabelValues("true"))

	Commits.WithLabelValues("true").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(Commits.WithLabelValues("true")))
}
