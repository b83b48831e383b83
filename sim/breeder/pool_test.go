package breeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remy-sim/remy-sim/sim/whisker"
)

func TestScoreCandidates_ResultsFollowCandidateOrder(t *testing.T) {
	// GIVEN candidates with distinct window increments and a scorer that
	// returns the negated increment
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	root := tree.Leaves()[0]
	ff := &fakeFactory{objective: func(a whisker.Action) float64 { return -float64(a.WindowIncrement) }}
	s := ff.new(tree, 0)
	candidates := root.NextGeneration(tree.Settings())

	// WHEN they are scored with fewer workers than candidates
	scores, err := scoreCandidates(context.Background(), s, candidates, 2)

	// THEN scores[i] belongs to candidates[i]
	require.NoError(t, err)
	require.Len(t, scores, len(candidates))
	for i, c := range candidates {
		assert.Equal(t, -float64(c.Action.WindowIncrement), scores[i])
	}
}

func TestScoreCandidates_CancelledContext_ReturnsError(t *testing.T) {
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: distance}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scoreCandidates(ctx, ff.new(tree, 0), tree.Leaves()[0].NextGeneration(tree.Settings()), 2)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreCandidates_Empty(t *testing.T) {
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: distance}

	scores, err := scoreCandidates(context.Background(), ff.new(tree, 0), nil, 4)

	require.NoError(t, err)
	assert.Empty(t, scores)
}
