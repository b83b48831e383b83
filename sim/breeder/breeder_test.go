package breeder

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/trace"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

var target = whisker.Action{WindowIncrement: 3, WindowMultiple: 0.5, Intersend: 1}

// distance is a seed-independent objective peaking at target.
func distance(a whisker.Action) float64 {
	return -math.Abs(float64(a.WindowIncrement-target.WindowIncrement)) -
		10*math.Abs(a.WindowMultiple-target.WindowMultiple) -
		math.Abs(a.Intersend-target.Intersend)
}

// fakeScorer scores a tree as the mean objective over its leaves and marks
// every leaf as used once. It records how often each candidate was simulated.
type fakeScorer struct {
	base      *whisker.WhiskerTree
	objective func(whisker.Action) float64
	careful   func(tree *whisker.WhiskerTree) float64 // overrides scoring when carefulness > 1

	mu        sync.Mutex
	simulated map[whisker.Key]int
}

func (f *fakeScorer) Score(replacements []whisker.Whisker, traced bool, carefulness uint) *evaluator.Outcome {
	return f.ScoreTree(f.base, replacements, traced, carefulness)
}

func (f *fakeScorer) ScoreTree(tree *whisker.WhiskerTree, replacements []whisker.Whisker, _ bool, carefulness uint) *evaluator.Outcome {
	run := tree.Clone()
	for _, r := range replacements {
		if !run.Replace(r) {
			panic("fakeScorer: replacement matches no whisker")
		}
		f.mu.Lock()
		f.simulated[r.Key()]++
		f.mu.Unlock()
	}
	if carefulness > 1 && f.careful != nil {
		return &evaluator.Outcome{Score: f.careful(run), UsedWhiskers: run}
	}
	total := 0.0
	run.Walk(func(w *whisker.Whisker) bool {
		w.Count = 1
		total += f.objective(w.Action)
		return true
	})
	return &evaluator.Outcome{Score: total / float64(run.NumLeaves()), UsedWhiskers: run}
}

// fakeFactory builds fakeScorers and keeps every one it built.
type fakeFactory struct {
	objective func(whisker.Action) float64
	careful   func(tree *whisker.WhiskerTree) float64
	built     []*fakeScorer
	seeds     []int64
}

func (ff *fakeFactory) new(tree *whisker.WhiskerTree, seed int64) Scorer {
	s := &fakeScorer{
		base:      tree.Clone(),
		objective: ff.objective,
		careful:   ff.careful,
		simulated: make(map[whisker.Key]int),
	}
	ff.built = append(ff.built, s)
	ff.seeds = append(ff.seeds, seed)
	return s
}

func newFakeBreeder(ff *fakeFactory, st *trace.SearchTrace) *Breeder {
	return New(nil, Options{Workers: 4, SplitEvery: 1, Seed: 1, Trace: st, NewScorer: ff.new})
}

func TestImprove_HillClimbsToOptimumThenSplits(t *testing.T) {
	// GIVEN a single-leaf tree and an objective peaking at target
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: distance}
	b := newFakeBreeder(ff, nil)

	// WHEN one improvement step runs
	out, err := b.Improve(context.Background(), tree)

	// THEN both halves of the split root carry the optimal action
	require.NoError(t, err)
	require.Equal(t, 2, tree.NumLeaves())
	for _, w := range tree.Leaves() {
		assert.Equal(t, target, w.Action)
	}
	assert.InDelta(t, 0.0, out.Score, 1e-9)
	assert.NoError(t, tree.Validate())
}

func TestImprove_CommitsOnlyStrictImprovementsBeforeStopping(t *testing.T) {
	// GIVEN a traced breeder
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	st := trace.NewSearchTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	b := newFakeBreeder(&fakeFactory{objective: distance}, st)

	// WHEN one improvement step runs
	_, err := b.Improve(context.Background(), tree)
	require.NoError(t, err)

	// THEN every improving commit raised the score and the last commit ended the search
	require.NotEmpty(t, st.Commits)
	prev := math.Inf(-1)
	for _, c := range st.Commits {
		if c.Improved {
			assert.Greater(t, c.Score, c.Previous)
			assert.Greater(t, c.Score, prev)
			prev = c.Score
		}
	}
	assert.False(t, st.Commits[len(st.Commits)-1].Improved)
	require.Len(t, st.Splits, 1)
	require.Len(t, st.Guards, 1)
	assert.False(t, st.Guards[0].Reverted)
}

func TestImprove_CarefulComparisonRejectsRegression(t *testing.T) {
	// GIVEN a scorer whose careful view penalizes every extra leaf
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	before := tree.String()
	ff := &fakeFactory{
		objective: distance,
		careful:   func(t *whisker.WhiskerTree) float64 { return -float64(t.NumLeaves()) },
	}
	st := trace.NewSearchTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	b := newFakeBreeder(ff, st)

	// WHEN one improvement step runs
	out, err := b.Improve(context.Background(), tree)

	// THEN the entry tree is restored and its careful outcome returned
	require.NoError(t, err)
	assert.Equal(t, before, tree.String())
	assert.Equal(t, 1, tree.NumLeaves())
	assert.Equal(t, -1.0, out.Score)
	require.Len(t, st.Guards, 1)
	assert.True(t, st.Guards[0].Reverted)
}

func TestImprove_CacheAvoidsResimulation(t *testing.T) {
	// GIVEN a traced breeder with a counting scorer
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: distance}
	st := trace.NewSearchTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	b := newFakeBreeder(ff, st)

	// WHEN one improvement step runs
	_, err := b.Improve(context.Background(), tree)
	require.NoError(t, err)

	// THEN no evaluator simulated the same candidate twice
	for _, s := range ff.built {
		for key, n := range s.simulated {
			if n > 1 {
				t.Errorf("candidate %v simulated %d times by one evaluator", key, n)
			}
		}
	}
	// AND the intersend phase reused the window winner's score every round
	for _, c := range st.Commits {
		assert.GreaterOrEqual(t, c.CacheHits, 1)
	}
}

func TestSearchPhase_MemoizedScoresWinTies(t *testing.T) {
	// GIVEN a cache holding a score for the first candidate and a scorer that
	// would score every candidate the same
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: func(whisker.Action) float64 { return 5 }}
	b := newFakeBreeder(ff, nil)
	root := tree.Leaves()[0]
	candidates := root.NextGenerationIntersend(tree.Settings())
	require.Greater(t, len(candidates), 2)

	r := &improvement{tree: tree, scorer: ff.new(tree, 0), cache: newSearchCache()}
	r.cache.store(candidates[2], 5)

	// WHEN the phase runs
	var best choice
	hits, err := b.searchPhase(context.Background(), r, candidates, &best)

	// THEN the memoized candidate is considered first and holds the tie
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.True(t, best.whisker.Equal(candidates[2]))
	assert.Equal(t, 0, ff.built[0].simulated[candidates[2].Key()])
	assert.Equal(t, len(candidates), r.cache.len())
}

func TestChoice_StrictlyHigherScoreDisplaces(t *testing.T) {
	a := whisker.NewWhisker(whisker.FullRange(), whisker.Action{WindowIncrement: 1}, 0)
	b := whisker.NewWhisker(whisker.FullRange(), whisker.Action{WindowIncrement: 2}, 0)
	c := whisker.NewWhisker(whisker.FullRange(), whisker.Action{WindowIncrement: 3}, 0)

	var best choice
	best.consider(a, -1)
	best.consider(b, -1)
	assert.True(t, best.whisker.Equal(a))
	best.consider(c, -0.5)
	assert.True(t, best.whisker.Equal(c))
}

func coarseSettings() whisker.Settings {
	s := whisker.DefaultSettings()
	s.Axes[whisker.AxisSendEWMA] = whisker.AxisSetting{Quantum: 4096, Ceiling: 16384, Active: true}
	s.Axes[whisker.AxisRecEWMA].Active = false
	s.Axes[whisker.AxisRTTRatio].Active = false
	return s
}

func TestApplyBestSplit_SkipsUnbisectableWhiskers(t *testing.T) {
	// GIVEN leaves [0,4096) [4096,8192) [8192,inf) on a 4096 grid, where only
	// the last one can still be cut
	tree := whisker.NewWhiskerTree(coarseSettings())
	root := tree.Leaves()[0]
	require.True(t, tree.ReplaceSubtree(root, tree.Bisect(root)))
	left := tree.Leaves()[0]
	require.True(t, tree.ReplaceSubtree(left, tree.Bisect(left)))
	require.Equal(t, 3, tree.NumLeaves())
	st := trace.NewSearchTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	b := newFakeBreeder(&fakeFactory{objective: distance}, st)

	// WHEN the best split is applied at generation 0
	b.applyBestSplit(tree, 0)

	// THEN the two most used but unbisectable whiskers were passed over
	require.Len(t, st.Splits, 1)
	assert.Equal(t, 2, st.Splits[0].Skipped)
	leaves := tree.Leaves()
	require.Len(t, leaves, 4)
	assert.Equal(t, 12288.0, leaves[2].Domain.Upper[whisker.AxisSendEWMA])
	assert.NoError(t, tree.Validate())
}

func TestApplyBestSplit_NothingSplittable_Panics(t *testing.T) {
	s := whisker.DefaultSettings()
	for i := range s.Axes {
		s.Axes[i].Active = false
	}
	tree := whisker.NewWhiskerTree(s)
	b := newFakeBreeder(&fakeFactory{objective: distance}, nil)

	assert.Panics(t, func() { b.applyBestSplit(tree, 0) })
}

func TestImprove_CancelledContext_RestoresTree(t *testing.T) {
	// GIVEN a cancelled context
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	before := tree.String()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newFakeBreeder(&fakeFactory{objective: distance}, nil)

	// WHEN an improvement step is attempted
	out, err := b.Improve(ctx, tree)

	// THEN it fails with the context error and leaves the tree untouched
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Equal(t, before, tree.String())
}

func TestImprove_DrawsFreshSeedPerEvaluator(t *testing.T) {
	tree := whisker.NewWhiskerTree(whisker.DefaultSettings())
	ff := &fakeFactory{objective: distance}
	b := newFakeBreeder(ff, nil)

	_, err := b.Improve(context.Background(), tree)
	require.NoError(t, err)

	seen := map[int64]bool{}
	for _, s := range ff.seeds {
		assert.False(t, seen[s], "seed %d reused", s)
		seen[s] = true
	}
}

// narrowSettings keeps the candidate sets small for simulated runs.
func narrowSettings() whisker.Settings {
	s := whisker.DefaultSettings()
	s.WindowIncrement.MaxChange = 1
	s.WindowMultiple.MaxChange = 0.01
	s.Intersend.MaxChange = 0.05
	return s
}

func TestImprove_Simulated_IsDeterministicForSeed(t *testing.T) {
	// GIVEN two breeders with the same seed over the example scenario
	configs := []sim.NetConfig{sim.DefaultNetConfig().WithNumSenders(2).WithOnDuration(0)}
	opts := Options{
		Workers:     4,
		SplitEvery:  1,
		Carefulness: 2,
		Seed:        11,
		Evaluator:   evaluator.Options{BaseTicks: 300},
	}
	treeA := whisker.NewWhiskerTree(narrowSettings())
	treeB := whisker.NewWhiskerTree(narrowSettings())

	// WHEN each runs one improvement step
	outA, errA := New(configs, opts).Improve(context.Background(), treeA)
	outB, errB := New(configs, opts).Improve(context.Background(), treeB)

	// THEN they end with identical trees and scores
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, treeA.String(), treeB.String())
	assert.Equal(t, outA.Score, outB.Score)
	assert.NoError(t, treeA.Validate())
	assert.Contains(t, []int{1, 2}, treeA.NumLeaves())
}
