// Package breeder improves a whisker tree by generation-staged local search:
// it perturbs the most used whisker of the current generation, keeps the best
// scoring variant, and bisects a whisker once every few generations.
package breeder

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/remy-sim/remy-sim/sim"
	"github.com/remy-sim/remy-sim/sim/evaluator"
	"github.com/remy-sim/remy-sim/sim/metrics"
	"github.com/remy-sim/remy-sim/sim/trace"
	"github.com/remy-sim/remy-sim/sim/whisker"
)

// Breeder runs improvement steps over a fixed battery of configurations.
//
// Thread-safety: NOT thread-safe. Candidate simulations inside one step run in
// parallel, but Improve itself must not be called concurrently.
type Breeder struct {
	configs []sim.NetConfig
	opts    Options
	seeds   *rand.Rand
}

// New returns a breeder over configs.
func New(configs []sim.NetConfig, opts Options) *Breeder {
	return &Breeder{
		configs: append([]sim.NetConfig(nil), configs...),
		opts:    opts.withDefaults(configs),
		seeds:   rand.New(rand.NewSource(opts.Seed)),
	}
}

// Configs returns the configurations the breeder trains on.
func (b *Breeder) Configs() []sim.NetConfig {
	return append([]sim.NetConfig(nil), b.configs...)
}

// Trace returns the decision trace, or nil if none was configured.
func (b *Breeder) Trace() *trace.SearchTrace {
	return b.opts.Trace
}

type state int

const (
	stateEvaluate state = iota
	stateSearchTarget
	stateLocalSearch
	stateAdvance
	stateSplit
	stateGuard
	stateDone
)

func (s state) String() string {
	switch s {
	case stateEvaluate:
		return "evaluate"
	case stateSearchTarget:
		return "search-target"
	case stateLocalSearch:
		return "local-search"
	case stateAdvance:
		return "advance"
	case stateSplit:
		return "split"
	case stateGuard:
		return "guard"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// improvement is the working state of one Improve call.
type improvement struct {
	tree       *whisker.WhiskerTree
	bestSoFar  *whisker.WhiskerTree
	generation uint

	// Rebuilt on every evaluate: cached scores are tied to the scorer's base tree.
	scorer  Scorer
	cache   *searchCache
	outcome *evaluator.Outcome

	differential whisker.Whisker
	diffgen      uint

	result *evaluator.Outcome
}

// Improve runs one search epoch on tree in place and returns the outcome of the
// tree it leaves behind. The epoch ends with a structural split followed by a
// careful comparison against the tree as it was on entry; if the new tree does
// not score strictly better, the entry tree is restored and its outcome returned.
//
// Cancelling ctx abandons the epoch, restores the entry tree and returns ctx.Err().
func (b *Breeder) Improve(ctx context.Context, tree *whisker.WhiskerTree) (*evaluator.Outcome, error) {
	start := time.Now()
	r := &improvement{tree: tree, bestSoFar: tree.Clone()}
	tree.ResetGeneration()

	st := stateEvaluate
	for st != stateDone {
		if err := ctx.Err(); err != nil {
			tree.Assign(r.bestSoFar)
			return nil, err
		}
		var err error
		next := st
		switch st {
		case stateEvaluate:
			next = b.evaluate(r)
		case stateSearchTarget:
			next = b.searchTarget(r)
		case stateLocalSearch:
			next, err = b.localSearch(ctx, r)
		case stateAdvance:
			next = b.advance(r)
		case stateSplit:
			next = b.split(r)
		case stateGuard:
			next = b.guard(r)
		default:
			panic(fmt.Sprintf("Breeder.Improve: unknown state %s", st))
		}
		if err != nil {
			tree.Assign(r.bestSoFar)
			return nil, err
		}
		logrus.Debugf("breeder: %s -> %s (generation %d)", st, next, r.generation)
		st = next
	}

	metrics.ImproveDuration.Observe(time.Since(start).Seconds())
	metrics.BestScore.Set(r.result.Score)
	metrics.Whiskers.Set(float64(tree.NumLeaves()))
	return r.result, nil
}

func (b *Breeder) nextSeed() int64 {
	return b.seeds.Int63()
}

// evaluate scores the working tree under a fresh seed and starts a fresh cache.
func (b *Breeder) evaluate(r *improvement) state {
	seed := b.nextSeed()
	r.scorer = b.opts.NewScorer(r.tree, seed)
	r.cache = newSearchCache()
	r.outcome = r.scorer.Score(nil, false, 1)
	b.opts.Trace.RecordEvaluation(trace.EvaluationRecord{
		Generation: r.generation,
		Seed:       seed,
		Score:      r.outcome.Score,
		Leaves:     r.tree.NumLeaves(),
	})
	return stateSearchTarget
}

func (b *Breeder) searchTarget(r *improvement) state {
	target, ok := r.outcome.UsedWhiskers.MostUsed(r.generation)
	if !ok {
		return stateAdvance
	}
	r.differential = target
	r.diffgen = target.Generation
	return stateLocalSearch
}

func (b *Breeder) advance(r *improvement) state {
	r.generation++
	r.tree.Promote(r.generation)
	if r.generation%b.opts.SplitEvery == 0 {
		return stateSplit
	}
	return stateEvaluate
}

func (b *Breeder) split(r *improvement) state {
	b.applyBestSplit(r.tree, r.generation)
	r.generation++
	r.tree.Promote(r.generation)
	return stateGuard
}

// choice tracks the best candidate seen so far. Only a strictly higher score
// displaces it, so ties keep the first candidate encountered.
type choice struct {
	whisker whisker.Whisker
	score   float64
	ok      bool
}

func (c *choice) consider(w whisker.Whisker, score float64) {
	if !c.ok || score > c.score {
		c.whisker = w
		c.score = score
		c.ok = true
	}
}

// searchPhase offers every candidate to best. Cached scores are considered
// first, then the rest are simulated in parallel and considered in candidate
// order. It returns how many candidates were answered from the cache.
func (b *Breeder) searchPhase(ctx context.Context, r *improvement, candidates []whisker.Whisker, best *choice) (int, error) {
	var fresh []whisker.Whisker
	hits := 0
	for _, c := range candidates {
		if score, ok := r.cache.lookup(c); ok {
			best.consider(c, score)
			hits++
			continue
		}
		fresh = append(fresh, c)
	}

	scores, err := scoreCandidates(ctx, r.scorer, fresh, b.opts.Workers)
	if err != nil {
		return hits, err
	}
	for i, c := range fresh {
		r.cache.store(c, scores[i])
		best.consider(c, scores[i])
	}

	metrics.CacheHits.Add(float64(hits))
	metrics.CandidatesScored.Add(float64(len(fresh)))
	return hits, nil
}

// localSearch runs one round over the differential whisker: window candidates,
// then intersend candidates around the window winner. The winner is always
// committed; the round repeats only if it beat the evaluation score.
func (b *Breeder) localSearch(ctx context.Context, r *improvement) (state, error) {
	settings := r.tree.Settings()
	var best choice

	window := r.differential.NextGeneration(settings)
	logrus.Debugf("evaluating %d replacements for %s", len(window), r.differential)
	hits, err := b.searchPhase(ctx, r, window, &best)
	if err != nil {
		return stateDone, err
	}
	if !best.ok {
		panic(fmt.Sprintf("Breeder.localSearch: no window candidates for %s", r.differential))
	}

	intersend := best.whisker.NextGenerationIntersend(settings)
	logrus.Debugf("evaluating %d intersend replacements for %s", len(intersend), best.whisker)
	hits2, err := b.searchPhase(ctx, r, intersend, &best)
	if err != nil {
		return stateDone, err
	}

	improved := best.score > r.outcome.Score
	if !r.tree.Replace(best.whisker) {
		panic(fmt.Sprintf("Breeder.localSearch: %s matches no whisker", best.whisker))
	}
	b.opts.Trace.RecordCommit(trace.CommitRecord{
		Generation: r.generation,
		Whisker:    best.whisker.String(),
		Previous:   r.outcome.Score,
		Score:      best.score,
		Improved:   improved,
		Candidates: len(window) + len(intersend),
		CacheHits:  hits + hits2,
	})
	metrics.Commits.WithLabelValues(strconv.FormatBool(improved)).Inc()

	if !improved {
		logrus.Debugf("done with search at %s (%.12f); cache holds %d scores, %d hits, %d misses",
			best.whisker, best.score, r.cache.len(), r.cache.hits, r.cache.misses)
		return stateEvaluate, nil
	}
	logrus.Infof("replacing with whisker that scored %.12f => %.12f (+%.12f)",
		r.outcome.Score, best.score, best.score-r.outcome.Score)
	r.differential = best.whisker
	r.differential.Demote(r.diffgen)
	r.outcome.Score = best.score
	return stateLocalSearch, nil
}

// applyBestSplit bisects the most used whisker of generation g that can be
// bisected, judged by a traced evaluation of tree. Unbisectable whiskers are
// promoted past g in the traced copy so the next most used one is tried.
func (b *Breeder) applyBestSplit(tree *whisker.WhiskerTree, g uint) {
	traced := b.opts.NewScorer(tree, b.nextSeed()).Score(nil, true, 1).UsedWhiskers
	skipped := 0
	for {
		w, ok := traced.MostUsed(g)
		if !ok {
			panic(fmt.Sprintf("Breeder.applyBestSplit: no whisker of generation %d can be split", g))
		}
		sub := traced.Bisect(w)
		if sub.NumChildren() == 1 {
			logrus.Debugf("unbisectable whisker %s", w)
			w.Promote(g + 1)
			if !traced.Replace(w) {
				panic(fmt.Sprintf("Breeder.applyBestSplit: %s vanished from the traced tree", w))
			}
			skipped++
			continue
		}
		if !tree.ReplaceSubtree(w, sub) {
			panic(fmt.Sprintf("Breeder.applyBestSplit: %s matches no whisker", w))
		}
		logrus.Infof("bisected %s into %d whiskers", w, sub.NumChildren())
		b.opts.Trace.RecordSplit(trace.SplitRecord{
			Generation: g,
			Whisker:    w.String(),
			Children:   sub.NumChildren(),
			Skipped:    skipped,
		})
		metrics.Splits.Inc()
		return
	}
}

// guard compares the searched tree against the entry tree under a fresh seed
// at high carefulness and keeps the entry tree unless the new one wins strictly.
func (b *Breeder) guard(r *improvement) state {
	seed := b.nextSeed()
	s := b.opts.NewScorer(r.tree, seed)

	var newOut, oldOut *evaluator.Outcome
	var g errgroup.Group
	g.Go(func() error {
		newOut = s.ScoreTree(r.tree, nil, false, b.opts.Carefulness)
		return nil
	})
	g.Go(func() error {
		oldOut = s.ScoreTree(r.bestSoFar, nil, false, b.opts.Carefulness)
		return nil
	})
	_ = g.Wait()

	reverted := oldOut.Score >= newOut.Score
	b.opts.Trace.RecordGuard(trace.GuardRecord{
		Seed:     seed,
		OldScore: oldOut.Score,
		NewScore: newOut.Score,
		Reverted: reverted,
	})
	if reverted {
		logrus.Warnf("regression, old=%f, new=%f", oldOut.Score, newOut.Score)
		metrics.Regressions.Inc()
		r.tree.Assign(r.bestSoFar)
		r.result = oldOut
		return stateDone
	}
	r.result = newOut
	return stateDone
}
