package breeder

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/remy-sim/remy-sim/sim/whisker"
)

// scoreCandidates scores each candidate substituted alone into the scorer's base
// tree, running at most workers simulations at once. scores[i] belongs to
// candidates[i]; the call returns only after every simulation has finished.
func scoreCandidates(ctx context.Context, s Scorer, candidates []whisker.Whisker, workers int) ([]float64, error) {
	scores := make([]float64, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[i] = s.Score([]whisker.Whisker{c}, false, 1).Score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
