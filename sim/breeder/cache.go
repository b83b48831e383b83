package breeder

import "github.com/remy-sim/remy-sim/sim/whisker"

// searchCache memoizes candidate scores against one evaluator. Entries are only
// meaningful for the base tree and seed they were scored with, so a cache lives
// exactly as long as its evaluator.
//
// Not thread-safe: it is read and written on the search goroutine only.
type searchCache struct {
	scores map[whisker.Key]float64
	hits   int
	misses int
}

func newSearchCache() *searchCache {
	return &searchCache{scores: make(map[whisker.Key]float64)}
}

func (c *searchCache) lookup(w whisker.Whisker) (float64, bool) {
	score, ok := c.scores[w.Key()]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return score, ok
}

func (c *searchCache) store(w whisker.Whisker, score float64) {
	c.scores[w.Key()] = score
}

func (c *searchCache) len() int {
	return len(c.scores)
}
