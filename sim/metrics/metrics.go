// Package metrics exposes Prometheus instruments for the policy search.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Simulations run for candidate scoring (cache misses)
	CandidatesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remy_candidates_scored_total",
		Help: "Total number of candidate whiskers scored by simulation",
	})

	// Candidates answered from the search cache
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remy_search_cache_hits_total",
		Help: "Total number of candidate scores served from the search cache",
	})

	// Local-search commits, labelled by whether they improved the score
	Commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remy_commits_total",
		Help: "Total number of local-search commits",
	}, []string{"improved"})

	Splits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remy_splits_total",
		Help: "Total number of structural whisker splits",
	})

	Regressions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "remy_regressions_total",
		Help: "Total number of improvement steps reverted by the careful comparison",
	})

	// Score returned by the latest improvement step
	BestScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remy_best_score",
		Help: "Careful score of the tree returned by the latest improvement step",
	})

	Whiskers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remy_whiskers",
		Help: "Number of leaves in the working tree",
	})

	// Wall time of one improvement step
	ImproveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "remy_improve_duration_seconds",
		Help:    "Wall time of one improvement step",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

var once sync.Once

// Init registers the instruments with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			CandidatesScored,
			CacheHits,
			Commits,
			Splits,
			Regressions,
			BestScore,
			Whiskers,
			ImproveDuration,
		)
	})
}
