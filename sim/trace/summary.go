package trace

// TraceSummary aggregates statistics from a SearchTrace.
type TraceSummary struct {
	Evaluations       int
	TotalCommits      int
	ImprovingCommits  int
	MeanGain          float64 // mean Score-Previous over improving commits
	MaxGain           float64
	CandidatesScored  int // candidates that needed a simulation
	CacheHitRate      float64
	Splits            int
	Reverts           int
	GenerationCommits map[uint]int // generation → commits made in it
}

// Summarize computes aggregate statistics from a SearchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SearchTrace) *TraceSummary {
	summary := &TraceSummary{
		GenerationCommits: make(map[uint]int),
	}
	if st == nil {
		return summary
	}

	summary.Evaluations = len(st.Evaluations)
	summary.TotalCommits = len(st.Commits)
	summary.Splits = len(st.Splits)

	totalGain := 0.0
	candidates, hits := 0, 0
	for _, c := range st.Commits {
		summary.GenerationCommits[c.Generation]++
		candidates += c.Candidates
		hits += c.CacheHits
		if !c.Improved {
			continue
		}
		summary.ImprovingCommits++
		gain := c.Score - c.Previous
		totalGain += gain
		if gain > summary.MaxGain {
			summary.MaxGain = gain
		}
	}
	if summary.ImprovingCommits > 0 {
		summary.MeanGain = totalGain / float64(summary.ImprovingCommits)
	}
	summary.CandidatesScored = candidates - hits
	if candidates > 0 {
		summary.CacheHitRate = float64(hits) / float64(candidates)
	}

	for _, g := range st.Guards {
		if g.Reverted {
			summary.Reverts++
		}
	}

	return summary
}
