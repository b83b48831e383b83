// Package trace provides decision-trace recording for policy search analysis.
// This package has no dependencies on sim/ or its subpackages; it stores pure data types.
package trace

// EvaluationRecord captures one evaluation of the working tree at the start of
// an outer search iteration.
type EvaluationRecord struct {
	Generation uint
	Seed       int64
	Score      float64
	Leaves     int
}

// CommitRecord captures the end of one local-search round: the best candidate
// found and whether it beat the evaluation score.
type CommitRecord struct {
	Generation uint
	Whisker    string // winning candidate
	Previous   float64
	Score      float64
	Improved   bool // Score > Previous; unimproved winners are still committed
	Candidates int  // candidates considered across both phases
	CacheHits  int  // candidates answered from the search cache
}

// SplitRecord captures a structural split.
type SplitRecord struct {
	Generation uint
	Whisker    string // bisected whisker
	Children   int
	Skipped    int // unbisectable whiskers promoted before a split was found
}

// GuardRecord captures the careful comparison that closes an improvement step.
type GuardRecord struct {
	Seed     int64
	OldScore float64
	NewScore float64
	Reverted bool // true if OldScore >= NewScore and the old tree was restored
}
