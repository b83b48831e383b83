package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every evaluation, commit, split and guard decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SearchTrace collects decision records during policy search. It is not safe
// for concurrent use; the search records from a single goroutine.
type SearchTrace struct {
	Config      TraceConfig
	Evaluations []EvaluationRecord
	Commits     []CommitRecord
	Splits      []SplitRecord
	Guards      []GuardRecord
}

// NewSearchTrace creates a SearchTrace ready for recording.
func NewSearchTrace(config TraceConfig) *SearchTrace {
	return &SearchTrace{
		Config:      config,
		Evaluations: make([]EvaluationRecord, 0),
		Commits:     make([]CommitRecord, 0),
		Splits:      make([]SplitRecord, 0),
		Guards:      make([]GuardRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on a nil trace.
func (st *SearchTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordEvaluation appends an evaluation record.
func (st *SearchTrace) RecordEvaluation(record EvaluationRecord) {
	if st.Enabled() {
		st.Evaluations = append(st.Evaluations, record)
	}
}

// RecordCommit appends a commit record.
func (st *SearchTrace) RecordCommit(record CommitRecord) {
	if st.Enabled() {
		st.Commits = append(st.Commits, record)
	}
}

// RecordSplit appends a split record.
func (st *SearchTrace) RecordSplit(record SplitRecord) {
	if st.Enabled() {
		st.Splits = append(st.Splits, record)
	}
}

// RecordGuard appends a guard record.
func (st *SearchTrace) RecordGuard(record GuardRecord) {
	if st.Enabled() {
		st.Guards = append(st.Guards, record)
	}
}
