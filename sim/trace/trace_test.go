package trace

import (
	"testing"
)

func TestSearchTrace_RecordCommit_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSearchTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a commit record is recorded
	st.RecordCommit(CommitRecord{
		Generation: 2,
		Whisker:    "[w]",
		Previous:   -3.5,
		Score:      -3.1,
		Improved:   true,
		Candidates: 12,
		CacheHits:  1,
	})

	// THEN the trace contains one commit record with correct data
	if len(st.Commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(st.Commits))
	}
	if st.Commits[0].Generation != 2 {
		t.Errorf("expected generation 2, got %d", st.Commits[0].Generation)
	}
	if !st.Commits[0].Improved {
		t.Error("expected improved=true")
	}
}

func TestSearchTrace_LevelNone_DropsRecords(t *testing.T) {
	// GIVEN a trace with tracing disabled
	st := NewSearchTrace(TraceConfig{Level: TraceLevelNone})

	// WHEN records of every kind are offered
	st.RecordEvaluation(EvaluationRecord{Score: 1})
	st.RecordCommit(CommitRecord{Score: 1})
	st.RecordSplit(SplitRecord{Children: 2})
	st.RecordGuard(GuardRecord{Reverted: true})

	// THEN nothing is kept
	if len(st.Evaluations)+len(st.Commits)+len(st.Splits)+len(st.Guards) != 0 {
		t.Error("expected no records at level none")
	}
}

func TestSearchTrace_NilTrace_IsSafe(t *testing.T) {
	// GIVEN no trace at all
	var st *SearchTrace

	// WHEN records are offered
	st.RecordCommit(CommitRecord{})
	st.RecordGuard(GuardRecord{})

	// THEN nothing panics and the trace reports disabled
	if st.Enabled() {
		t.Error("nil trace must not be enabled")
	}
}

func TestSearchTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	st := NewSearchTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN multiple records are added
	st.RecordEvaluation(EvaluationRecord{Generation: 0, Score: -4})
	st.RecordEvaluation(EvaluationRecord{Generation: 1, Score: -3})
	st.RecordSplit(SplitRecord{Generation: 4, Whisker: "a", Children: 2})
	st.RecordSplit(SplitRecord{Generation: 8, Whisker: "b", Children: 2, Skipped: 1})

	// THEN order is preserved within each record type
	if st.Evaluations[0].Score != -4 || st.Evaluations[1].Score != -3 {
		t.Error("evaluation order not preserved")
	}
	if st.Splits[0].Whisker != "a" || st.Splits[1].Whisker != "b" {
		t.Error("split order not preserved")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"detailed", false},
		{"invalid", false},
	}
	for _, tc := range tests {
		if got := IsValidTraceLevel(tc.level); got != tc.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tc.level, got, tc.valid)
		}
	}
}
