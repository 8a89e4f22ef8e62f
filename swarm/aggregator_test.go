package swarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleSession() *Session {
	return &Session{ID: "swarm-aaaa1111", TargetPath: "src/app"}
}

func TestAggregateHappyPath(t *testing.T) {
	session := sampleSession()
	results := map[string]*ReviewerResult{
		"security": {
			ReviewerType: "security",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{ID: "f1", ReviewerType: "security", Severity: SeverityHigh, Category: "security/injection", Title: "SQL injection in query builder", FilePath: "src/app/db.go", LineStart: 10, LineEnd: 12, HasLineStart: true, HasLineEnd: true},
			},
		},
		"performance": {
			ReviewerType: "performance",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{ID: "f2", ReviewerType: "performance", Severity: SeverityMedium, Category: "performance/n-plus-one", Title: "N+1 query in list handler", FilePath: "src/app/handlers.go", LineStart: 40, HasLineStart: true},
			},
		},
		"style": {
			ReviewerType: "style",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{ID: "f3", ReviewerType: "style", Severity: SeverityLow, Category: "style/naming", Title: "inconsistent receiver name", FilePath: "src/app/handlers.go", LineStart: 5, HasLineStart: true},
			},
		},
	}

	agg := NewAggregator(DefaultConfig())
	report := agg.Aggregate(session, results)

	require.Equal(t, 0, report.DuplicatesRemoved)
	require.Equal(t, 3, report.TotalFindings)
	require.ElementsMatch(t, []string{"performance", "security", "style"}, report.ReviewersCompleted)
	require.Empty(t, report.ReviewersFailed)
	require.Len(t, report.HighFindings, 1)
	require.Len(t, report.MediumFindings, 1)
	require.Len(t, report.LowFindings, 1)
}

func TestAggregatePartialFailureDoesNotAbort(t *testing.T) {
	session := sampleSession()
	results := map[string]*ReviewerResult{
		"security": {
			ReviewerType: "security",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{ID: "f1", ReviewerType: "security", Severity: SeverityCritical, Category: "security", Title: "hardcoded credential", FilePath: "src/app/config.go", LineStart: 1, HasLineStart: true},
			},
		},
		"performance": {
			ReviewerType: "performance",
			Status:       ReviewFailed,
			ErrorMessage: "reviewer process timed out",
		},
	}

	agg := NewAggregator(DefaultConfig())
	report := agg.Aggregate(session, results)

	require.Equal(t, []string{"security"}, report.ReviewersCompleted)
	require.Equal(t, []string{"performance"}, report.ReviewersFailed)
	require.Equal(t, 1, report.TotalFindings)
	require.Len(t, report.CriticalFindings, 1)
}

func TestAggregateDeduplicatesOverlappingFindings(t *testing.T) {
	session := sampleSession()
	results := map[string]*ReviewerResult{
		"security": {
			ReviewerType: "security",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{
					ID: "f1", ReviewerType: "security", Severity: SeverityHigh, Category: "security/injection",
					Title: "possible SQL injection in query builder", Description: "user input reaches query string unescaped",
					FilePath: "src/app/db.go", LineStart: 10, LineEnd: 18, HasLineStart: true, HasLineEnd: true, Confidence: 0.7,
				},
			},
		},
		"style": {
			ReviewerType: "style",
			Status:       ReviewSuccess,
			Findings: []ReviewFinding{
				{
					ID: "f2", ReviewerType: "style", Severity: SeverityLow, Category: "security/injection",
					Title: "possible sql injection in query builder!", Description: "string concatenation used to build query",
					FilePath: "src/app/db.go", LineStart: 12, LineEnd: 14, HasLineStart: true, HasLineEnd: true, Confidence: 0.9,
				},
			},
		},
	}

	agg := NewAggregator(DefaultConfig())
	report := agg.Aggregate(session, results)

	require.Equal(t, 1, report.DuplicatesRemoved)
	require.Equal(t, 1, report.TotalFindings)
	require.Len(t, report.HighFindings, 1)

	merged := report.HighFindings[0]
	require.Equal(t, SeverityHigh, merged.Severity)
	require.Equal(t, 10, merged.LineStart)
	require.Equal(t, 18, merged.LineEnd)
	reviewers := splitReviewerTypes(merged.ReviewerType)
	require.ElementsMatch(t, []string{"security", "style"}, reviewers)
	require.Equal(t, 0.9, merged.Confidence)
	require.Contains(t, report.FindingsByReviewer, "security")
	require.Contains(t, report.FindingsByReviewer, "style")
}

func TestIsDuplicateRequiresLineOverlap(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	f1 := ReviewFinding{FilePath: "a.go", Category: "x", Title: "same title", LineStart: 1, LineEnd: 5, HasLineStart: true, HasLineEnd: true}
	f2 := ReviewFinding{FilePath: "a.go", Category: "x", Title: "same title", LineStart: 10, LineEnd: 15, HasLineStart: true, HasLineEnd: true}
	require.False(t, agg.isDuplicate(f1, f2))
}

func TestIsDuplicateRequiresSameFile(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	f1 := ReviewFinding{FilePath: "a.go", Category: "x", Title: "t", LineStart: 1, HasLineStart: true}
	f2 := ReviewFinding{FilePath: "b.go", Category: "x", Title: "t", LineStart: 1, HasLineStart: true}
	require.False(t, agg.isDuplicate(f1, f2))
}
