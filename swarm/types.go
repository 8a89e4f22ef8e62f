package swarm

import "time"

// Status is a SwarmSession's lifecycle state, spec §3.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusAggregating Status = "AGGREGATING"
	StatusComplete    Status = "COMPLETE"
	StatusFailed      Status = "FAILED"
)

// ReviewStatus is a single reviewer task's outcome, spec §3 "ReviewerResult".
type ReviewStatus string

const (
	ReviewSuccess ReviewStatus = "success"
	ReviewFailed  ReviewStatus = "failed"
	ReviewTimeout ReviewStatus = "timeout"
)

// Severity ranks a ReviewFinding, spec §3. Lower Order() is more severe.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityOrder mirrors aggregator.py's literal severity_order dict;
// unknown severities sort last (order 5), matching Python's
// severity_order.get(f.severity, 5).
var severityOrder = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:      1,
	SeverityMedium:    2,
	SeverityLow:       3,
	SeverityInfo:      4,
}

func (s Severity) order() int {
	if v, ok := severityOrder[s]; ok {
		return v
	}
	return 5
}

// Session is SwarmSession, spec §3.
type Session struct {
	ID            string
	TargetPath    string
	Reviewers     []string
	Status        Status
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Results       map[string]*ReviewerResult
	UnifiedReport *UnifiedReport
}

// ReviewerResult is one reviewer's outcome, spec §3.
type ReviewerResult struct {
	ReviewerType    string
	Status          ReviewStatus
	Findings        []ReviewFinding
	DurationSeconds float64
	FilesReviewed   int
	ErrorMessage    string
}

// ReviewFinding is one defect report, spec §3.
type ReviewFinding struct {
	ID             string
	ReviewerType   string
	Severity       Severity
	Category       string
	Title          string
	Description    string
	FilePath       string
	LineStart      int
	LineEnd        int
	HasLineStart   bool
	HasLineEnd     bool
	CodeSnippet    string
	Recommendation string
	Confidence     float64
}

// RootCategory returns the prefix of Category up to (but excluding) the
// first '/', per the glossary's "Root category" definition.
func (f *ReviewFinding) RootCategory() string {
	for i := 0; i < len(f.Category); i++ {
		if f.Category[i] == '/' {
			return f.Category[:i]
		}
	}
	return f.Category
}

// UnifiedReport is the aggregation output, spec §3.
type UnifiedReport struct {
	SwarmID             string
	TargetPath          string
	CreatedAt           time.Time
	ReviewersCompleted  []string
	ReviewersFailed     []string
	CriticalFindings    []ReviewFinding
	HighFindings        []ReviewFinding
	MediumFindings      []ReviewFinding
	LowFindings         []ReviewFinding
	InfoFindings        []ReviewFinding
	TotalFindings       int
	FindingsByReviewer  map[string]int
	FindingsByCategory  map[string]int
	DuplicatesRemoved   int
}
