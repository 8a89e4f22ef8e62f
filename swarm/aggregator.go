package swarm

import (
	"sort"
	"time"
)

// Aggregator is ResultAggregator: dedupe, merge, severity sort,
// statistics, spec §4.9. Grounded literally on
// original_source/src/workers/swarm/aggregator.py (aggregate,
// _detect_duplicates, _is_duplicate, _merge_findings, _lines_overlap,
// _text_similarity). Every branch below mirrors a specific step of that
// file, including its exact base-selection tie-break and the union-of-
// reviewer-types/min-start/max-end merge rules.
type Aggregator struct {
	cfg *Config
}

func NewAggregator(cfg *Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate implements spec §4.9 steps 1-7.
func (a *Aggregator) Aggregate(session *Session, results map[string]*ReviewerResult) *UnifiedReport {
	var allFindings []ReviewFinding
	var completed, failed []string

	for reviewerType, result := range results {
		if result.Status == ReviewSuccess {
			completed = append(completed, reviewerType)
			allFindings = append(allFindings, result.Findings...)
		} else {
			failed = append(failed, reviewerType)
		}
	}
	sort.Strings(completed)
	sort.Strings(failed)

	unique, duplicatesRemoved := a.detectDuplicates(allFindings)

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Severity.order() < unique[j].Severity.order()
	})

	report := &UnifiedReport{
		SwarmID:            session.ID,
		TargetPath:         session.TargetPath,
		CreatedAt:          time.Now().UTC(),
		ReviewersCompleted: completed,
		ReviewersFailed:    failed,
		TotalFindings:      len(unique),
		FindingsByReviewer: map[string]int{},
		FindingsByCategory: map[string]int{},
		DuplicatesRemoved:  duplicatesRemoved,
	}

	for _, f := range unique {
		switch f.Severity {
		case SeverityCritical:
			report.CriticalFindings = append(report.CriticalFindings, f)
		case SeverityHigh:
			report.HighFindings = append(report.HighFindings, f)
		case SeverityMedium:
			report.MediumFindings = append(report.MediumFindings, f)
		case SeverityLow:
			report.LowFindings = append(report.LowFindings, f)
		case SeverityInfo:
			report.InfoFindings = append(report.InfoFindings, f)
		}
		for _, reviewer := range splitReviewerTypes(f.ReviewerType) {
			report.FindingsByReviewer[reviewer]++
		}
		report.FindingsByCategory[f.Category]++
	}

	return report
}

// detectDuplicates implements _detect_duplicates: pairwise-sequential
// comparison against the running unique set, merging into the first match.
func (a *Aggregator) detectDuplicates(findings []ReviewFinding) ([]ReviewFinding, int) {
	if len(findings) == 0 {
		return nil, 0
	}

	var unique []ReviewFinding
	removed := 0

	for _, finding := range findings {
		merged := false
		for i, existing := range unique {
			if a.isDuplicate(finding, existing) {
				unique[i] = a.mergeFindings(existing, finding)
				removed++
				merged = true
				break
			}
		}
		if !merged {
			unique = append(unique, finding)
		}
	}

	return unique, removed
}

// isDuplicate implements _is_duplicate's four gates in order.
func (a *Aggregator) isDuplicate(f1, f2 ReviewFinding) bool {
	if f1.FilePath != f2.FilePath {
		return false
	}
	if !linesOverlap(f1, f2) {
		return false
	}
	if f1.Category != "" && f2.Category != "" {
		if f1.RootCategory() != f2.RootCategory() {
			return false
		}
	}
	return sequenceRatio(f1.Title, f2.Title) >= a.cfg.DuplicateSimilarityThreshold
}

// linesOverlap implements _lines_overlap: missing start on either side
// means "not a duplicate"; missing end is treated as a single-line range.
func linesOverlap(f1, f2 ReviewFinding) bool {
	if !f1.HasLineStart || !f2.HasLineStart {
		return false
	}
	e1 := f1.LineStart
	if f1.HasLineEnd {
		e1 = f1.LineEnd
	}
	e2 := f2.LineStart
	if f2.HasLineEnd {
		e2 = f2.LineEnd
	}
	return !(e1 < f2.LineStart || e2 < f1.LineStart)
}

// mergeFindings implements _merge_findings, including its literal
// severity-order "<=" tie-break (lower order value, i.e. more severe,
// wins as base; f1 wins ties).
func (a *Aggregator) mergeFindings(f1, f2 ReviewFinding) ReviewFinding {
	var base, other ReviewFinding
	if f1.Severity.order() <= f2.Severity.order() {
		base, other = f1, f2
	} else {
		base, other = f2, f1
	}

	reviewers := map[string]struct{}{}
	for _, r := range splitReviewerTypes(base.ReviewerType) {
		reviewers[r] = struct{}{}
	}
	for _, r := range splitReviewerTypes(other.ReviewerType) {
		reviewers[r] = struct{}{}
	}
	mergedReviewerType := joinSortedSet(reviewers)

	lineStart, hasStart := mergedLineStart(f1, f2)
	lineEnd, hasEnd := mergedLineEnd(f1, f2)

	return ReviewFinding{
		ID:             base.ID,
		ReviewerType:   mergedReviewerType,
		Severity:       base.Severity,
		Category:       base.Category,
		Title:          base.Title,
		Description:    base.Description + "\n\n---\n\n" + other.Description,
		FilePath:       base.FilePath,
		LineStart:      lineStart,
		HasLineStart:   hasStart,
		LineEnd:        lineEnd,
		HasLineEnd:     hasEnd,
		CodeSnippet:    base.CodeSnippet,
		Recommendation: base.Recommendation,
		Confidence:     maxFloat(base.Confidence, other.Confidence),
	}
}

// mergedLineStart ports the zero-fallback quirk in _merge_findings: min of
// both starts (treating an absent start as 0), but if that min is 0, fall
// back to whichever side actually had a start.
func mergedLineStart(f1, f2 ReviewFinding) (int, bool) {
	s1, s2 := 0, 0
	if f1.HasLineStart {
		s1 = f1.LineStart
	}
	if f2.HasLineStart {
		s2 = f2.LineStart
	}
	start := minInt(s1, s2)
	if start == 0 {
		if f1.HasLineStart {
			return f1.LineStart, true
		}
		if f2.HasLineStart {
			return f2.LineStart, true
		}
		return 0, false
	}
	return start, true
}

func mergedLineEnd(f1, f2 ReviewFinding) (int, bool) {
	e1, e2 := 0, 0
	if f1.HasLineEnd {
		e1 = f1.LineEnd
	}
	if f2.HasLineEnd {
		e2 = f2.LineEnd
	}
	if e1 == 0 && e2 == 0 {
		return 0, false
	}
	return maxInt(e1, e2), true
}

func splitReviewerTypes(s string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ',' && s[i+1] == ' ' {
			out = append(out, s[start:i])
			start = i + 2
			i++
		}
	}
	out = append(out, s[start:])
	return out
}

func joinSortedSet(set map[string]struct{}) string {
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)
	joined := ""
	for i, item := range items {
		if i > 0 {
			joined += ", "
		}
		joined += item
	}
	return joined
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
