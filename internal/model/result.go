package model

// Pattern is a failure-pattern label. PatternAmbiguous is transient: it
// marks a rule-engine decline and must be replaced by a terminal pattern
// before the report is assembled.
type Pattern string

const (
	PatternFlaky         Pattern = "FLAKY"
	PatternRegression    Pattern = "REGRESSION"
	PatternEnvironmental Pattern = "ENVIRONMENTAL"
	PatternFixed         Pattern = "FIXED"
	PatternAmbiguous     Pattern = "AMBIGUOUS"
	PatternUnknown       Pattern = "UNKNOWN"
)

var terminalPatterns = map[Pattern]bool{
	PatternFlaky:         true,
	PatternRegression:    true,
	PatternEnvironmental: true,
	PatternFixed:         true,
	PatternUnknown:       true,
}

// IsTerminal reports whether p may appear in a final report.
func (p Pattern) IsTerminal() bool {
	return terminalPatterns[p]
}

// ClassificationResult is one test's verdict: a pattern, a confidence
// score in [0,1], and a human-readable reason.
type ClassificationResult struct {
	Identity TestIdentity
	Pattern  Pattern
	Score    float64
	Reason   string
}

// ReportEntry is the report sink's JSON shape, one object per test.
type ReportEntry struct {
	JobName        string  `json:"job_name"`
	TestSuite      string  `json:"test_suite"`
	TestCase       string  `json:"test_case"`
	FlakinessScore float64 `json:"flakiness_score"`
	FailurePattern string  `json:"failure_pattern"`
	Reasoning      string  `json:"reasoning"`
}

// Entry converts a result to its report sink shape.
func (r ClassificationResult) Entry() ReportEntry {
	return ReportEntry{
		JobName:        r.Identity.Job,
		TestSuite:      r.Identity.Suite,
		TestCase:       r.Identity.Case,
		FlakinessScore: r.Score,
		FailurePattern: string(r.Pattern),
		Reasoning:      r.Reason,
	}
}
