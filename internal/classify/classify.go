// Package classify implements the deterministic rule engine over one
// normalized failure-age history.
package classify

import (
	"fmt"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

// Verdict is a rule-engine outcome before it is attached to an identity.
type Verdict struct {
	Pattern model.Pattern
	Score   float64
	Reason  string
}

// Metrics are the derived quantities the decision table is evaluated on,
// computed once per history.
type Metrics struct {
	Current     int     // failure age at the most recent bucket
	MaxStreak   int     // worst consecutive-failure run in-window
	Transitions int     // pass/fail boundary crossings
	FailureRate float64 // fraction of buckets with a non-zero value
}

// ComputeMetrics derives the decision inputs from a value sequence.
func ComputeMetrics(values []int) Metrics {
	var m Metrics
	if len(values) == 0 {
		return m
	}
	m.Current = values[len(values)-1]

	failing := 0
	for _, v := range values {
		if v > m.MaxStreak {
			m.MaxStreak = v
		}
		if v > 0 {
			failing++
		}
	}
	m.FailureRate = float64(failing) / float64(len(values))

	for i := 1; i < len(values); i++ {
		if (values[i-1] > 0) != (values[i] > 0) {
			m.Transitions++
		}
	}
	return m
}

// Run applies the decision table top to bottom, first match wins. The
// order is significant: a sequence with many transitions is flaky even
// when its streaks would otherwise read as a regression. The AMBIGUOUS
// fallthrough is never a terminal output; callers must route it to the
// delegated classification phase.
func Run(values []int) Verdict {
	if len(values) == 0 {
		// Defensive: the dispatcher filters all-zero histories before
		// classification, so an empty sequence carries no signal.
		return Verdict{Pattern: model.PatternAmbiguous, Score: 0.6, Reason: "Suspicious failure pattern."}
	}

	m := ComputeMetrics(values)

	// Rule 1: never recovered in-window. Broken infrastructure, not flakiness.
	if m.FailureRate == 1.0 {
		return Verdict{
			Pattern: model.PatternEnvironmental,
			Score:   0.0,
			Reason:  "INFRA: Test has 100% failure rate.",
		}
	}

	// Rule 2: frequent oscillation is the strongest flaky signal.
	if m.Transitions >= 3 {
		return Verdict{
			Pattern: model.PatternFlaky,
			Score:   1.0,
			Reason:  fmt.Sprintf("OSCILLATION: Flipped state %d times.", m.Transitions),
		}
	}

	// Rule 3: rare-but-present failures, currently passing.
	if m.Current == 0 && m.FailureRate > 0 && m.FailureRate < 0.3 {
		score := 0.7 + m.FailureRate
		if score > 1.0 {
			score = 1.0
		}
		return Verdict{
			Pattern: model.PatternFlaky,
			Score:   score,
			Reason:  fmt.Sprintf("SPORADIC: Low failure rate (%.1f%%) but unstable.", m.FailureRate*100),
		}
	}

	// Rule 4: short failure burst that recovered.
	if m.Current == 0 && m.MaxStreak <= 3 {
		return Verdict{
			Pattern: model.PatternFlaky,
			Score:   0.9,
			Reason:  fmt.Sprintf("CLUSTER: Failed %d times then recovered.", m.MaxStreak),
		}
	}

	// Rule 5: long historical run, now recovered.
	if m.Current == 0 && m.MaxStreak > 6 {
		return Verdict{
			Pattern: model.PatternFixed,
			Score:   0.1,
			Reason:  fmt.Sprintf("FIXED: Was broken for %d builds, now fixed.", m.MaxStreak),
		}
	}

	// Rule 6: currently failing with a long streak, systemic.
	if m.Current >= 6 {
		return Verdict{
			Pattern: model.PatternRegression,
			Score:   0.05,
			Reason:  fmt.Sprintf("ACTIVE: Broken for %d consecutive builds.", m.Current),
		}
	}

	// Short current failure streak not otherwise classified.
	return Verdict{Pattern: model.PatternAmbiguous, Score: 0.6, Reason: "Suspicious failure pattern."}
}
