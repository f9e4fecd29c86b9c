package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

func TestComputeMetrics(t *testing.T) {
	testCases := []struct {
		name     string
		values   []int
		expected Metrics
	}{
		{
			name:     "oscillating",
			values:   []int{0, 0, 1, 2, 0, 1, 0},
			expected: Metrics{Current: 0, MaxStreak: 2, Transitions: 4, FailureRate: 3.0 / 7.0},
		},
		{
			name:     "climbing streak",
			values:   []int{0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
			expected: Metrics{Current: 13, MaxStreak: 13, Transitions: 1, FailureRate: 13.0 / 15.0},
		},
		{
			name:     "constant failure",
			values:   []int{25, 25, 25, 25},
			expected: Metrics{Current: 25, MaxStreak: 25, Transitions: 0, FailureRate: 1.0},
		},
		{
			name:     "single element",
			values:   []int{4},
			expected: Metrics{Current: 4, MaxStreak: 4, Transitions: 0, FailureRate: 1.0},
		},
		{
			name:     "empty",
			values:   nil,
			expected: Metrics{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ComputeMetrics(tc.values))
		})
	}
}

func TestRun_DecisionTable(t *testing.T) {
	testCases := []struct {
		name            string
		values          []int
		expectedPattern model.Pattern
		expectedScore   float64
	}{
		{
			// Scenario A: 4 flips fire the oscillation rule.
			name:            "oscillation means flaky",
			values:          []int{0, 0, 1, 2, 0, 1, 0},
			expectedPattern: model.PatternFlaky,
			expectedScore:   1.0,
		},
		{
			// Scenario B: long current streak, too few transitions for rule 2.
			name:            "active long streak means regression",
			values:          []int{0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
			expectedPattern: model.PatternRegression,
			expectedScore:   0.05,
		},
		{
			// Scenario C: 100% failure rate regardless of magnitude.
			name:            "constant failure means environmental",
			values:          []int{25, 25, 25, 25},
			expectedPattern: model.PatternEnvironmental,
			expectedScore:   0.0,
		},
		{
			// Scenario D: rate 1/7 in (0, 0.3), currently passing.
			name:            "sporadic failure means flaky with rate bonus",
			values:          []int{0, 0, 0, 1, 0, 0, 0},
			expectedPattern: model.PatternFlaky,
			expectedScore:   0.7 + 1.0/7.0,
		},
		{
			name:            "short recovered burst means flaky",
			values:          []int{1, 2, 3, 0, 0, 0, 0, 0, 0, 0},
			expectedPattern: model.PatternFlaky,
			expectedScore:   0.9,
		},
		{
			name:            "long recovered streak means fixed",
			values:          []int{1, 2, 3, 4, 5, 6, 7, 0, 0, 0},
			expectedPattern: model.PatternFixed,
			expectedScore:   0.1,
		},
		{
			name:            "short current streak defers to fallback",
			values:          []int{0, 0, 0, 0, 1, 2, 3},
			expectedPattern: model.PatternAmbiguous,
			expectedScore:   0.6,
		},
		{
			name:            "single failing element is environmental",
			values:          []int{5},
			expectedPattern: model.PatternEnvironmental,
			expectedScore:   0.0,
		},
		{
			name:            "single passing element is flaky cluster",
			values:          []int{0},
			expectedPattern: model.PatternFlaky,
			expectedScore:   0.9,
		},
		{
			name:            "empty sequence defers to fallback",
			values:          nil,
			expectedPattern: model.PatternAmbiguous,
			expectedScore:   0.6,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Run(tc.values)
			assert.Equal(t, tc.expectedPattern, v.Pattern)
			assert.InDelta(t, tc.expectedScore, v.Score, 1e-9)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestRun_EnvironmentalBeatsEverything(t *testing.T) {
	// Rate 1.0 wins even for shapes that would oscillate or climb.
	for _, values := range [][]int{
		{1, 1, 1},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{7},
		{25, 25, 25, 25},
	} {
		v := Run(values)
		require.Equal(t, model.PatternEnvironmental, v.Pattern, "values %v", values)
		require.Equal(t, 0.0, v.Score)
	}
}

func TestRun_OscillationBeatsStreakRules(t *testing.T) {
	// transitions >= 3 takes strict priority over the FIXED/REGRESSION
	// rules even with maxStreak > 6 or a long current streak.
	values := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 0, 1, 0, 0}
	m := ComputeMetrics(values)
	require.GreaterOrEqual(t, m.Transitions, 3)
	require.Greater(t, m.MaxStreak, 6)

	v := Run(values)
	assert.Equal(t, model.PatternFlaky, v.Pattern)
	assert.Equal(t, 1.0, v.Score)
}

func TestRun_SporadicScoreClamped(t *testing.T) {
	// Rule 3's score is 0.7 + failureRate, clamped to 1.0. Rates close
	// to 0.3 stay below the clamp so the score tracks the rate.
	values := []int{0, 1, 0, 0, 0, 0, 0, 0, 0, 0}
	v := Run(values)
	require.Equal(t, model.PatternFlaky, v.Pattern)
	assert.LessOrEqual(t, v.Score, 1.0)
	assert.InDelta(t, 0.8, v.Score, 1e-9)
}
