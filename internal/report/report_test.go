package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

func result(job, suite, tc string, pattern model.Pattern, score float64) model.ClassificationResult {
	return model.ClassificationResult{
		Identity: model.TestIdentity{Job: job, Suite: suite, Case: tc},
		Pattern:  pattern,
		Score:    score,
		Reason:   "reason",
	}
}

func TestAssemble_MergesAndSorts(t *testing.T) {
	phase1 := []model.ClassificationResult{
		result("jobB", "s2", "c1", model.PatternFlaky, 0.9),
		result("jobA", "s1", "c2", model.PatternRegression, 0.05),
	}
	phase2 := []model.ClassificationResult{
		result("jobA", "s1", "c1", model.PatternUnknown, 0.5),
	}

	entries := Assemble(testLogger(), phase1, phase2)

	require.Len(t, entries, 3)
	assert.Equal(t, "jobA", entries[0].JobName)
	assert.Equal(t, "c1", entries[0].TestCase)
	assert.Equal(t, "c2", entries[1].TestCase)
	assert.Equal(t, "jobB", entries[2].JobName)
}

func TestAssemble_DuplicateIdentityKeepsFirst(t *testing.T) {
	entries := Assemble(testLogger(),
		[]model.ClassificationResult{result("j", "s", "c", model.PatternFlaky, 0.9)},
		[]model.ClassificationResult{result("j", "s", "c", model.PatternUnknown, 0.5)},
	)

	require.Len(t, entries, 1)
	assert.Equal(t, "FLAKY", entries[0].FailurePattern)
}

func TestAssemble_NonTerminalRewrittenToUnknown(t *testing.T) {
	entries := Assemble(testLogger(), []model.ClassificationResult{
		result("j", "s", "c", model.PatternAmbiguous, 0.6),
	})

	require.Len(t, entries, 1)
	assert.Equal(t, "UNKNOWN", entries[0].FailurePattern)
	assert.Equal(t, 0.5, entries[0].FlakinessScore)
}

func TestWrite_ReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	entries := []model.ReportEntry{
		{
			JobName:        "nightly",
			TestSuite:      "auth",
			TestCase:       "login",
			FlakinessScore: 0.9,
			FailurePattern: "FLAKY",
			Reasoning:      "CLUSTER: Failed 2 times then recovered.",
		},
	}

	require.NoError(t, Write(path, entries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []model.ReportEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, entries, decoded)
}

func TestWrite_EmptyReportIsPresentEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data[:2]))

	var decoded []model.ReportEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}

func TestWrite_OverwriteKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	first := []model.ReportEntry{{JobName: "a", TestSuite: "s", TestCase: "c", FailurePattern: "FLAKY"}}
	require.NoError(t, Write(path, first))
	require.NoError(t, Write(path, nil))

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	var decoded []model.ReportEntry
	require.NoError(t, json.Unmarshal(bak, &decoded))
	assert.Equal(t, first, decoded)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(current, &decoded))
	assert.Empty(t, decoded)
}

func TestWrite_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, "report.json"), nil))

	matches, err := filepath.Glob(filepath.Join(dir, ".flaky-report-tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
