// Package report assembles classification results into the dashboard's
// JSON report and writes it atomically.
package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

// Assemble merges result lists into one report ordered by
// (job, suite, case). Duplicate identities and non-terminal patterns are
// invariant violations: they are logged, not fatal, and duplicates keep
// their first occurrence.
func Assemble(logger *logging.Logger, lists ...[]model.ClassificationResult) []model.ReportEntry {
	seen := make(map[model.TestIdentity]bool)
	entries := make([]model.ReportEntry, 0)

	for _, list := range lists {
		for _, r := range list {
			if !r.Pattern.IsTerminal() {
				logger.Warnf("report", "non-terminal pattern %s for %s, rewriting to UNKNOWN", r.Pattern, r.Identity.TestID())
				r.Pattern = model.PatternUnknown
				r.Score = 0.5
			}
			if seen[r.Identity] {
				logger.Warnf("report", "duplicate identity %s/%s dropped", r.Identity.Job, r.Identity.TestID())
				continue
			}
			seen[r.Identity] = true
			entries = append(entries, r.Entry())
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.JobName != b.JobName {
			return a.JobName < b.JobName
		}
		if a.TestSuite != b.TestSuite {
			return a.TestSuite < b.TestSuite
		}
		return a.TestCase < b.TestCase
	})

	return entries
}

// Write serializes the report and writes it atomically. An empty report
// is written as a present-but-empty array so the dashboard never sees a
// missing file.
func Write(path string, entries []model.ReportEntry) error {
	if entries == nil {
		entries = []model.ReportEntry{}
	}
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	content = append(content, '\n')
	return atomicWriteJSON(path, content)
}
