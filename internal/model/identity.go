package model

import "strings"

// TestIDSeparator joins suite and case into the opaque test identifier
// used as the series key and in classification batch payloads.
const TestIDSeparator = "::"

// TestIdentity is the report's primary key. Job is empty when
// job-scoping is unused.
type TestIdentity struct {
	Job   string
	Suite string
	Case  string
}

// ParseTestID splits a "suite::case" identifier. When the separator is
// absent the whole string becomes the suite and the case is "Unknown".
func ParseTestID(job, testID string) TestIdentity {
	parts := strings.SplitN(testID, TestIDSeparator, 2)
	id := TestIdentity{Job: job, Suite: parts[0], Case: "Unknown"}
	if len(parts) > 1 {
		id.Case = parts[1]
	}
	return id
}

// TestID returns the "suite::case" form of the identity.
func (t TestIdentity) TestID() string {
	return t.Suite + TestIDSeparator + t.Case
}
