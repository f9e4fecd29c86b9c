package model

// RawSample is a single observation from the metrics backend. Spacing is
// arbitrary and possibly irregular.
type RawSample struct {
	TimestampSeconds int64
	Value            float64
}

// RawSeries is one test's sparse failure-age series as returned by the
// metrics query. Duplicate timestamps are possible and are resolved
// during normalization (worst status wins).
type RawSeries struct {
	Identity TestIdentity
	Samples  []RawSample
}

// NormalizedHistory is a dense, fixed-step failure-age sequence covering
// the lookback window. Value 0 means the test passed at that bucket;
// N > 0 means the test had been failing for N consecutive prior builds.
// Built once per run and immutable thereafter.
type NormalizedHistory struct {
	Identity TestIdentity
	Values   []int
}

// Sum returns the total of all bucket values. A zero sum means the test
// never failed in-window and produces no report line.
func (h NormalizedHistory) Sum() int {
	total := 0
	for _, v := range h.Values {
		total += v
	}
	return total
}
