// Package normalize converts sparse failure-age series into dense,
// gap-filled, fixed-step histories covering the lookback window.
package normalize

import (
	"fmt"
	"math"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

// Window is an inclusive time range in unix seconds with a fixed bucket
// width. BucketedStart/BucketedEnd align the requested range outward to
// step multiples.
type Window struct {
	Start int64
	End   int64
	Step  int64
}

// BucketedStart is Start floored to a step multiple.
func (w Window) BucketedStart() int64 {
	return floorDiv(w.Start, w.Step) * w.Step
}

// BucketedEnd is End ceiled to a step multiple.
func (w Window) BucketedEnd() int64 {
	return ceilDiv(w.End, w.Step) * w.Step
}

// BucketCount is the number of step multiples in
// [BucketedStart, BucketedEnd], inclusive of both ends.
func (w Window) BucketCount() int {
	return int((w.BucketedEnd()-w.BucketedStart())/w.Step) + 1
}

// Series normalizes one RawSeries into a NormalizedHistory. Each sample
// is assigned to the bucket covering its timestamp; duplicate buckets
// keep the maximum observed value (a failing state dominates a passing
// one seen in the same interval). Buckets with no sample are imputed to
// 0, i.e. passing. Fractional values truncate toward zero after the
// per-bucket max; negative values pass through unclamped. A series with
// non-finite sample values is rejected so the caller can drop it.
func Series(raw model.RawSeries, w Window) (model.NormalizedHistory, error) {
	if w.Step <= 0 {
		return model.NormalizedHistory{}, fmt.Errorf("normalize %s: step must be positive, got %d", raw.Identity.TestID(), w.Step)
	}
	if w.End < w.Start {
		return model.NormalizedHistory{}, fmt.Errorf("normalize %s: window end %d before start %d", raw.Identity.TestID(), w.End, w.Start)
	}

	start := w.BucketedStart()
	count := w.BucketCount()

	// Per-bucket float max before integer truncation, matching the
	// source's resample-then-cast order.
	observed := make([]bool, count)
	maxima := make([]float64, count)
	for _, s := range raw.Samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return model.NormalizedHistory{}, fmt.Errorf("normalize %s: non-finite sample value at t=%d", raw.Identity.TestID(), s.TimestampSeconds)
		}
		idx := floorDiv(s.TimestampSeconds, w.Step) - start/w.Step
		if idx < 0 || idx >= int64(count) {
			continue // outside the window
		}
		if !observed[idx] || s.Value > maxima[idx] {
			observed[idx] = true
			maxima[idx] = s.Value
		}
	}

	values := make([]int, count)
	for i := range values {
		if observed[i] {
			values[i] = int(maxima[i])
		}
	}

	return model.NormalizedHistory{Identity: raw.Identity, Values: values}, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
