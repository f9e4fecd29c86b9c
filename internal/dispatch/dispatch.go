// Package dispatch partitions classification work between the local rule
// engine and the delegated AI classifier, and guarantees that every test
// with a failing bucket gets exactly one terminal verdict.
package dispatch

import (
	"context"
	"time"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/classify"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

// AIVerdict is one delegated per-test verdict. Confidence is optional
// and informational only; the score mapping is fixed.
type AIVerdict struct {
	TestID     string
	Pattern    model.Pattern
	Reason     string
	Confidence *float64
}

// BatchClassifier is the delegated classification boundary: one
// synchronous call-and-validate method, substitutable by a test double.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, histories map[string][]int) ([]AIVerdict, error)
}

// Patterns the delegated service may return.
var validAIPatterns = map[model.Pattern]bool{
	model.PatternFlaky:         true,
	model.PatternRegression:    true,
	model.PatternEnvironmental: true,
}

// Dispatcher runs the two-phase classification over a set of normalized
// histories.
type Dispatcher struct {
	classifier BatchClassifier
	batchSize  int
	batchDelay time.Duration
	logger     *logging.Logger
}

func New(classifier BatchClassifier, batchSize int, batchDelay time.Duration, logger *logging.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Dispatcher{
		classifier: classifier,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
	}
}

// Analyze classifies every history with at least one failing bucket.
// Histories that sum to zero are healthy and produce no result. Rule
// verdicts that are terminal resolve locally; AMBIGUOUS entries are
// batched to the delegated classifier. Every submitted identity appears
// exactly once in the returned set, even when a batch call fails.
func (d *Dispatcher) Analyze(ctx context.Context, histories []model.NormalizedHistory) []model.ClassificationResult {
	results := make([]model.ClassificationResult, 0, len(histories))
	var ambiguous []model.NormalizedHistory

	for _, h := range histories {
		if h.Sum() == 0 {
			continue
		}
		v := classify.Run(h.Values)
		if v.Pattern == model.PatternAmbiguous {
			ambiguous = append(ambiguous, h)
			continue
		}
		results = append(results, model.ClassificationResult{
			Identity: h.Identity,
			Pattern:  v.Pattern,
			Score:    v.Score,
			Reason:   v.Reason,
		})
	}

	if len(ambiguous) > 0 {
		d.logger.Infof("dispatch", "delegating %d ambiguous tests in batches of %d", len(ambiguous), d.batchSize)
		results = append(results, d.delegate(ctx, ambiguous)...)
	}

	return results
}

// delegate submits the ambiguous set in fixed-size batches with a
// bounded courtesy pause between submissions.
func (d *Dispatcher) delegate(ctx context.Context, ambiguous []model.NormalizedHistory) []model.ClassificationResult {
	results := make([]model.ClassificationResult, 0, len(ambiguous))

	for start := 0; start < len(ambiguous); start += d.batchSize {
		end := start + d.batchSize
		if end > len(ambiguous) {
			end = len(ambiguous)
		}
		batch := ambiguous[start:end]

		if start > 0 && d.batchDelay > 0 {
			select {
			case <-time.After(d.batchDelay):
			case <-ctx.Done():
				// Run is being cancelled; remaining batches fall back
				// to UNKNOWN below rather than being dropped.
			}
		}

		results = append(results, d.submitBatch(ctx, batch)...)
	}

	return results
}

func (d *Dispatcher) submitBatch(ctx context.Context, batch []model.NormalizedHistory) []model.ClassificationResult {
	payload := make(map[string][]int, len(batch))
	identities := make(map[string]model.TestIdentity, len(batch))
	for _, h := range batch {
		id := h.Identity.TestID()
		payload[id] = h.Values
		identities[id] = h.Identity
	}

	verdicts, err := d.callClassifier(ctx, payload)
	if err != nil {
		d.logger.Errorf("dispatch", "batch of %d failed: %v", len(batch), err)
		return d.failBatch(batch)
	}

	mapped := make(map[string]model.ClassificationResult, len(verdicts))
	for _, v := range verdicts {
		identity, known := identities[v.TestID]
		if !known {
			d.logger.Errorf("dispatch", "batch response names unknown test %q, discarding batch", v.TestID)
			return d.failBatch(batch)
		}
		if !validAIPatterns[v.Pattern] {
			d.logger.Errorf("dispatch", "batch response has invalid pattern %q for %q, discarding batch", v.Pattern, v.TestID)
			return d.failBatch(batch)
		}
		// The mapping to a two-value scale is fixed; the service's own
		// confidence estimate is informational only.
		score := 0.2
		if v.Pattern == model.PatternFlaky {
			score = 0.8
		}
		mapped[v.TestID] = model.ClassificationResult{
			Identity: identity,
			Pattern:  v.Pattern,
			Score:    score,
			Reason:   "AI: " + v.Reason,
		}
	}

	results := make([]model.ClassificationResult, 0, len(batch))
	for _, h := range batch {
		if r, ok := mapped[h.Identity.TestID()]; ok {
			results = append(results, r)
			continue
		}
		d.logger.Warnf("dispatch", "no verdict for %s, marking UNKNOWN", h.Identity.TestID())
		results = append(results, unknownResult(h.Identity))
	}
	return results
}

func (d *Dispatcher) callClassifier(ctx context.Context, payload map[string][]int) ([]AIVerdict, error) {
	if d.classifier == nil {
		return nil, errNoClassifier
	}
	return d.classifier.ClassifyBatch(ctx, payload)
}

// failBatch maps every member of a failed batch to UNKNOWN. This is a
// safety fallback, not a silent drop.
func (d *Dispatcher) failBatch(batch []model.NormalizedHistory) []model.ClassificationResult {
	results := make([]model.ClassificationResult, 0, len(batch))
	for _, h := range batch {
		results = append(results, unknownResult(h.Identity))
	}
	return results
}

func unknownResult(id model.TestIdentity) model.ClassificationResult {
	return model.ClassificationResult{
		Identity: id,
		Pattern:  model.PatternUnknown,
		Score:    0.5,
		Reason:   "AI analysis failed; pattern could not be determined.",
	}
}
