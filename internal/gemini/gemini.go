// Package gemini implements the delegated classification boundary on the
// Gemini API: one schema-constrained request per batch of ambiguous tests.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/dispatch"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
)

const defaultModel = "gemini-2.0-flash"

// Classifier sends ambiguous failure-age histories to Gemini and parses
// the schema-constrained verdict array.
type Classifier struct {
	client *genai.Client
	model  string
	logger *logging.Logger
}

func New(ctx context.Context, apiKey, model string, logger *logging.Logger) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api_key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Classifier{client: client, model: model, logger: logger}, nil
}

// verdictSchema constrains the response to a JSON array of per-test verdicts.
var verdictSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"test_id":    {Type: genai.TypeString},
			"pattern":    {Type: genai.TypeString, Enum: []string{"FLAKY", "REGRESSION", "ENVIRONMENTAL"}},
			"reason":     {Type: genai.TypeString},
			"confidence": {Type: genai.TypeNumber},
		},
		Required: []string{"test_id", "pattern", "reason"},
	},
}

// ClassifyBatch submits one batch and returns its verdicts. Any
// transport or schema failure is returned as an error; the dispatcher
// owns the per-batch UNKNOWN fallback.
func (c *Classifier) ClassifyBatch(ctx context.Context, histories map[string][]int) ([]dispatch.AIVerdict, error) {
	prompt, err := BuildPrompt(histories)
	if err != nil {
		return nil, err
	}

	c.logger.Debugf("gemini", "classifying batch of %d tests with model %s", len(histories), c.model)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	return ParseVerdicts([]byte(resp.Text()))
}

// BuildPrompt renders the instructions, the value legend, the decision
// rubric, and the JSON-encoded history mapping for one batch.
func BuildPrompt(histories map[string][]int) (string, error) {
	encoded, err := json.Marshal(histories)
	if err != nil {
		return "", fmt.Errorf("encode batch payload: %w", err)
	}
	return fmt.Sprintf(`You are a CI reliability analyst. Classify each test's failure pattern.

Each test maps to a per-build failure-age sequence, oldest build first.
Value legend: 0 = the test passed at that build; N > 0 = the test had
been failing for N consecutive builds.

Rubric:
- Oscillation between passing and failing means FLAKY.
- Short, bounded failure bursts that recover mean FLAKY.
- Long or sustained climbing streaks mean REGRESSION.
- A frozen non-zero constant value means ENVIRONMENTAL.

Return a JSON array with one object per test:
{"test_id": "<key from the input>", "pattern": "FLAKY"|"REGRESSION"|"ENVIRONMENTAL", "reason": "<one sentence>", "confidence": <0..1>}

Test histories:
%s`, encoded), nil
}

type verdictItem struct {
	TestID     string   `json:"test_id"`
	Pattern    string   `json:"pattern"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

// ParseVerdicts decodes a verdict array. Malformed JSON or entries
// missing required fields are schema violations.
func ParseVerdicts(data []byte) ([]dispatch.AIVerdict, error) {
	var items []verdictItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	verdicts := make([]dispatch.AIVerdict, 0, len(items))
	for _, item := range items {
		if item.TestID == "" || item.Pattern == "" {
			return nil, fmt.Errorf("gemini response entry missing test_id or pattern")
		}
		verdicts = append(verdicts, dispatch.AIVerdict{
			TestID:     item.TestID,
			Pattern:    model.Pattern(item.Pattern),
			Reason:     item.Reason,
			Confidence: item.Confidence,
		})
	}
	return verdicts, nil
}
