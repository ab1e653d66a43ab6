// Package sentiment talks to the external inference service.
//
// The classifier itself — a transformer model behind an HTTP endpoint —
// is a black box to this backend: text goes in, a label comes out. This
// package owns the wire format and the remapping of the model's raw
// output classes; the retry/fallback policy lives in the service layer,
// which decides what to do when the collaborator misbehaves.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/sentiment-api/internal/model"
)

// Classifier is the inference collaborator interface. The service layer
// programs against this; tests substitute a fake that returns canned
// labels or errors.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Sentiment, error)
}

// HTTPClassifier calls an inference service over HTTP.
//
// Request:  POST {baseURL}/classify  {"text": "..."}
// Response: 200 {"label": "LABEL_2", "score": 0.98}
//
// The label may be a raw model class (LABEL_0/1/2) or an already-mapped
// name; SentimentFromLabel handles both.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier creates a classifier for the service at baseURL.
//
// The client timeout bounds the whole exchange. Inference is the slowest
// collaborator in the system; without a bound, a hung model server would
// pin request goroutines until the HTTP server's write timeout fires.
func NewHTTPClassifier(baseURL string) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify sends text to the inference service and remaps the returned
// label onto the fixed sentiment enumeration.
//
// An unrecognized label is an error here — the caller owns the decision
// to fall back to NEUTRAL, and it should know the collaborator broke its
// contract rather than silently absorbing it.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (model.Sentiment, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return model.SentimentNeutral, fmt.Errorf("sentiment: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return model.SentimentNeutral, fmt.Errorf("sentiment: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.SentimentNeutral, fmt.Errorf("sentiment: calling inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SentimentNeutral, fmt.Errorf("sentiment: inference service returned status %d", resp.StatusCode)
	}

	var cr classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return model.SentimentNeutral, fmt.Errorf("sentiment: decoding inference response: %w", err)
	}

	s, ok := model.SentimentFromLabel(cr.Label)
	if !ok {
		return model.SentimentNeutral, fmt.Errorf("sentiment: unrecognized label %q", cr.Label)
	}

	return s, nil
}
