package nli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/todmy/doc-checker/pkg/models"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxConcurrent = 4
)

// ErrModelUnavailable indicates the underlying model could not be loaded
// or invoked. It is fatal for an analysis run and is not retried here;
// callers may retry the whole run.
var ErrModelUnavailable = errors.New("nli model unavailable")

// Client scores statement pairs against an HTTP NLI inference server
// speaking the text-classification wire format: a list of
// {text, text_pair} inputs, answered by a list of per-label score lists.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	profile       ModelProfile
	batchSize     int
	maxConcurrent int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel selects the NLI model to score with.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
		c.profile = ProfileForModel(model)
	}
}

// WithAPIKey sets the bearer token sent with inference requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithBatchSize overrides the model's preferred inputs-per-request count.
// This is a throughput hint only.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithMaxConcurrent bounds concurrent batch requests.
func WithMaxConcurrent(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates an inference client against baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		baseURL:       baseURL,
		model:         DefaultModel,
		profile:       ProfileForModel(DefaultModel),
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.batchSize == 0 {
		c.batchSize = c.profile.BatchSize
	}
	return c
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.model }

type inferenceInput struct {
	Text     string `json:"text"`
	TextPair string `json:"text_pair"`
}

type inferenceRequest struct {
	Inputs []inferenceInput `json:"inputs"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassifyPairs scores each input and returns results in input order.
// Overlong statements are truncated to the model's maximum input length
// before the request is built; the corresponding result is flagged.
func (c *Client) ClassifyPairs(ctx context.Context, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	wire := make([]inferenceInput, len(inputs))
	truncated := make([]bool, len(inputs))
	for i, in := range inputs {
		premise, cut1 := truncate(in.Premise.Text, c.profile.MaxInputChars)
		hypothesis, cut2 := truncate(in.Hypothesis.Text, c.profile.MaxInputChars)
		wire[i] = inferenceInput{Text: premise, TextPair: hypothesis}
		truncated[i] = cut1 || cut2
	}

	results := make([]Result, len(inputs))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(wire); start += c.batchSize {
		end := min(start+c.batchSize, len(wire))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			scores, err := c.classifyBatch(ctx, wire[start:end])

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for i, s := range scores {
				results[start+i] = Result{Scores: s, Truncated: truncated[start+i]}
			}
		}(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (c *Client) classifyBatch(ctx context.Context, inputs []inferenceInput) ([]models.RelationScores, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotFound:
		// The server could not load or find the model.
		return nil, fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, raw)
	default:
		return nil, fmt.Errorf("inference error (status %d): %s", resp.StatusCode, raw)
	}

	var decoded [][]labelScore
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(decoded) != len(inputs) {
		return nil, fmt.Errorf("inference returned %d results for %d inputs", len(decoded), len(inputs))
	}

	out := make([]models.RelationScores, len(decoded))
	for i, labels := range decoded {
		for _, ls := range labels {
			switch normalizeLabel(ls.Label) {
			case "contradiction":
				out[i].Contradiction = ls.Score
			case "entailment":
				out[i].Entailment = ls.Score
			case "neutral":
				out[i].Neutral = ls.Score
			}
		}
	}
	return out, nil
}

// truncate cuts s to at most limit runes. The cut point is fixed so that
// repeated runs classify identical text.
func truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}
