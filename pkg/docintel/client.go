// Package docintel provides a client for the external document
// intelligence API used for page classification and field extraction.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/tramitex/docflow/internal/resilience"
)

// Client defines the document intelligence operations.
type Client interface {
	// Classify runs the page classifier model over a single-page document.
	Classify(ctx context.Context, doc []byte) (*ClassifyResult, error)
	// Analyze runs the named extraction model over a merged document and
	// returns its field map.
	Analyze(ctx context.Context, doc []byte, modelID string) (*AnalyzeResult, error)
}

// ClassifyResult is the classifier outcome for one page.
type ClassifyResult struct {
	Label      string
	Confidence float64
}

// AnalyzeResult holds the extracted fields of one document group.
type AnalyzeResult struct {
	Fields     map[string]any
	Confidence float64
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithClassifierModel overrides the classifier model id.
func WithClassifierModel(id string) Option {
	return func(c *httpClient) { c.classifierModel = id }
}

// WithPollInterval sets the delay between result polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *httpClient) { c.pollInterval = d }
}

// WithRateLimit caps outgoing analyze requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithCircuitBreaker guards analyze calls so a dead upstream fails fast.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

type httpClient struct {
	apiKey          string
	baseURL         string
	classifierModel string
	pollInterval    time.Duration
	maxPolls        int
	http            *http.Client
	limiter         *rate.Limiter
	breaker         *resilience.CircuitBreaker
}

// NewClient creates a document intelligence client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:          apiKey,
		classifierModel: "doctype_01",
		pollInterval:    500 * time.Millisecond,
		maxPolls:        60,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// operation is the poll response envelope.
type operation struct {
	Status string          `json:"status"`
	Error  *operationError `json:"error,omitempty"`
	Result *analyzeBody    `json:"result,omitempty"`
}

type operationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type analyzeBody struct {
	Documents []analyzedDocument `json:"documents"`
}

type analyzedDocument struct {
	DocType    string                `json:"doc_type"`
	Confidence float64               `json:"confidence"`
	Fields     map[string]fieldValue `json:"fields"`
}

type fieldValue struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

func (c *httpClient) Classify(ctx context.Context, doc []byte) (*ClassifyResult, error) {
	body, err := c.analyze(ctx, doc, c.classifierModel)
	if err != nil {
		return nil, err
	}
	if len(body.Documents) == 0 {
		return nil, eris.New("docintel: classifier returned no documents")
	}
	top := body.Documents[0]
	return &ClassifyResult{Label: top.DocType, Confidence: top.Confidence}, nil
}

func (c *httpClient) Analyze(ctx context.Context, doc []byte, modelID string) (*AnalyzeResult, error) {
	body, err := c.analyze(ctx, doc, modelID)
	if err != nil {
		return nil, err
	}

	out := &AnalyzeResult{Fields: map[string]any{}}
	if len(body.Documents) == 0 {
		return out, nil
	}
	top := body.Documents[0]
	out.Confidence = top.Confidence
	for name, f := range top.Fields {
		if f.Value != nil {
			out.Fields[name] = f.Value
		}
	}
	return out, nil
}

// analyze submits the document to the named model and polls the returned
// operation until it reaches a terminal status.
func (c *httpClient) analyze(ctx context.Context, doc []byte, modelID string) (*analyzeBody, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "docintel: rate limiter")
		}
	}

	run := func(ctx context.Context) (*analyzeBody, error) {
		opURL, err := c.beginAnalyze(ctx, doc, modelID)
		if err != nil {
			return nil, err
		}
		return c.pollOperation(ctx, opURL)
	}

	if c.breaker != nil {
		return resilience.ExecuteVal(ctx, c.breaker, run)
	}
	return run(ctx)
}

func (c *httpClient) beginAnalyze(ctx context.Context, doc []byte, modelID string) (string, error) {
	reqURL := fmt.Sprintf("%s/models/%s:analyze", c.baseURL, modelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(doc))
	if err != nil {
		return "", eris.Wrap(err, "docintel: create analyze request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "docintel: analyze %s", modelID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(
				eris.Errorf("docintel: analyze %s: status %d: %s", modelID, resp.StatusCode, string(raw)),
				resp.StatusCode,
			)
		}
		return "", eris.Errorf("docintel: analyze %s: status %d: %s", modelID, resp.StatusCode, string(raw))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", eris.New("docintel: analyze response missing Operation-Location")
	}
	return opURL, nil
}

func (c *httpClient) pollOperation(ctx context.Context, opURL string) (*analyzeBody, error) {
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "docintel: create poll request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "docintel: poll operation")
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "docintel: read poll response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("docintel: poll status %d: %s", resp.StatusCode, string(raw))
		}

		var op operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, eris.Wrap(err, "docintel: unmarshal operation")
		}

		switch op.Status {
		case "succeeded":
			if op.Result == nil {
				return nil, eris.New("docintel: succeeded operation missing result")
			}
			return op.Result, nil
		case "failed":
			if op.Error != nil {
				return nil, eris.Errorf("docintel: operation failed: %s: %s", op.Error.Code, op.Error.Message)
			}
			return nil, eris.New("docintel: operation failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, eris.Errorf("docintel: operation did not complete after %d polls", c.maxPolls)
}
