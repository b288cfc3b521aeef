// Package docsource provides a client for the document management backend
// that serves batch listings of base64-encoded documents.
package docsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/resilience"
)

// Client defines the document source operations.
type Client interface {
	// Fetch returns the ordered artifact listing for a batch. Returns
	// model.NotFoundError for unknown batches; transient upstream failures
	// are retried with backoff before surfacing.
	Fetch(ctx context.Context, batchID string) ([]model.SourceDocument, error)
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

// WithRetryConfig overrides the retry policy for listing fetches.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a document source client authenticating with the
// given bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token: token,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Service == "" {
		c.retry.Service = "docsource"
		c.retry.Operation = "fetch listing"
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, batchID string) ([]model.SourceDocument, error) {
	if batchID == "" {
		return nil, model.NewValidationError("batch id is required")
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) ([]model.SourceDocument, error) {
		return c.fetchOnce(ctx, batchID)
	})
}

func (c *httpClient) fetchOnce(ctx context.Context, batchID string) ([]model.SourceDocument, error) {
	reqURL := fmt.Sprintf("%s/batches/%s/documents", c.baseURL, batchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "docsource: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "docsource: fetch listing"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "docsource: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return parseListing(body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, &model.NotFoundError{Resource: "batch " + batchID}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("docsource: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	default:
		return nil, eris.Errorf("docsource: status %d: %s", resp.StatusCode, string(body))
	}
}

// parseListing decodes the listing JSON. Each entry's string-valued
// fields are preserved verbatim so the orchestrator can discover the
// content field by its configured name list.
func parseListing(body []byte) ([]model.SourceDocument, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrap(err, "docsource: unmarshal listing")
	}

	docs := make([]model.SourceDocument, 0, len(entries))
	for i, entry := range entries {
		doc := model.SourceDocument{Fields: make(map[string]string, len(entry))}
		for name, raw := range entry {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				doc.Fields[name] = s
				continue
			}
			// Numeric ids are common; keep their decimal form.
			var n json.Number
			if err := json.Unmarshal(raw, &n); err == nil {
				doc.Fields[name] = n.String()
			}
		}
		if id, ok := doc.Fields["id"]; ok && id != "" {
			doc.ID = id
		} else {
			doc.ID = "document-" + strconv.Itoa(i+1)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
