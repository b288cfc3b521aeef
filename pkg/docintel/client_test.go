package docintel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramitex/docflow/internal/resilience"
)

// newAnalyzeServer serves the begin+poll protocol: POST :analyze returns
// 202 with an Operation-Location, and the operation endpoint returns
// "running" pollsBeforeDone times before the terminal payload.
func newAnalyzeServer(t *testing.T, pollsBeforeDone int, terminal operation) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var polls atomic.Int64

	mux := http.NewServeMux()
	var srv *httptest.Server

	// The :analyze suffix is part of the final path segment, so the
	// prefix route covers "model:analyze" as one value.
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Operation-Location", srv.URL+"/operations/op-1")
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n := polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if int(n) <= pollsBeforeDone {
			json.NewEncoder(w).Encode(operation{Status: "running"})
			return
		}
		json.NewEncoder(w).Encode(terminal)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestClassify_Success(t *testing.T) {
	srv, _ := newAnalyzeServer(t, 0, operation{
		Status: "succeeded",
		Result: &analyzeBody{
			Documents: []analyzedDocument{{DocType: "transport", Confidence: 0.91}},
		},
	})

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPollInterval(time.Millisecond))

	res, err := c.Classify(context.Background(), []byte("%PDF-page"))
	require.NoError(t, err)
	assert.Equal(t, "transport", res.Label)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)
}

func TestClassify_PollsUntilDone(t *testing.T) {
	srv, polls := newAnalyzeServer(t, 3, operation{
		Status: "succeeded",
		Result: &analyzeBody{
			Documents: []analyzedDocument{{DocType: "invoice", Confidence: 0.8}},
		},
	})

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPollInterval(time.Millisecond))

	res, err := c.Classify(context.Background(), []byte("doc"))
	require.NoError(t, err)
	assert.Equal(t, "invoice", res.Label)
	assert.Equal(t, int64(4), polls.Load())
}

func TestAnalyze_FieldValues(t *testing.T) {
	srv, _ := newAnalyzeServer(t, 0, operation{
		Status: "succeeded",
		Result: &analyzeBody{
			Documents: []analyzedDocument{{
				DocType:    "invoice",
				Confidence: 0.95,
				Fields: map[string]fieldValue{
					"InvoiceId":   {Value: "INV-001", Confidence: 0.97},
					"TotalAmount": {Value: 1250.50, Confidence: 0.88},
					"Empty":       {Value: nil},
				},
			}},
		},
	})

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPollInterval(time.Millisecond))

	res, err := c.Analyze(context.Background(), []byte("doc"), "inovice_01")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, "INV-001", res.Fields["InvoiceId"])
	assert.Equal(t, 1250.50, res.Fields["TotalAmount"])
	assert.NotContains(t, res.Fields, "Empty")
}

func TestAnalyze_OperationFailed(t *testing.T) {
	srv, _ := newAnalyzeServer(t, 0, operation{
		Status: "failed",
		Error:  &operationError{Code: "InvalidContent", Message: "corrupt pdf"},
	})

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPollInterval(time.Millisecond))

	_, err := c.Analyze(context.Background(), []byte("doc"), "transport_01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidContent")
}

func TestAnalyze_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Analyze(context.Background(), []byte("doc"), "transport_01")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestAnalyze_CircuitBreakerFailsFast(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	c := NewClient("test-key", WithBaseURL(srv.URL), WithCircuitBreaker(cb))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = c.Classify(ctx, []byte("doc"))
	}

	// Only the first two calls reach the upstream; the rest are rejected.
	assert.Equal(t, int64(2), hits.Load())
}
