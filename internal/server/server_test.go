package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramitex/docflow/internal/batch"
	"github.com/tramitex/docflow/internal/cache"
	"github.com/tramitex/docflow/internal/jobs"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/monitoring"
)

type fakePipeline struct {
	err error
}

func (f *fakePipeline) Process(_ context.Context, docID string, _ []byte) (*model.ProcessedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ProcessedDocument{DocumentID: docID}, nil
}

type fakeOrch struct {
	result   *model.BatchResult
	err      error
	lastOpts batch.Options
	lastID   string
}

func (f *fakeOrch) ProcessBatch(_ context.Context, batchID string, opts batch.Options) (*model.BatchResult, error) {
	f.lastID = batchID
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSubmitter struct {
	jobID       string
	err         error
	lastBatch   string
	lastWebhook string
}

func (f *fakeSubmitter) Submit(_ context.Context, batchID, webhookURL string) (string, error) {
	f.lastBatch = batchID
	f.lastWebhook = webhookURL
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

type testEnv struct {
	srv       *httptest.Server
	pipeline  *fakePipeline
	orch      *fakeOrch
	submitter *fakeSubmitter
	jobStore  *jobs.Store
	cache     *cache.Cache
	token     string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	if cfg.Username == "" {
		cfg.Username = "admin"
		cfg.Password = "s3cret"
	}

	env := &testEnv{
		pipeline:  &fakePipeline{},
		orch:      &fakeOrch{result: &model.BatchResult{BatchID: "b1", Status: model.BatchSuccess}},
		submitter: &fakeSubmitter{jobID: "job-123"},
		cache:     cache.New(cache.NewMemory(), cache.TTLs{}),
	}
	env.jobStore = jobs.NewStore(env.cache)

	s := New(env.pipeline, env.orch, env.submitter, env.jobStore, env.cache,
		monitoring.NewCollector(), cfg)
	env.srv = httptest.NewServer(s.Router())
	t.Cleanup(env.srv.Close)

	token, err := IssueToken(cfg.JWTSecret, "admin", time.Minute)
	require.NoError(t, err)
	env.token = token
	return env
}

func (e *testEnv) request(t *testing.T, method, path string, body any, authed bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenIssuance(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/auth/token",
		map[string]string{"username": "admin", "password": "s3cret"}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "bearer", body.TokenType)
	assert.Positive(t, body.ExpiresIn)
	assert.NoError(t, validateToken("test-secret", body.AccessToken))
}

func TestTokenBadCredentials(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/auth/token",
		map[string]string{"username": "admin", "password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/sgd/process/b1", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/jobs/x", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestIndividualProcess(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/individual/process", map[string]string{
		"document_id": "d1",
		"content":     base64.StdEncoding.EncodeToString([]byte("pdf bytes")),
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc model.ProcessedDocument
	decodeBody(t, resp, &doc)
	assert.Equal(t, "d1", doc.DocumentID)
}

func TestIndividualProcessBadBase64(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/individual/process",
		map[string]string{"content": "%%%"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndividualProcessMissingContent(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/individual/process",
		map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndividualProcessOversized(t *testing.T) {
	env := newTestEnv(t, Config{MaxDocumentBytes: 4})

	resp := env.request(t, http.MethodPost, "/individual/process", map[string]string{
		"content": base64.StdEncoding.EncodeToString([]byte("way too large")),
	}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndividualProcessUnparseable(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.pipeline.err = &model.FormatError{Err: assert.AnError}

	resp := env.request(t, http.MethodPost, "/individual/process", map[string]string{
		"content": base64.StdEncoding.EncodeToString([]byte("not a pdf")),
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestProcessBatchQueryOptions(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/sgd/process/b1?use_cache=false&force_reprocess=true", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "b1", env.orch.lastID)
	assert.False(t, env.orch.lastOpts.UseCache)
	assert.True(t, env.orch.lastOpts.ForceReprocess)

	var result model.BatchResult
	decodeBody(t, resp, &result)
	assert.Equal(t, model.BatchSuccess, result.Status)
}

func TestProcessBatchDefaultsToCache(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/sgd/process/b1", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.orch.lastOpts.UseCache)
	assert.False(t, env.orch.lastOpts.ForceReprocess)
}

func TestProcessBatchNotFound(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.orch.err = &model.NotFoundError{Resource: "batch b9"}

	resp := env.request(t, http.MethodPost, "/sgd/process/b9", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessBatchAsync(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.request(t, http.MethodPost, "/sgd/process/b1/async",
		map[string]string{"webhook_url": "https://hooks.example/done"}, true)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "job-123", body["job_id"])
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "b1", env.submitter.lastBatch)
	assert.Equal(t, "https://hooks.example/done", env.submitter.lastWebhook)
}

func TestJobStatus(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.jobStore.Create(context.Background(), "j1", "b1", "")

	resp := env.request(t, http.MethodGet, "/jobs/j1", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job model.Job
	decodeBody(t, resp, &job)
	assert.Equal(t, model.JobQueued, job.Status)

	resp = env.request(t, http.MethodGet, "/jobs/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	env.cache.SetListing(ctx, "b1", []model.SourceDocument{{ID: "d1"}})

	resp := env.request(t, http.MethodGet, "/sgd/cache/b1/ttl", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ttl struct {
		Cached     bool  `json:"cached"`
		TTLSeconds int64 `json:"ttl_seconds"`
	}
	decodeBody(t, resp, &ttl)
	assert.True(t, ttl.Cached)
	assert.Positive(t, ttl.TTLSeconds)

	resp = env.request(t, http.MethodDelete, "/sgd/cache/b1", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/sgd/cache/b1/ttl", nil, true)
	decodeBody(t, resp, &ttl)
	assert.False(t, ttl.Cached)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RequestsPerSec: 1})

	// Burst is RPS+1, so the third immediate request must be throttled.
	var last int
	for i := 0; i < 3; i++ {
		resp := env.request(t, http.MethodGet, "/health", nil, false)
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
