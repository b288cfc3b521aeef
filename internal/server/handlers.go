package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/batch"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/resilience"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.stats.IncRequestError()
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve *model.ValidationError
		nf *model.NotFoundError
		fe *model.FormatError
		de *model.DecodeError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &de):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &nf):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &fe):
		s.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case resilience.IsTransient(err):
		s.writeJSONError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		zap.L().Error("request failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.checkCredentials(req.Username, req.Password) {
		s.writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := IssueToken(s.cfg.JWTSecret, req.Username, s.cfg.TokenTTL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(s.cfg.TokenTTL / time.Second),
	})
}

// handleIndividualProcess runs one document through the pipeline. The
// body is either raw application/pdf bytes or JSON with base64 content.
func (s *Server) handleIndividualProcess(w http.ResponseWriter, r *http.Request) {
	docID, raw, err := s.readDocument(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	doc, err := s.pipeline.Process(r.Context(), docID, raw)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) readDocument(r *http.Request) (string, []byte, error) {
	limit := s.cfg.MaxDocumentBytes
	if limit <= 0 {
		limit = 20 << 20
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/pdf") {
		raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return "", nil, model.NewValidationError("unreadable request body")
		}
		if int64(len(raw)) > limit {
			return "", nil, model.NewValidationError("document exceeds maximum size")
		}
		if len(raw) == 0 {
			return "", nil, model.NewValidationError("document content is required")
		}
		return uuid.NewString(), raw, nil
	}

	var req struct {
		DocumentID string `json:"document_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, limit*2)).Decode(&req); err != nil {
		return "", nil, model.NewValidationError("invalid request body")
	}
	if req.Content == "" {
		return "", nil, model.NewValidationError("content is required")
	}
	if int64(base64.StdEncoding.DecodedLen(len(req.Content))) > limit {
		return "", nil, model.NewValidationError("document exceeds maximum size")
	}
	raw, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return "", nil, &model.DecodeError{Err: err}
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}
	return req.DocumentID, raw, nil
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	opts := batch.Options{
		UseCache:       boolQuery(r, "use_cache", true),
		ForceReprocess: boolQuery(r, "force_reprocess", false),
	}

	result, err := s.orch.ProcessBatch(r.Context(), batchID, opts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.stats.RecordBatch(result.Metadata.Succeeded, result.Metadata.Failed)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProcessBatchAsync(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	var req struct {
		WebhookURL string `json:"webhook_url"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	jobID, err := s.submitter.Submit(r.Context(), batchID, req.WebhookURL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.stats.IncJobSubmitted()
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   jobID,
		"batch_id": batchID,
		"status":   string(model.JobQueued),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, ok := s.jobStore.Get(r.Context(), jobID)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	removed := s.cache.InvalidateBatch(r.Context(), batchID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":     batchID,
		"keys_removed": removed,
	})
}

func (s *Server) handleCacheTTL(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	ttl := s.cache.ListingTTL(r.Context(), batchID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":    batchID,
		"ttl_seconds": int64(ttl / time.Second),
		"cached":      ttl > 0,
	})
}

func boolQuery(r *http.Request, name string, def bool) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}
