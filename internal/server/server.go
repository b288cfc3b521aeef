// Package server exposes the document processing API over HTTP: token
// issuance, single-document and batch processing, async job submission
// and polling, and cache administration.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/tramitex/docflow/internal/batch"
	"github.com/tramitex/docflow/internal/cache"
	"github.com/tramitex/docflow/internal/jobs"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/monitoring"
)

// BatchProcessor mirrors the orchestrator surface the handlers call.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID string, opts batch.Options) (*model.BatchResult, error)
}

// JobSubmitter enqueues async batch jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, batchID, webhookURL string) (string, error)
}

// Config tunes the HTTP layer.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration

	// Username/Password accepted by the token endpoint.
	Username string
	Password string

	// RequestsPerSec throttles the API as a whole. Zero disables.
	RequestsPerSec float64

	// MaxDocumentBytes bounds single-document uploads before decoding.
	MaxDocumentBytes int64
}

// Server holds the wired application services behind the HTTP handlers.
type Server struct {
	pipeline  batch.DocumentProcessor
	orch      BatchProcessor
	submitter JobSubmitter
	jobStore  *jobs.Store
	cache     *cache.Cache
	stats     *monitoring.Collector
	cfg       Config

	limiter *rate.Limiter
}

// New wires a server. Collector may be shared with other components.
func New(pipeline batch.DocumentProcessor, orch BatchProcessor, submitter JobSubmitter,
	jobStore *jobs.Store, c *cache.Cache, stats *monitoring.Collector, cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	s := &Server{
		pipeline:  pipeline,
		orch:      orch,
		submitter: submitter,
		jobStore:  jobStore,
		cache:     c,
		stats:     stats,
		cfg:       cfg,
	}
	if cfg.RequestsPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)+1)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(s.countRequests)
	r.Use(s.throttle)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/auth/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/individual/process", s.handleIndividualProcess)
		r.Post("/sgd/process/{batchID}", s.handleProcessBatch)
		r.Post("/sgd/process/{batchID}/async", s.handleProcessBatchAsync)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Delete("/sgd/cache/{batchID}", s.handleInvalidateCache)
		r.Get("/sgd/cache/{batchID}/ttl", s.handleCacheTTL)
	})

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.IncRequest()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
