package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/batch"
	"github.com/tramitex/docflow/internal/cache"
	"github.com/tramitex/docflow/internal/jobs"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/monitoring"
	"github.com/tramitex/docflow/internal/pipeline"
	"github.com/tramitex/docflow/internal/resilience"
	"github.com/tramitex/docflow/pkg/docintel"
	"github.com/tramitex/docflow/pkg/docsource"
)

// appEnv holds the wired clients and services shared by the serve,
// worker, and batch commands.
type appEnv struct {
	CacheStore   cache.Store
	Cache        *cache.Cache
	Source       docsource.Client
	Pipeline     *pipeline.Pipeline
	Orchestrator *batch.Orchestrator
	JobStore     *jobs.Store
	Stats        *monitoring.Collector
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.CacheStore != nil {
		_ = ae.CacheStore.Close()
	}
}

// initApp validates config for the given mode and wires the full stack.
// Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	// Redis is the normal backend; fall back to the in-process store so
	// the CLI stays usable without one. Cache semantics are best-effort
	// either way.
	var store cache.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zap.L().Warn("redis unavailable, using in-memory cache", zap.Error(err))
			store = cache.NewMemory()
		} else {
			store = redisStore
		}
	} else {
		store = cache.NewMemory()
	}

	cacheSvc := cache.New(store, cache.TTLs{
		Listing: time.Duration(cfg.Cache.ListingTTLSecs) * time.Second,
		Result:  time.Duration(cfg.Cache.ResultTTLSecs) * time.Second,
		Job:     time.Duration(cfg.Cache.JobTTLSecs) * time.Second,
	})

	intel := docintel.NewClient(cfg.DocIntel.Key,
		docintel.WithBaseURL(cfg.DocIntel.BaseURL),
		docintel.WithClassifierModel(cfg.DocIntel.ClassifierModel),
		docintel.WithPollInterval(time.Duration(cfg.DocIntel.PollIntervalMS)*time.Millisecond),
		docintel.WithRateLimit(cfg.DocIntel.RequestsPerSec),
		docintel.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
	)

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.DocSource.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.DocSource.MaxRetries
	}
	source := docsource.NewClient(cfg.DocSource.Token,
		docsource.WithBaseURL(cfg.DocSource.BaseURL),
		docsource.WithRetryConfig(retryCfg),
	)

	profiles := make(map[model.DocumentType]string, len(cfg.Pipeline.Profiles))
	for label, profile := range cfg.Pipeline.Profiles {
		docType, ok := model.ParseDocumentType(label)
		if !ok {
			zap.L().Warn("ignoring profile for unknown document type", zap.String("type", label))
			continue
		}
		profiles[docType] = profile
	}

	defaultType, ok := model.ParseDocumentType(cfg.Pipeline.DefaultType)
	if !ok {
		defaultType = model.DocTypeInvoice
	}

	pipe := pipeline.New(
		pipeline.NewClassifier(intel, pipeline.ClassifierConfig{
			DefaultType:        defaultType,
			FallbackConfidence: cfg.Pipeline.FallbackConfidence,
		}),
		pipeline.NewExtractor(intel, pipeline.ExtractorConfig{
			Profiles:           profiles,
			FallbackConfidence: cfg.Pipeline.FallbackConfidence,
		}),
	)

	orch := batch.New(source, pipe, cacheSvc, batch.Config{
		Concurrency:      cfg.Batch.Concurrency,
		ContentFields:    cfg.Batch.ContentFields,
		MaxDocumentBytes: cfg.Batch.MaxDocumentBytes,
	})

	return &appEnv{
		CacheStore:   store,
		Cache:        cacheSvc,
		Source:       source,
		Pipeline:     pipe,
		Orchestrator: orch,
		JobStore:     jobs.NewStore(cacheSvc),
		Stats:        monitoring.NewCollector(),
	}, nil
}
