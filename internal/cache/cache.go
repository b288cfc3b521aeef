package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
)

// Key namespaces. Keys are `cache:{namespace}:{identifier}`.
const (
	nsListing   = "listing"
	nsResult    = "result"
	nsDocResult = "docresult"
	nsJob       = "job"
)

// TTLs control entry lifetimes per namespace.
type TTLs struct {
	Listing time.Duration
	Result  time.Duration
	Job     time.Duration
}

// DefaultTTLs: listings are short-lived, computed results and job records
// stay around for an hour.
func DefaultTTLs() TTLs {
	return TTLs{
		Listing: 5 * time.Minute,
		Result:  time.Hour,
		Job:     time.Hour,
	}
}

// Cache is the namespaced TTL cache service. Every operation is
// best-effort: a Store failure is logged and reported to the caller as a
// miss or no-op, never as an error, so a flaky cache backend cannot fail
// batch processing.
type Cache struct {
	store Store
	ttls  TTLs
}

// New builds a Cache over the given Store. Zero TTL fields fall back to
// the defaults.
func New(store Store, ttls TTLs) *Cache {
	def := DefaultTTLs()
	if ttls.Listing <= 0 {
		ttls.Listing = def.Listing
	}
	if ttls.Result <= 0 {
		ttls.Result = def.Result
	}
	if ttls.Job <= 0 {
		ttls.Job = def.Job
	}
	return &Cache{store: store, ttls: ttls}
}

func key(ns, id string) string { return "cache:" + ns + ":" + id }

func (c *Cache) get(ctx context.Context, k string, out any) bool {
	raw, found, err := c.store.Get(ctx, k)
	if err != nil {
		zap.L().Warn("cache get failed, treating as miss", zap.String("key", k), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		zap.L().Warn("cache entry corrupt, treating as miss", zap.String("key", k), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, k string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache marshal failed, skipping set", zap.String("key", k), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, k, raw, ttl); err != nil {
		zap.L().Warn("cache set failed", zap.String("key", k), zap.Error(err))
	}
}

// GetListing returns the cached artifact listing for a batch.
func (c *Cache) GetListing(ctx context.Context, batchID string) ([]model.SourceDocument, bool) {
	var docs []model.SourceDocument
	if !c.get(ctx, key(nsListing, batchID), &docs) {
		return nil, false
	}
	return docs, true
}

// SetListing caches the artifact listing for a batch.
func (c *Cache) SetListing(ctx context.Context, batchID string, docs []model.SourceDocument) {
	c.set(ctx, key(nsListing, batchID), docs, c.ttls.Listing)
}

// ListingTTL returns the remaining lifetime of a cached listing, 0 when
// absent or expired.
func (c *Cache) ListingTTL(ctx context.Context, batchID string) time.Duration {
	d, err := c.store.TTL(ctx, key(nsListing, batchID))
	if err != nil {
		zap.L().Warn("cache ttl lookup failed", zap.String("batch_id", batchID), zap.Error(err))
		return 0
	}
	return d
}

// GetBatchResult returns a previously computed batch result.
func (c *Cache) GetBatchResult(ctx context.Context, batchID string) (*model.BatchResult, bool) {
	var res model.BatchResult
	if !c.get(ctx, key(nsResult, batchID), &res) {
		return nil, false
	}
	return &res, true
}

// SetBatchResult caches a computed batch result.
func (c *Cache) SetBatchResult(ctx context.Context, batchID string, res *model.BatchResult) {
	c.set(ctx, key(nsResult, batchID), res, c.ttls.Result)
}

// SetDocumentResult caches one document's pipeline result under the batch.
func (c *Cache) SetDocumentResult(ctx context.Context, batchID, docID string, doc *model.ProcessedDocument) {
	c.set(ctx, key(nsDocResult, batchID+":"+docID), doc, c.ttls.Result)
}

// GetDocumentResult returns one cached per-document result.
func (c *Cache) GetDocumentResult(ctx context.Context, batchID, docID string) (*model.ProcessedDocument, bool) {
	var doc model.ProcessedDocument
	if !c.get(ctx, key(nsDocResult, batchID+":"+docID), &doc) {
		return nil, false
	}
	return &doc, true
}

// GetJob returns the persisted state of an async job.
func (c *Cache) GetJob(ctx context.Context, jobID string) (*model.Job, bool) {
	var job model.Job
	if !c.get(ctx, key(nsJob, jobID), &job) {
		return nil, false
	}
	return &job, true
}

// SetJob persists async job state.
func (c *Cache) SetJob(ctx context.Context, job *model.Job) {
	c.set(ctx, key(nsJob, job.ID), job, c.ttls.Job)
}

// InvalidateBatch removes the cached listing plus every batch-level and
// per-document result for the batch. Returns the number of keys removed.
func (c *Cache) InvalidateBatch(ctx context.Context, batchID string) int {
	var removed int

	existed, err := c.store.Delete(ctx, key(nsListing, batchID))
	if err != nil {
		zap.L().Warn("cache invalidate listing failed", zap.String("batch_id", batchID), zap.Error(err))
	} else if existed {
		removed++
	}

	for _, prefix := range []string{key(nsResult, batchID), key(nsDocResult, batchID+":")} {
		n, err := c.store.DeletePrefix(ctx, prefix)
		removed += n
		if err != nil {
			zap.L().Warn("cache invalidate prefix failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}

	zap.L().Info("cache invalidated", zap.String("batch_id", batchID), zap.Int("keys_removed", removed))
	return removed
}
