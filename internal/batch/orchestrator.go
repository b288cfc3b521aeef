// Package batch runs the document pipeline over every artifact in a
// batch, isolating per-document failures and aggregating the outcome.
package batch

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tramitex/docflow/internal/cache"
	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/pkg/docsource"
)

// DocumentProcessor runs one raw document through the full pipeline.
// Satisfied by *pipeline.Pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, docID string, raw []byte) (*model.ProcessedDocument, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Concurrency bounds the per-document worker pool.
	Concurrency int

	// ContentFields is the ordered list of listing field names searched
	// for the base64 document content.
	ContentFields []string

	// MaxDocumentBytes rejects oversized content before decoding.
	// Zero disables the check.
	MaxDocumentBytes int64
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      4,
		ContentFields:    []string{"content", "contenido", "file"},
		MaxDocumentBytes: 20 << 20,
	}
}

// Options select per-call behavior.
type Options struct {
	// UseCache enables the cached-result short-circuit and cached
	// listing lookup.
	UseCache bool

	// ForceReprocess skips the cached result and recomputes.
	ForceReprocess bool

	// OnProgress, when set, is invoked after each artifact finishes with
	// the number completed so far and the batch total. Calls are
	// serialized; done is strictly increasing.
	OnProgress func(done, total int)
}

// Orchestrator coordinates listing fetch, per-document pipeline runs,
// and result caching for one batch at a time.
type Orchestrator struct {
	source   docsource.Client
	pipeline DocumentProcessor
	cache    *cache.Cache
	cfg      Config
}

// New builds an orchestrator. Zero config fields fall back to defaults.
func New(source docsource.Client, pipeline DocumentProcessor, c *cache.Cache, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if len(cfg.ContentFields) == 0 {
		cfg.ContentFields = def.ContentFields
	}
	return &Orchestrator{source: source, pipeline: pipeline, cache: c, cfg: cfg}
}

// ProcessBatch runs the pipeline over every artifact in the batch.
// Per-document failures are recorded in the result, never returned as an
// error; the error return covers batch-fatal conditions only (bad id,
// unknown batch, listing fetch exhausted).
func (o *Orchestrator) ProcessBatch(ctx context.Context, batchID string, opts Options) (*model.BatchResult, error) {
	if batchID == "" {
		return nil, model.NewValidationError("batch id is required")
	}

	log := zap.L().With(zap.String("batch_id", batchID))
	start := time.Now()

	if opts.UseCache && !opts.ForceReprocess {
		if res, ok := o.cache.GetBatchResult(ctx, batchID); ok {
			log.Info("returning cached batch result", zap.String("status", string(res.Status)))
			return res, nil
		}
	}

	listing, fromCache, err := o.fetchListing(ctx, batchID, opts)
	if err != nil {
		return nil, err
	}
	if len(listing) == 0 {
		return nil, &model.NotFoundError{Resource: "documents for batch " + batchID}
	}

	total := len(listing)
	log.Info("processing batch", zap.Int("documents", total), zap.Bool("listing_from_cache", fromCache))

	type slot struct {
		doc  *model.ProcessedDocument
		fail *model.DocumentError
	}
	slots := make([]slot, total)

	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, src := range listing {
		i, src := i, src
		g.Go(func() error {
			doc, fail := o.processOne(gctx, batchID, src)
			slots[i] = slot{doc: doc, fail: fail}

			progressMu.Lock()
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(done, total)
			}
			progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	result := &model.BatchResult{BatchID: batchID}
	profiles := map[string]struct{}{}
	for _, s := range slots {
		if s.fail != nil {
			result.Errors = append(result.Errors, *s.fail)
			continue
		}
		result.Documents = append(result.Documents, *s.doc)
		for _, rec := range s.doc.Extractions {
			profiles[rec.Profile] = struct{}{}
		}
	}

	result.Status = model.ComputeBatchStatus(len(result.Documents), len(result.Errors))
	result.Metadata = model.BatchMetadata{
		Total:            total,
		Succeeded:        len(result.Documents),
		Failed:           len(result.Errors),
		ElapsedMS:        time.Since(start).Milliseconds(),
		ProfilesUsed:     sortedKeys(profiles),
		ListingFromCache: fromCache,
		ProcessedAt:      time.Now().UTC(),
	}

	if result.Status != model.BatchFailed {
		o.cache.SetBatchResult(ctx, batchID, result)
	}

	log.Info("batch processed",
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Metadata.Succeeded),
		zap.Int("failed", result.Metadata.Failed),
		zap.Int64("elapsed_ms", result.Metadata.ElapsedMS),
	)
	return result, nil
}

// fetchListing consults the listing cache before falling back to a live
// fetch, populating the cache on success.
func (o *Orchestrator) fetchListing(ctx context.Context, batchID string, opts Options) ([]model.SourceDocument, bool, error) {
	if opts.UseCache && !opts.ForceReprocess {
		if docs, ok := o.cache.GetListing(ctx, batchID); ok {
			return docs, true, nil
		}
	}

	docs, err := o.source.Fetch(ctx, batchID)
	if err != nil {
		return nil, false, err
	}
	o.cache.SetListing(ctx, batchID, docs)
	return docs, false, nil
}

// processOne resolves, decodes, and processes a single artifact. Failures
// come back as a DocumentError so the batch can continue; a panicking
// pipeline run is caught here too.
func (o *Orchestrator) processOne(ctx context.Context, batchID string, src model.SourceDocument) (doc *model.ProcessedDocument, fail *model.DocumentError) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("document processing panicked",
				zap.String("batch_id", batchID),
				zap.String("document_id", src.ID),
				zap.Any("panic", r),
			)
			doc = nil
			fail = &model.DocumentError{
				DocumentID: src.ID,
				Message:    fmt.Sprintf("panic: %v", r),
				Kind:       model.ErrKindProcessing,
			}
		}
	}()

	field, encoded, ok := src.ContentField(o.cfg.ContentFields)
	if !ok {
		return nil, &model.DocumentError{
			DocumentID: src.ID,
			Message:    "no content field among: " + strings.Join(o.cfg.ContentFields, ", "),
			Kind:       model.ErrKindMissingContent,
		}
	}

	// Size bound is enforced on the encoded form, before decoding.
	if o.cfg.MaxDocumentBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > o.cfg.MaxDocumentBytes {
		return nil, &model.DocumentError{
			DocumentID: src.ID,
			Message:    fmt.Sprintf("content in field %q exceeds %d bytes", field, o.cfg.MaxDocumentBytes),
			Kind:       model.ErrKindDecode,
		}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &model.DocumentError{
			DocumentID: src.ID,
			Message:    "invalid base64 content in field " + field,
			Kind:       model.ErrKindDecode,
		}
	}

	processed, err := o.pipeline.Process(ctx, src.ID, raw)
	if err != nil {
		return nil, &model.DocumentError{
			DocumentID: src.ID,
			Message:    err.Error(),
			Kind:       model.ErrKindProcessing,
		}
	}

	o.cache.SetDocumentResult(ctx, batchID, src.ID, processed)
	return processed, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
