package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/internal/pdf"
)

// Segmenter splits a document into single-page units and reassembles
// contiguous runs for extraction.
type Segmenter interface {
	Split(raw []byte) ([][]byte, error)
	Merge(pages [][]byte) ([]byte, error)
}

type pdfSegmenter struct{}

func (pdfSegmenter) Split(raw []byte) ([][]byte, error)   { return pdf.SplitPages(raw) }
func (pdfSegmenter) Merge(pages [][]byte) ([]byte, error) { return pdf.MergePages(pages) }

// Pipeline runs one document through segmentation, per-page
// classification, contiguous grouping, and per-group extraction.
type Pipeline struct {
	segmenter  Segmenter
	classifier *Classifier
	extractor  *Extractor
}

// New builds a document pipeline from its adapters.
func New(classifier *Classifier, extractor *Extractor) *Pipeline {
	return &Pipeline{segmenter: pdfSegmenter{}, classifier: classifier, extractor: extractor}
}

// Process runs the full pipeline over one PDF. Segmentation is the only
// step that can fail (model.FormatError); classification and extraction
// failures degrade per page/group instead. A zero-page document yields
// empty classification and extraction lists.
func (p *Pipeline) Process(ctx context.Context, docID string, raw []byte) (*model.ProcessedDocument, error) {
	start := time.Now()
	log := zap.L().With(zap.String("document_id", docID))

	pages, err := p.segmenter.Split(raw)
	if err != nil {
		return nil, err
	}

	classifications := make([]model.PageClassification, 0, len(pages))
	for i, page := range pages {
		classifications = append(classifications, p.classifier.ClassifyPage(ctx, i+1, page))
	}

	groups := GroupPages(pages, classifications)

	extractions := make([]model.ExtractionRecord, 0, len(groups))
	for _, g := range groups {
		merged, mergeErr := p.segmenter.Merge(g.Pages)
		if mergeErr != nil {
			// Should not happen for pages our own splitter produced;
			// degrade the group rather than failing the document.
			log.Warn("group merge failed, recording degraded extraction",
				zap.String("document_type", string(g.Type)),
				zap.Error(mergeErr),
			)
			extractions = append(extractions, model.ExtractionRecord{
				Type:       g.Type,
				Profile:    p.extractor.Profile(g.Type),
				Fields:     map[string]any{},
				Confidence: 0,
				Degraded:   true,
				Cause:      mergeErr.Error(),
			})
			continue
		}
		extractions = append(extractions, p.extractor.ExtractGroup(ctx, merged, g.Type))
	}

	doc := &model.ProcessedDocument{
		DocumentID:      docID,
		Classifications: classifications,
		Extractions:     extractions,
		DurationMS:      time.Since(start).Milliseconds(),
	}

	log.Info("document processed",
		zap.Int("pages", len(pages)),
		zap.Int("groups", len(groups)),
		zap.Int64("duration_ms", doc.DurationMS),
	)

	return doc, nil
}
