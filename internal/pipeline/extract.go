package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/pkg/docintel"
)

// ExtractorConfig maps each document type onto an upstream extraction
// model and controls the fail-open fallback.
type ExtractorConfig struct {
	// Profiles is the closed DocumentType -> extraction model mapping.
	// Types may share a model.
	Profiles map[model.DocumentType]string

	// FallbackConfidence is reported when extraction degrades.
	FallbackConfidence float64
}

// DefaultProfiles returns the upstream model registrations. The invoice
// model id is spelled "inovice_01" in the external system.
func DefaultProfiles() map[model.DocumentType]string {
	return map[model.DocumentType]string{
		model.DocTypeInvoice:   "inovice_01",
		model.DocTypePacklist:  "inovice_01",
		model.DocTypeTransport: "transport_01",
	}
}

// Extractor adapts the document intelligence extraction models. Like the
// classifier it never returns an error: upstream failures yield an empty
// degraded field map.
type Extractor struct {
	client docintel.Client
	cfg    ExtractorConfig
}

// NewExtractor builds an extractor adapter. Zero config fields fall back
// to the defaults.
func NewExtractor(client docintel.Client, cfg ExtractorConfig) *Extractor {
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = 0.10
	}
	return &Extractor{client: client, cfg: cfg}
}

// Profile resolves the extraction model for a document type. Types
// missing from the map use the invoice model.
func (e *Extractor) Profile(docType model.DocumentType) string {
	if p, ok := e.cfg.Profiles[docType]; ok {
		return p
	}
	return e.cfg.Profiles[model.DocTypeInvoice]
}

// ExtractGroup extracts structured fields from one merged group of
// same-typed pages.
func (e *Extractor) ExtractGroup(ctx context.Context, merged []byte, docType model.DocumentType) model.ExtractionRecord {
	profile := e.Profile(docType)

	res, err := e.client.Analyze(ctx, merged, profile)
	if err != nil {
		zap.L().Warn("group extraction degraded",
			zap.String("document_type", string(docType)),
			zap.String("profile", profile),
			zap.Error(err),
		)
		return model.ExtractionRecord{
			Type:       docType,
			Profile:    profile,
			Fields:     map[string]any{},
			Confidence: e.cfg.FallbackConfidence,
			Degraded:   true,
			Cause:      err.Error(),
		}
	}

	confidence := res.Confidence
	if confidence <= 0 {
		confidence = 0.95
	}

	return model.ExtractionRecord{
		Type:       docType,
		Profile:    profile,
		Fields:     res.Fields,
		Confidence: confidence,
	}
}
