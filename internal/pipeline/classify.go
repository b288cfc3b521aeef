// Package pipeline composes page segmentation, classification, grouping
// and extraction into the per-document processing flow.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/model"
	"github.com/tramitex/docflow/pkg/docintel"
)

// ClassifierConfig controls the fail-open fallback of the classifier
// adapter.
type ClassifierConfig struct {
	// DefaultType is assigned when the upstream call fails or returns a
	// label outside the closed DocumentType set.
	DefaultType model.DocumentType

	// FallbackConfidence is the confidence reported on degraded results.
	FallbackConfidence float64
}

// DefaultClassifierConfig mirrors the behaviour of the upstream system:
// unclassifiable pages default to invoice at low confidence.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		DefaultType:        model.DocTypeInvoice,
		FallbackConfidence: 0.10,
	}
}

// Classifier adapts the document intelligence classifier to the closed
// DocumentType set. It never returns an error: upstream failures produce
// a degraded default classification so the batch keeps moving.
type Classifier struct {
	client docintel.Client
	cfg    ClassifierConfig
}

// NewClassifier builds a classifier adapter. Zero config fields fall back
// to the defaults.
func NewClassifier(client docintel.Client, cfg ClassifierConfig) *Classifier {
	def := DefaultClassifierConfig()
	if cfg.DefaultType == "" {
		cfg.DefaultType = def.DefaultType
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = def.FallbackConfidence
	}
	return &Classifier{client: client, cfg: cfg}
}

// ClassifyPage classifies one single-page document. ordinal is the
// 1-based page number within the source document.
func (c *Classifier) ClassifyPage(ctx context.Context, ordinal int, page []byte) model.PageClassification {
	res, err := c.client.Classify(ctx, page)
	if err != nil {
		zap.L().Warn("page classification degraded",
			zap.Int("page", ordinal),
			zap.String("fallback_type", string(c.cfg.DefaultType)),
			zap.Error(err),
		)
		return c.degraded(ordinal, err.Error())
	}

	docType, ok := model.ParseDocumentType(res.Label)
	if !ok {
		zap.L().Warn("unmapped classification label",
			zap.Int("page", ordinal),
			zap.String("label", res.Label),
		)
		return c.degraded(ordinal, "unmapped label: "+res.Label)
	}

	confidence := res.Confidence
	if confidence <= 0 {
		// The upstream classifier does not always report confidence.
		confidence = 0.95
	}

	return model.PageClassification{
		Page:       ordinal,
		Type:       docType,
		Confidence: confidence,
	}
}

func (c *Classifier) degraded(ordinal int, cause string) model.PageClassification {
	return model.PageClassification{
		Page:       ordinal,
		Type:       c.cfg.DefaultType,
		Confidence: c.cfg.FallbackConfidence,
		Degraded:   true,
		Cause:      cause,
	}
}
