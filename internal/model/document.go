// Package model defines the domain records shared across the document
// processing pipeline: page classifications, extraction results, batch
// outcomes, and async job state.
package model

import "time"

// DocumentType is the closed set of logical document types the upstream
// classification models are trained on. Unknown labels never enter the
// system; the classifier adapter maps them to a configured default.
type DocumentType string

const (
	DocTypeInvoice   DocumentType = "invoice"
	DocTypeTransport DocumentType = "transport"
	DocTypePacklist  DocumentType = "packlist"
)

// ParseDocumentType maps an external classification label onto the closed
// DocumentType set. The second return is false for unmapped labels.
func ParseDocumentType(label string) (DocumentType, bool) {
	switch DocumentType(label) {
	case DocTypeInvoice, DocTypeTransport, DocTypePacklist:
		return DocumentType(label), true
	}
	return "", false
}

// PageClassification is the classification outcome for a single page.
// Page ordinals are 1-based and unique within a document.
//
// Degraded marks a fail-open fallback: the upstream call failed or returned
// an unmapped label, and Type is the configured default rather than a real
// classification. Cause carries the reason for observability.
type PageClassification struct {
	Page       int          `json:"page_number"`
	Type       DocumentType `json:"document_type"`
	Confidence float64      `json:"confidence"`
	Degraded   bool         `json:"degraded,omitempty"`
	Cause      string       `json:"degraded_cause,omitempty"`
}

// ExtractionRecord holds the structured fields extracted from one
// contiguous group of same-typed pages.
type ExtractionRecord struct {
	Type       DocumentType   `json:"document_type"`
	Profile    string         `json:"profile"`
	Fields     map[string]any `json:"extracted_data"`
	Confidence float64        `json:"confidence"`
	Degraded   bool           `json:"degraded,omitempty"`
	Cause      string         `json:"degraded_cause,omitempty"`
}

// ProcessedDocument is the per-artifact pipeline result. Classifications
// follow page order; extractions follow group order. Immutable once built.
type ProcessedDocument struct {
	DocumentID      string               `json:"document_id"`
	Classifications []PageClassification `json:"classification"`
	Extractions     []ExtractionRecord   `json:"extraction"`
	DurationMS      int64                `json:"processing_ms"`
}

// Error kinds recorded on per-document failures inside a batch.
const (
	ErrKindMissingContent = "MISSING_CONTENT"
	ErrKindDecode         = "DECODE_ERROR"
	ErrKindProcessing     = "PROCESSING_ERROR"
)

// DocumentError records a single artifact failure. The batch continues.
type DocumentError struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"error"`
	Kind       string `json:"error_kind"`
}

// BatchStatus summarises how much of a batch succeeded.
type BatchStatus string

const (
	BatchSuccess BatchStatus = "success"
	BatchPartial BatchStatus = "partial"
	BatchFailed  BatchStatus = "failed"
)

// ComputeBatchStatus derives the status from success/failure counts:
// success iff no failures, failed iff no successes, partial otherwise.
func ComputeBatchStatus(succeeded, failed int) BatchStatus {
	switch {
	case failed == 0:
		return BatchSuccess
	case succeeded == 0:
		return BatchFailed
	default:
		return BatchPartial
	}
}

// BatchMetadata aggregates counters for one batch run.
type BatchMetadata struct {
	Total            int       `json:"total"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	ElapsedMS        int64     `json:"elapsed_ms"`
	ProfilesUsed     []string  `json:"profiles_used,omitempty"`
	ListingFromCache bool      `json:"listing_from_cache"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// BatchResult is the aggregate outcome of processing every document in a
// batch. Documents and Errors each preserve listing order, and
// len(Documents)+len(Errors) always equals Metadata.Total.
type BatchResult struct {
	BatchID   string              `json:"batch_id"`
	Documents []ProcessedDocument `json:"documents"`
	Errors    []DocumentError     `json:"errors,omitempty"`
	Status    BatchStatus         `json:"status"`
	Metadata  BatchMetadata       `json:"metadata"`
}

// SourceDocument is one artifact as returned by the document source
// listing: a source-assigned id plus the raw string fields of the listing
// entry. Content discovery scans Fields with the configured field names.
type SourceDocument struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// ContentField returns the first configured field name present with a
// non-empty value, in candidate order.
func (d SourceDocument) ContentField(candidates []string) (name, value string, ok bool) {
	for _, c := range candidates {
		if v, found := d.Fields[c]; found && v != "" {
			return c, v, true
		}
	}
	return "", "", false
}
