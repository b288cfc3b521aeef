package model

import "fmt"

// ValidationError reports bad caller input (missing identifier, oversized
// or non-PDF content). Surfaced immediately, never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// DecodeError reports malformed encoded content for a single artifact.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode content: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// FormatError reports an unparseable document container. Segmentation is
// the only pipeline step allowed to return it.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string { return "invalid document format: " + e.Err.Error() }
func (e *FormatError) Unwrap() error { return e.Err }

// NotFoundError reports a missing batch or an empty listing.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ProcessingError wraps any unexpected failure from one document's
// pipeline run, recorded as a per-document batch failure.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string { return "processing failed: " + e.Err.Error() }
func (e *ProcessingError) Unwrap() error { return e.Err }
