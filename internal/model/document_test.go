package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocumentType(t *testing.T) {
	for _, label := range []string{"invoice", "transport", "packlist"} {
		dt, ok := ParseDocumentType(label)
		assert.True(t, ok)
		assert.Equal(t, DocumentType(label), dt)
	}

	_, ok := ParseDocumentType("receipt")
	assert.False(t, ok)
	_, ok = ParseDocumentType("")
	assert.False(t, ok)
}

func TestComputeBatchStatus(t *testing.T) {
	assert.Equal(t, BatchSuccess, ComputeBatchStatus(5, 0))
	assert.Equal(t, BatchPartial, ComputeBatchStatus(3, 2))
	assert.Equal(t, BatchFailed, ComputeBatchStatus(0, 4))
	// Empty batches never reach status computation, but the derivation
	// still holds: no failures means success.
	assert.Equal(t, BatchSuccess, ComputeBatchStatus(0, 0))
}

func TestContentFieldOrder(t *testing.T) {
	doc := SourceDocument{Fields: map[string]string{
		"contenido": "second",
		"file":      "third",
	}}

	name, value, ok := doc.ContentField([]string{"content", "contenido", "file"})
	assert.True(t, ok)
	assert.Equal(t, "contenido", name)
	assert.Equal(t, "second", value)
}

func TestContentFieldSkipsEmpty(t *testing.T) {
	doc := SourceDocument{Fields: map[string]string{"content": ""}}

	_, _, ok := doc.ContentField([]string{"content"})
	assert.False(t, ok)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobProcessing.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}
