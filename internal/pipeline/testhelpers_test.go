package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tramitex/docflow/pkg/docintel"
)

// fakeIntel is a scripted docintel.Client: Classify hands out labels in
// sequence, Analyze records the profiles it was asked for.
type fakeIntel struct {
	mu          sync.Mutex
	labels      []string
	confidences []float64
	classifyErr error
	analyzeErr  error
	fields      map[string]any

	classifyCalls int
	profilesUsed  []string
}

func (f *fakeIntel) Classify(_ context.Context, _ []byte) (*docintel.ClassifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	if f.classifyCalls >= len(f.labels) {
		return nil, errors.New("fake: no label scripted")
	}
	res := &docintel.ClassifyResult{Label: f.labels[f.classifyCalls]}
	if f.classifyCalls < len(f.confidences) {
		res.Confidence = f.confidences[f.classifyCalls]
	}
	f.classifyCalls++
	return res, nil
}

func (f *fakeIntel) Analyze(_ context.Context, _ []byte, modelID string) (*docintel.AnalyzeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	f.profilesUsed = append(f.profilesUsed, modelID)
	fields := f.fields
	if fields == nil {
		fields = map[string]any{}
	}
	return &docintel.AnalyzeResult{Fields: fields, Confidence: 0.9}, nil
}

// buildTestPDF constructs a minimal valid PDF with one page per text.
func buildTestPDF(texts ...string) []byte {
	n := len(texts)
	total := 2 + 2*n + 1
	offsets := make([]int, total+1)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, n)
	for i := range texts {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), n)

	fontObj := 3 + 2*n
	for i, text := range texts {
		pageObj := 3 + 2*i
		contObj := pageObj + 1

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>\nendobj\n",
			pageObj, contObj, fontObj)

		stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"
		offsets[contObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contObj, len(stream), stream)
	}

	offsets[fontObj] = b.Len()
	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj)

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)

	return []byte(b.String())
}
