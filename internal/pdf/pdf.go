// Package pdf splits multi-page PDF containers into single-page documents
// and merges page sequences back together, entirely in memory.
package pdf

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"

	"github.com/tramitex/docflow/internal/model"
)

func conf() *pdfmodel.Configuration {
	c := pdfmodel.NewDefaultConfiguration()
	c.ValidationMode = pdfmodel.ValidationRelaxed
	return c
}

// PageCount returns the number of pages in raw. A FormatError is returned
// when raw is not a parseable PDF.
func PageCount(raw []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(raw), conf())
	if err != nil {
		return 0, &model.FormatError{Err: err}
	}
	return n, nil
}

// SplitPages separates raw into one single-page PDF per page, preserving
// page order. A zero-page container yields an empty slice. Each returned
// element is a standalone, parseable PDF.
func SplitPages(raw []byte) ([][]byte, error) {
	count, err := PageCount(raw)
	if err != nil {
		return nil, err
	}

	pages := make([][]byte, 0, count)
	for pageNr := 1; pageNr <= count; pageNr++ {
		var buf bytes.Buffer
		sel := []string{strconv.Itoa(pageNr)}
		if err := api.Trim(bytes.NewReader(raw), &buf, sel, conf()); err != nil {
			return nil, &model.FormatError{Err: eris.Wrapf(err, "pdf: extract page %d", pageNr)}
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// MergePages concatenates single-page PDFs into one container, preserving
// input order. Merging an empty sequence is a caller error; the pipeline
// never does it because groups are non-empty.
func MergePages(pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, eris.New("pdf: merge requires at least one page")
	}
	if len(pages) == 1 {
		out := make([]byte, len(pages[0]))
		copy(out, pages[0])
		return out, nil
	}

	readers := make([]io.ReadSeeker, len(pages))
	for i, p := range pages {
		readers[i] = bytes.NewReader(p)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, conf()); err != nil {
		return nil, &model.FormatError{Err: eris.Wrap(err, "pdf: merge pages")}
	}
	return buf.Bytes(), nil
}
