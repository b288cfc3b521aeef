package pipeline

import "github.com/tramitex/docflow/internal/model"

// Group is a maximal contiguous run of pages sharing one document type.
type Group struct {
	Type  model.DocumentType
	Pages [][]byte
}

// GroupPages partitions pages into maximal contiguous same-type runs,
// following the classification order. Concatenating the groups' pages in
// order reproduces the input exactly; adjacent groups never share a type;
// every group holds at least one page. Empty input yields nil.
func GroupPages(pages [][]byte, classifications []model.PageClassification) []Group {
	if len(classifications) == 0 || len(pages) == 0 {
		return nil
	}

	var groups []Group
	current := Group{
		Type:  classifications[0].Type,
		Pages: [][]byte{pages[0]},
	}

	for i := 1; i < len(classifications) && i < len(pages); i++ {
		if classifications[i].Type == current.Type {
			current.Pages = append(current.Pages, pages[i])
			continue
		}
		groups = append(groups, current)
		current = Group{
			Type:  classifications[i].Type,
			Pages: [][]byte{pages[i]},
		}
	}

	return append(groups, current)
}
