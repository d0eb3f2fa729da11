package chunker

import (
	"iter"
	"strings"

	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

// Chunks turns one parsed document into its chunk sequence, in page order,
// with indices starting at 0. The sequence is lazy and can be ranged over more
// than once. Empty pages still occupy an index so downstream reassembly never
// sees a gap; a document with zero pages yields an empty sequence.
//
// charBudget > 0 splits pages longer than the budget into several chunks,
// cutting at whitespace where possible. Indices stay monotonic across the
// split pieces. charBudget <= 0 keeps one chunk per page.
func Chunks(document data.SourceDocument, charBudget int) iter.Seq[data.ChunkRecord] {
	return func(yield func(data.ChunkRecord) bool) {
		index := 0
		for _, page := range document.Pages {
			for _, piece := range splitPage(page.Text, charBudget) {
				record := data.ChunkRecord{DocumentID: document.ID, Index: index}
				if piece != "" {
					content := piece
					record.Content = &content
				}
				index++
				if !yield(record) {
					return
				}
			}
		}
	}
}

// Count reports how many chunks Chunks would yield for the document.
func Count(document data.SourceDocument, charBudget int) int {
	total := 0
	for _, page := range document.Pages {
		total += len(splitPage(page.Text, charBudget))
	}
	return total
}

func splitPage(text string, budget int) []string {
	if budget <= 0 || len(text) <= budget {
		return []string{text}
	}

	var pieces []string
	for len(text) > budget {
		cut := budget
		// prefer a whitespace boundary in the back half of the window
		if boundary := strings.LastIndexAny(text[:budget], " \t\n"); boundary > budget/2 {
			cut = boundary + 1
		}
		pieces = append(pieces, strings.TrimRight(text[:cut], " \t\n"))
		text = text[cut:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}
