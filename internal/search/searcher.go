// Package search provides the knowledge-base lookup the orchestrator
// consults before answering. Results are rendered as a compact context
// string, one "[category] text" line per hit, so agents can read them
// directly.
package search

import (
	"context"
	"strings"
)

// NoResults is the sentinel context string returned when a query
// matches nothing. Agents compare against it to decide whether the
// knowledge base contributed anything.
const NoResults = "No results found."

// Hit is one knowledge-base match.
type Hit struct {
	Category string
	Text     string
	Score    float32
}

// Searcher answers free-text queries against a knowledge base.
type Searcher interface {
	// Query returns a rendered context string for the text, or
	// NoResults when nothing matches.
	Query(ctx context.Context, text string) (string, error)
}

// Render flattens hits into the context-string format.
func Render(hits []Hit) string {
	if len(hits) == 0 {
		return NoResults
	}
	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		category := hit.Category
		if category == "" {
			category = "unknown"
		}
		lines = append(lines, "["+category+"] "+hit.Text)
	}
	return strings.Join(lines, "\n")
}

// StaticSearcher serves a fixed document set with substring matching.
// It backs offline runs and tests where no vector store is available.
type StaticSearcher struct {
	docs []Hit
}

// NewStaticSearcher creates a searcher over the given documents.
func NewStaticSearcher(docs []Hit) *StaticSearcher {
	return &StaticSearcher{docs: docs}
}

var _ Searcher = (*StaticSearcher)(nil)

// Query returns every document whose text or category contains a word
// of the query, case-insensitively.
func (s *StaticSearcher) Query(_ context.Context, text string) (string, error) {
	words := strings.Fields(strings.ToLower(text))
	var hits []Hit
	for _, doc := range s.docs {
		haystack := strings.ToLower(doc.Category + " " + doc.Text)
		for _, word := range words {
			if strings.Contains(haystack, word) {
				hits = append(hits, doc)
				break
			}
		}
	}
	return Render(hits), nil
}
