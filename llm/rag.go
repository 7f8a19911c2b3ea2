package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/scholaris/core/vector"
)

// Source identifies one retrieved chunk that contributed to an answer, so
// the gateway can surface a `sources` field alongside the LLM's text.
type Source struct {
	ChunkID       string
	DocumentID    int64
	DocumentTitle string
	Section       string
	Score         float64
}

// retrieveContext runs a vector search scoped to the given documents (when
// any are named) and renders the hits as a single context block plus the
// Source list the caller can pass through to its response.
func retrieveContext(ctx context.Context, searcher vector.Searcher, userID, query string, documentID *int64, topK int) (string, []Source, error) {
	if searcher == nil {
		return "", nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	resp, err := searcher.Search(ctx, userID, query, topK, vector.SearchFilters{DocumentID: documentID})
	if err != nil {
		return "", nil, fmt.Errorf("llm: retrieving rag context: %w", err)
	}

	var sb strings.Builder
	sources := make([]Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "[%s, section %s]\n%s\n\n", r.DocumentTitle, r.Section, r.Text)
		sources = append(sources, Source{
			ChunkID:       r.ChunkID,
			DocumentID:    r.DocumentID,
			DocumentTitle: r.DocumentTitle,
			Section:       r.Section,
			Score:         r.SimilarityScore,
		})
	}
	return sb.String(), sources, nil
}
