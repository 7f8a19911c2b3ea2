package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/db/repository"
)

func newTestService(t *testing.T) (*Service, repository.DocumentRepository) {
	t.Helper()
	idx, err := NewMemoryIndex(16)
	require.NoError(t, err)
	embedder := NewStubEmbedder(16, false)
	docs := repository.NewInMemoryDocumentRepository()
	svc, err := NewService(NewChunker(500, 50), embedder, idx,
		repository.NewInMemoryChunkRepository(), docs, repository.NewInMemorySearchLogRepository())
	require.NoError(t, err)
	return svc, docs
}

func TestService_IndexAndSearchRoundTrip(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()

	docID, err := docs.CreateDocument(ctx, &repository.Document{Title: "Attention Is All You Need"})
	require.NoError(t, err)

	count, err := svc.IndexDocument(ctx, docID, "Attention Is All You Need", map[string]string{
		"abstract":     "we propose a new architecture based on attention",
		"introduction": "recurrent models have dominated sequence transduction",
	})
	require.NoError(t, err)
	assert.Positive(t, count)

	resp, err := svc.Search(ctx, "user-1", "attention", 5, SearchFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Attention Is All You Need", resp.Results[0].DocumentTitle)
	assert.GreaterOrEqual(t, resp.SearchTimeMS, int64(0))
}

func TestService_SearchRejectsOutOfRangeMaxResults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, "user-1", "q", 0, SearchFilters{})
	assert.Error(t, err)

	_, err = svc.Search(ctx, "user-1", "q", 101, SearchFilters{})
	assert.Error(t, err)
}

func TestService_SearchFiltersByDocumentID(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()

	docA, _ := docs.CreateDocument(ctx, &repository.Document{Title: "Doc A"})
	docB, _ := docs.CreateDocument(ctx, &repository.Document{Title: "Doc B"})
	_, err := svc.IndexDocument(ctx, docA, "Doc A", map[string]string{"abstract": "alpha content about gradient descent"})
	require.NoError(t, err)
	_, err = svc.IndexDocument(ctx, docB, "Doc B", map[string]string{"abstract": "beta content about gradient descent"})
	require.NoError(t, err)

	resp, err := svc.Search(ctx, "user-1", "gradient descent", 10, SearchFilters{DocumentID: &docA})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, docA, r.DocumentID)
	}
}

func TestService_DeleteChunksRemovesFromIndexAndStore(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()

	docID, _ := docs.CreateDocument(ctx, &repository.Document{Title: "To Delete"})
	_, err := svc.IndexDocument(ctx, docID, "To Delete", map[string]string{"abstract": "content slated for removal"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChunks(ctx, docID))

	resp, err := svc.Search(ctx, "user-1", "removal", 10, SearchFilters{DocumentID: &docID})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestNewService_RejectsDimensionMismatch(t *testing.T) {
	idx, err := NewMemoryIndex(8)
	require.NoError(t, err)
	embedder := NewStubEmbedder(16, false)
	_, err = NewService(NewChunker(500, 50), embedder, idx,
		repository.NewInMemoryChunkRepository(), repository.NewInMemoryDocumentRepository(), nil)
	assert.Error(t, err)
}
