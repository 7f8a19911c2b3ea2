package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/vector"
)

func newTestService(t *testing.T) (*Service, repository.DocumentRepository) {
	t.Helper()
	docs := repository.NewInMemoryDocumentRepository()

	idx, err := vector.NewMemoryIndex(16)
	require.NoError(t, err)
	embedder := vector.NewStubEmbedder(16, false)
	chunks := repository.NewInMemoryChunkRepository()
	searcher, err := vector.NewService(vector.NewChunker(200, 20), embedder, idx, chunks, docs, repository.NewInMemorySearchLogRepository())
	require.NoError(t, err)

	reg := NewRegistry("stub")
	reg.Register(NewStubProvider())

	return NewService(reg, docs, searcher, 5), docs
}

func TestService_AnalyzeWithoutRAG(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()

	docID, err := docs.CreateDocument(ctx, &repository.Document{
		Title:    "Test Paper",
		Abstract: "this paper studies things",
		Sections: map[string]string{"methodology": "we did an experiment"},
	})
	require.NoError(t, err)

	result, err := svc.Analyze(ctx, "user-1", AnalyzeRequest{
		DocumentID:   docID,
		AnalysisType: "summary",
		UseRAG:       false,
	})
	require.NoError(t, err)
	assert.Equal(t, "stub", result.ProviderUsed)
	assert.NotEmpty(t, result.Result)
}

func TestService_AnalyzeRejectsInvalidType(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	docID, _ := docs.CreateDocument(ctx, &repository.Document{Title: "X"})

	_, err := svc.Analyze(ctx, "user-1", AnalyzeRequest{DocumentID: docID, AnalysisType: "not_real"})
	assert.Error(t, err)
}

func TestService_AnalyzeCustomRequiresPrompt(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	docID, _ := docs.CreateDocument(ctx, &repository.Document{Title: "X"})

	_, err := svc.Analyze(ctx, "user-1", AnalyzeRequest{DocumentID: docID, AnalysisType: "custom"})
	assert.Error(t, err)
}

func TestService_CompareRejectsOutOfRangeCounts(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	docID, _ := docs.CreateDocument(ctx, &repository.Document{Title: "Solo"})

	_, err := svc.Compare(ctx, CompareRequest{DocumentIDs: []int64{docID}})
	assert.Error(t, err)

	_, err = svc.Compare(ctx, CompareRequest{DocumentIDs: []int64{1, 2, 3, 4, 5, 6}})
	assert.Error(t, err)
}

func TestService_CompareSucceedsWithinRange(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()
	a, _ := docs.CreateDocument(ctx, &repository.Document{Title: "A", Abstract: "alpha"})
	b, _ := docs.CreateDocument(ctx, &repository.Document{Title: "B", Abstract: "beta"})

	result, err := svc.Compare(ctx, CompareRequest{DocumentIDs: []int64{a, b}, ComparisonAspects: []string{"methodology"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a, b}, result.DocumentsCompared)
	assert.NotEmpty(t, result.Comparison)
}

func TestService_ChatWithoutRAG(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Chat(ctx, "user-1", ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Result)
}

func TestService_QuestionWithRAG(t *testing.T) {
	svc, docs := newTestService(t)
	ctx := context.Background()

	docID, err := docs.CreateDocument(ctx, &repository.Document{Title: "RAG Doc"})
	require.NoError(t, err)
	_, err = svc.searcher.IndexDocument(ctx, docID, "RAG Doc", map[string]string{"abstract": "gradient descent optimization details"})
	require.NoError(t, err)

	result, err := svc.Question(ctx, "user-1", QuestionRequest{
		Question:    "gradient descent",
		DocumentIDs: []int64{docID},
		UseRAG:      true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Result)
}
