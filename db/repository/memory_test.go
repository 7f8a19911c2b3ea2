package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDocumentRepositoryCRUD(t *testing.T) {
	repo := NewInMemoryDocumentRepository()
	ctx := context.Background()

	id, err := repo.CreateDocument(ctx, &Document{Filename: "paper.pdf", OwnerID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	doc, err := repo.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", doc.Filename)

	doc.Title = "Updated Title"
	require.NoError(t, repo.UpdateDocument(ctx, doc))

	refetched, err := repo.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", refetched.Title)

	require.NoError(t, repo.DeleteDocument(ctx, id))
	_, err = repo.GetDocument(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryDocumentRepositoryScopedByOwner(t *testing.T) {
	repo := NewInMemoryDocumentRepository()
	ctx := context.Background()

	_, err := repo.CreateDocument(ctx, &Document{Filename: "a.pdf", OwnerID: "user-1"})
	require.NoError(t, err)
	_, err = repo.CreateDocument(ctx, &Document{Filename: "b.pdf", OwnerID: "user-2"})
	require.NoError(t, err)

	count, err := repo.CountDocumentsByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	docs, err := repo.ListDocumentsByOwner(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Filename)
}

func TestInMemoryJobRepositoryLifecycle(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	job := &ProcessingJob{ID: "job-1", Status: JobPending, OwnerID: "user-1"}
	require.NoError(t, repo.CreateJob(ctx, job))

	job.Status = JobProcessing
	require.NoError(t, repo.UpdateJob(ctx, job))

	fetched, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, fetched.Status)

	require.NoError(t, repo.AppendStep(ctx, &ProcessingStep{JobID: "job-1", StepIndex: 0, StepName: "extract_text", Status: StepCompleted}))
	require.NoError(t, repo.AppendStep(ctx, &ProcessingStep{JobID: "job-1", StepIndex: 1, StepName: "ocr_check", Status: StepCompleted}))

	steps, err := repo.ListSteps(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 0, steps[0].StepIndex)
	assert.Equal(t, 1, steps[1].StepIndex)
}

func TestInMemoryJobRepositoryBatchGrouping(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-1", BatchID: "batch-1", OwnerID: "user-1"}))
	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-2", BatchID: "batch-1", OwnerID: "user-1"}))
	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-3", BatchID: "batch-2", OwnerID: "user-1"}))

	batch, err := repo.ListJobsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestInMemoryJobRepositoryListBatchIDsByOwnerExcludesUnbatchedAndOtherOwners(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-1", BatchID: "batch-1", OwnerID: "user-1"}))
	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-2", BatchID: "batch-2", OwnerID: "user-1"}))
	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-3", OwnerID: "user-1"}))
	require.NoError(t, repo.CreateJob(ctx, &ProcessingJob{ID: "job-4", BatchID: "batch-3", OwnerID: "user-2"}))

	ids, err := repo.ListBatchIDsByOwner(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"batch-1", "batch-2"}, ids)
}

func TestInMemoryChunkRepositoryContiguousIndices(t *testing.T) {
	repo := NewInMemoryChunkRepository()
	ctx := context.Background()

	chunks := []*Chunk{
		{ID: "c0", DocumentID: 1, ChunkIndex: 0, Text: "a"},
		{ID: "c1", DocumentID: 1, ChunkIndex: 1, Text: "b"},
		{ID: "c2", DocumentID: 1, ChunkIndex: 2, Text: "c"},
	}
	require.NoError(t, repo.SaveChunks(ctx, 1, chunks))

	got, err := repo.ListChunksByDocument(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.ChunkIndex, "chunk indices must be contiguous from 0")
	}
}

func TestInMemoryChunkRepositoryDeleteByDocumentIsTransactional(t *testing.T) {
	repo := NewInMemoryChunkRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveChunks(ctx, 1, []*Chunk{{ID: "c0", DocumentID: 1, ChunkIndex: 0}}))
	require.NoError(t, repo.DeleteChunksByDocument(ctx, 1))

	got, err := repo.ListChunksByDocument(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got, "a search scoped to the deleted document must return zero results")
}

func TestInMemoryChunkRepositorySaveReplacesOnReprocess(t *testing.T) {
	repo := NewInMemoryChunkRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveChunks(ctx, 1, []*Chunk{
		{ID: "old-0", DocumentID: 1, ChunkIndex: 0},
		{ID: "old-1", DocumentID: 1, ChunkIndex: 1},
	}))
	require.NoError(t, repo.SaveChunks(ctx, 1, []*Chunk{
		{ID: "new-0", DocumentID: 1, ChunkIndex: 0},
	}))

	got, err := repo.ListChunksByDocument(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new-0", got[0].ID, "reprocess readers must see only the new chunk set, never a mix")

	_, err = repo.GetChunk(ctx, "old-0")
	assert.ErrorIs(t, err, ErrNotFound)
}
