package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorIndexer struct {
	chunkCount int
	err        error
	deleted    []int64
}

func (f *fakeVectorIndexer) IndexDocument(ctx context.Context, documentID int64, title string, sections map[string]string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.chunkCount, nil
}

func (f *fakeVectorIndexer) DeleteChunks(ctx context.Context, documentID int64) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

type fakeDocumentPersister struct {
	nextID  int64
	err     error
	deleted []int64
}

func (f *fakeDocumentPersister) Persist(ctx context.Context, jc *JobContext) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeDocumentPersister) Delete(ctx context.Context, documentID int64) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipelineHappyPath(t *testing.T) {
	body := ""
	for i := 0; i < 60; i++ {
		body += "word "
	}
	content := "Abstract\n" + body + "\nIntroduction\nIntro text.\nReferences\n[1] Someone, 10.1000/xyz.\n"
	path := writeTempFile(t, content)

	vec := &fakeVectorIndexer{chunkCount: 4}
	docs := &fakeDocumentPersister{}
	p := NewPipeline(NewStubExtractor(), NewStubOCREngine(), NewStubDOIValidator(), vec, docs)

	jc := &JobContext{FilePath: path, OriginalFilename: "paper.pdf"}
	ctx := context.Background()

	for _, step := range p.Steps() {
		detail, err := step.Run(ctx, jc)
		require.NoError(t, err, "step %s", step.Name)
		assert.NotNil(t, detail)
	}

	assert.Equal(t, int64(1), jc.DocumentID)
	assert.Equal(t, 4, jc.ChunkCount)
	assert.Contains(t, jc.Sections, "abstract")
	assert.Equal(t, "10.1000/xyz", jc.DOI)
}

func TestPipelineExtractTextTerminalOnMissingFile(t *testing.T) {
	vec := &fakeVectorIndexer{}
	docs := &fakeDocumentPersister{}
	p := NewPipeline(NewStubExtractor(), NewStubOCREngine(), NewStubDOIValidator(), vec, docs)

	jc := &JobContext{FilePath: "/nonexistent/path.pdf"}
	steps := p.Steps()
	_, err := steps[0].Run(context.Background(), jc)
	require.Error(t, err)
	assert.False(t, IsTransient(err), "extract_text failures are terminal (malformed/missing input) per spec.md §4.3")
}

func TestPipelineIndexVectorsFailureIsNonFatal(t *testing.T) {
	content := "Introduction\nSome text here that is long enough to matter for the test."
	path := writeTempFile(t, content)

	vec := &fakeVectorIndexer{err: errors.New("embedding service unavailable")}
	docs := &fakeDocumentPersister{}
	p := NewPipeline(NewStubExtractor(), NewStubOCREngine(), NewStubDOIValidator(), vec, docs)

	jc := &JobContext{FilePath: path, OriginalFilename: "paper.pdf"}
	ctx := context.Background()

	for _, step := range p.Steps() {
		detail, err := step.Run(ctx, jc)
		require.NoError(t, err, "step %s must not fail the job on indexing error", step.Name)
		if step.Name == "index_vectors" {
			assert.Contains(t, detail, "warning")
		}
	}
	// The document is still persisted and the job completes despite the
	// indexing failure; only the chunk count stays zero.
	assert.Equal(t, int64(1), jc.DocumentID)
	assert.Equal(t, 0, jc.ChunkCount)
}

func TestPipelinePersistDocumentTerminalOnFailure(t *testing.T) {
	content := "Introduction\nSome text."
	path := writeTempFile(t, content)

	vec := &fakeVectorIndexer{}
	docs := &fakeDocumentPersister{err: errors.New("unique constraint violation")}
	p := NewPipeline(NewStubExtractor(), NewStubOCREngine(), NewStubDOIValidator(), vec, docs)

	jc := &JobContext{FilePath: path, OriginalFilename: "paper.pdf"}
	ctx := context.Background()
	steps := p.Steps()

	for _, step := range steps {
		if step.Name == "persist_document" {
			_, err := step.Run(ctx, jc)
			require.Error(t, err)
			assert.False(t, IsTransient(err), "persistence constraint violations do not retry per spec.md §4.3")
			return
		}
		_, err := step.Run(ctx, jc)
		require.NoError(t, err)
	}
}

func TestPipelineOCRCheckAppliesAboveConfidenceThreshold(t *testing.T) {
	// Binary-ish content with low printable-character density triggers the
	// scanned-document heuristic and the OCR fallback step.
	content := string([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	path := writeTempFile(t, content)

	vec := &fakeVectorIndexer{}
	docs := &fakeDocumentPersister{}
	p := NewPipeline(NewStubExtractor(), NewStubOCREngine(), NewStubDOIValidator(), vec, docs)

	jc := &JobContext{FilePath: path, OriginalFilename: "scan.pdf"}
	ctx := context.Background()
	steps := p.Steps()

	_, err := steps[0].Run(ctx, jc)
	require.NoError(t, err)
	assert.True(t, jc.Extracted.Confidence >= 0.7)

	detail, err := steps[1].Run(ctx, jc)
	require.NoError(t, err)
	assert.Equal(t, true, detail["applied"])
	assert.True(t, jc.OCRApplied)
}

func TestDeriveTitleFromFilename(t *testing.T) {
	assert.Equal(t, "paper", deriveTitleFromFilename("paper.pdf"))
	assert.Equal(t, "no-extension", deriveTitleFromFilename("no-extension"))
}
