package ingest

import (
	"context"
	"time"

	"github.com/scholaris/core/db/repository"
)

// RepositoryDocumentPersister adapts repository.DocumentRepository to the
// pipeline's narrow documentPersister contract, and implements reprocessing
// (replace derived fields atomically, on failure preserve prior state).
type RepositoryDocumentPersister struct {
	Documents repository.DocumentRepository
}

func NewRepositoryDocumentPersister(documents repository.DocumentRepository) *RepositoryDocumentPersister {
	return &RepositoryDocumentPersister{Documents: documents}
}

func (p *RepositoryDocumentPersister) Persist(ctx context.Context, jc *JobContext) (int64, error) {
	doc := &repository.Document{
		Filename:    jc.OriginalFilename,
		StoragePath: jc.FilePath,
		OwnerID:     jc.OwnerID,
		DOI:         jc.DOI,
		Title:       jc.Title,
		Authors:     jc.Authors,
		Abstract:    jc.Sections["abstract"],
		Sections:    jc.Sections,
		Tables:      jc.Tables,
		Figures:     jc.Figures,
		References:  jc.References,
		OCRApplied:  jc.OCRApplied,
		PageCount:   jc.PageCount,
		BatchID:     jc.BatchID,
		UploadedAt:  time.Now(),
	}
	return p.Documents.CreateDocument(ctx, doc)
}

// Delete removes a document row, used by Pipeline.Rollback to undo a
// persist_document commit when the job is cancelled before finishing.
func (p *RepositoryDocumentPersister) Delete(ctx context.Context, documentID int64) error {
	return p.Documents.DeleteDocument(ctx, documentID)
}

// Reprocess replaces a document's derived fields from a freshly run
// JobContext, atomically from the caller's point of view: on failure the
// previous document row is left untouched. Chunk replacement (delete old,
// index new) is the caller's responsibility once persistence succeeds,
// matching §4.3's "on success the original chunks are deleted... and new
// ones written; on failure the previous state is preserved."
func (p *RepositoryDocumentPersister) Reprocess(ctx context.Context, documentID int64, jc *JobContext) error {
	existing, err := p.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	existing.DOI = jc.DOI
	existing.Title = jc.Title
	existing.Authors = jc.Authors
	existing.Abstract = jc.Sections["abstract"]
	existing.Sections = jc.Sections
	existing.Tables = jc.Tables
	existing.Figures = jc.Figures
	existing.References = jc.References
	existing.OCRApplied = jc.OCRApplied
	existing.PageCount = jc.PageCount
	return p.Documents.UpdateDocument(ctx, existing)
}
