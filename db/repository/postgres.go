package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scholaris/core/db"
)

// PostgresDocumentRepository implements DocumentRepository using pgx.
type PostgresDocumentRepository struct {
	db *db.PostgresDB
}

func NewPostgresDocumentRepository(pg *db.PostgresDB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{db: pg}
}

func (r *PostgresDocumentRepository) CreateDocument(ctx context.Context, doc *Document) (int64, error) {
	sections, err := json.Marshal(doc.Sections)
	if err != nil {
		return 0, fmt.Errorf("marshaling sections: %w", err)
	}
	tables, err := json.Marshal(doc.Tables)
	if err != nil {
		return 0, fmt.Errorf("marshaling tables: %w", err)
	}
	figures, err := json.Marshal(doc.Figures)
	if err != nil {
		return 0, fmt.Errorf("marshaling figures: %w", err)
	}
	refs, err := json.Marshal(doc.References)
	if err != nil {
		return 0, fmt.Errorf("marshaling references: %w", err)
	}
	authors, err := json.Marshal(doc.Authors)
	if err != nil {
		return 0, fmt.Errorf("marshaling authors: %w", err)
	}

	var id int64
	row := r.db.QueryRow(ctx, `
		INSERT INTO documents
			(filename, storage_path, owner_id, doi, title, authors, abstract,
			 sections, tables, figures, references_data, ocr_applied, page_count,
			 batch_id, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`,
		doc.Filename, doc.StoragePath, doc.OwnerID, doc.DOI, doc.Title, authors,
		doc.Abstract, sections, tables, figures, refs, doc.OCRApplied,
		doc.PageCount, doc.BatchID, doc.UploadedAt,
	)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresDocumentRepository) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, filename, storage_path, owner_id, doi, title, authors, abstract,
		       sections, tables, figures, references_data, ocr_applied, page_count,
		       batch_id, uploaded_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

func (r *PostgresDocumentRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	sections, _ := json.Marshal(doc.Sections)
	tables, _ := json.Marshal(doc.Tables)
	figures, _ := json.Marshal(doc.Figures)
	refs, _ := json.Marshal(doc.References)
	authors, _ := json.Marshal(doc.Authors)

	return r.db.Exec(ctx, `
		UPDATE documents SET
			title = $1, authors = $2, abstract = $3, sections = $4,
			tables = $5, figures = $6, references_data = $7,
			ocr_applied = $8, page_count = $9, doi = $10
		WHERE id = $11
	`, doc.Title, authors, doc.Abstract, sections, tables, figures, refs,
		doc.OCRApplied, doc.PageCount, doc.DOI, doc.ID)
}

func (r *PostgresDocumentRepository) DeleteDocument(ctx context.Context, id int64) error {
	return r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *PostgresDocumentRepository) ListDocumentsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, filename, storage_path, owner_id, doi, title, authors, abstract,
		       sections, tables, figures, references_data, ocr_applied, page_count,
		       batch_id, uploaded_at
		FROM documents WHERE owner_id = $1
		ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PostgresDocumentRepository) CountDocumentsByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	row := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE owner_id = $1`, ownerID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// scannable abstracts pgx.Row and pgx.Rows, both of which expose Scan.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scannable) (*Document, error) {
	var doc Document
	var authorsJSON, sectionsJSON, tablesJSON, figuresJSON, refsJSON []byte
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.StoragePath, &doc.OwnerID, &doc.DOI,
		&doc.Title, &authorsJSON, &doc.Abstract, &sectionsJSON, &tablesJSON,
		&figuresJSON, &refsJSON, &doc.OCRApplied, &doc.PageCount, &doc.BatchID,
		&doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(authorsJSON, &doc.Authors)
	_ = json.Unmarshal(sectionsJSON, &doc.Sections)
	_ = json.Unmarshal(tablesJSON, &doc.Tables)
	_ = json.Unmarshal(figuresJSON, &doc.Figures)
	_ = json.Unmarshal(refsJSON, &doc.References)
	return &doc, nil
}

// PostgresJobRepository implements JobRepository using pgx.
type PostgresJobRepository struct {
	db *db.PostgresDB
}

func NewPostgresJobRepository(pg *db.PostgresDB) *PostgresJobRepository {
	return &PostgresJobRepository{db: pg}
}

func (r *PostgresJobRepository) CreateJob(ctx context.Context, job *ProcessingJob) error {
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling job metadata: %w", err)
	}
	return r.db.Exec(ctx, `
		INSERT INTO processing_jobs
			(id, batch_id, filename, byte_size, status, progress, error,
			 created_at, owner_id, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, job.ID, job.BatchID, job.Filename, job.ByteSize, job.Status,
		job.Progress, job.Error, job.CreatedAt, job.OwnerID, metadata)
}

func (r *PostgresJobRepository) GetJob(ctx context.Context, id string) (*ProcessingJob, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, batch_id, filename, byte_size, status, progress, error,
		       created_at, started_at, completed_at, owner_id, document_id, metadata
		FROM processing_jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

func (r *PostgresJobRepository) UpdateJob(ctx context.Context, job *ProcessingJob) error {
	metadata, _ := json.Marshal(job.Metadata)
	return r.db.Exec(ctx, `
		UPDATE processing_jobs SET
			status = $1, progress = $2, error = $3, started_at = $4,
			completed_at = $5, document_id = $6, metadata = $7
		WHERE id = $8
	`, job.Status, job.Progress, job.Error, job.StartedAt, job.CompletedAt,
		job.DocumentID, metadata, job.ID)
}

func (r *PostgresJobRepository) ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ProcessingJob, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, batch_id, filename, byte_size, status, progress, error,
		       created_at, started_at, completed_at, owner_id, document_id, metadata
		FROM processing_jobs WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepository) ListJobsByBatch(ctx context.Context, batchID string) ([]*ProcessingJob, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, batch_id, filename, byte_size, status, progress, error,
		       created_at, started_at, completed_at, owner_id, document_id, metadata
		FROM processing_jobs WHERE batch_id = $1
		ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepository) ListBatchIDsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT batch_id
		FROM processing_jobs
		WHERE owner_id = $1 AND batch_id <> ''
		GROUP BY batch_id
		ORDER BY MAX(created_at) DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row scannable) (*ProcessingJob, error) {
	var job ProcessingJob
	var metadataJSON []byte
	var status string
	err := row.Scan(
		&job.ID, &job.BatchID, &job.Filename, &job.ByteSize, &status,
		&job.Progress, &job.Error, &job.CreatedAt, &job.StartedAt,
		&job.CompletedAt, &job.OwnerID, &job.DocumentID, &metadataJSON,
	)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	_ = json.Unmarshal(metadataJSON, &job.Metadata)
	return &job, nil
}

func (r *PostgresJobRepository) AppendStep(ctx context.Context, step *ProcessingStep) error {
	detail, err := json.Marshal(step.Detail)
	if err != nil {
		return fmt.Errorf("marshaling step detail: %w", err)
	}
	return r.db.Exec(ctx, `
		INSERT INTO processing_steps
			(job_id, step_index, step_name, status, message, detail, duration_ms, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, step.JobID, step.StepIndex, step.StepName, step.Status, step.Message,
		detail, step.DurationMS, step.Timestamp)
}

func (r *PostgresJobRepository) ListSteps(ctx context.Context, jobID string) ([]*ProcessingStep, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, job_id, step_index, step_name, status, message, detail, duration_ms, timestamp
		FROM processing_steps WHERE job_id = $1 ORDER BY step_index ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*ProcessingStep
	for rows.Next() {
		var step ProcessingStep
		var detailJSON []byte
		var status string
		if err := rows.Scan(&step.ID, &step.JobID, &step.StepIndex, &step.StepName,
			&status, &step.Message, &detailJSON, &step.DurationMS, &step.Timestamp); err != nil {
			return nil, err
		}
		step.Status = StepStatus(status)
		_ = json.Unmarshal(detailJSON, &step.Detail)
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

// PostgresChunkRepository implements ChunkRepository using pgx, storing the
// embedding vector as a JSON-encoded float array (pgvector is not in the
// example pack's dependency set, see DESIGN.md).
type PostgresChunkRepository struct {
	db *db.PostgresDB
}

func NewPostgresChunkRepository(pg *db.PostgresDB) *PostgresChunkRepository {
	return &PostgresChunkRepository{db: pg}
}

func (r *PostgresChunkRepository) SaveChunks(ctx context.Context, documentID int64, chunks []*Chunk) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		embedding, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks
				(id, document_id, chunk_index, text, section, page, kind, embedding, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, c.ID, documentID, c.ChunkIndex, c.Text, c.Section, c.Page, c.Kind,
			embedding, c.CreatedAt); err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.ChunkIndex, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk batch: %w", err)
	}
	return nil
}

func (r *PostgresChunkRepository) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, document_id, chunk_index, text, section, page, kind, embedding, created_at
		FROM chunks WHERE id = $1
	`, id)
	var c Chunk
	var embeddingJSON []byte
	var kind string
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text,
		&c.Section, &c.Page, &kind, &embeddingJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Kind = ChunkKind(kind)
	_ = json.Unmarshal(embeddingJSON, &c.Embedding)
	return &c, nil
}

func (r *PostgresChunkRepository) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, text, section, page, kind, embedding, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (r *PostgresChunkRepository) ListAllChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, text, section, page, kind, embedding, created_at
		FROM chunks ORDER BY document_id ASC, chunk_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanChunks(rows rowScanner) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var embeddingJSON []byte
		var kind string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text,
			&c.Section, &c.Page, &kind, &embeddingJSON, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = ChunkKind(kind)
		_ = json.Unmarshal(embeddingJSON, &c.Embedding)
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *PostgresChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	return r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
}

// PostgresSearchLogRepository implements SearchLogRepository using pgx.
type PostgresSearchLogRepository struct {
	db *db.PostgresDB
}

func NewPostgresSearchLogRepository(pg *db.PostgresDB) *PostgresSearchLogRepository {
	return &PostgresSearchLogRepository{db: pg}
}

func (r *PostgresSearchLogRepository) LogQuery(ctx context.Context, entry *SearchQueryLog) error {
	return r.db.Exec(ctx, `
		INSERT INTO search_query_logs (query, timestamp, user_id, result_count, latency_ms)
		VALUES ($1,$2,$3,$4,$5)
	`, entry.Query, entry.Timestamp, entry.UserID, entry.ResultCount, entry.LatencyMS)
}
