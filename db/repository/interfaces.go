// Package repository defines the persistence contracts for the platform's
// relational store (C1): users and their credentials, documents, processing
// jobs and steps, and indexed chunks. Each interface is implemented against
// pgx in postgres.go and faked in-memory for unit tests, the way the
// teacher's repository package separates CouchDB/Neo4j/Postgres/Redis
// concerns behind small domain interfaces.
package repository

import (
	"context"
	"time"
)

// Document is the durable record of one successfully parsed paper.
type Document struct {
	ID             int64
	Filename       string
	StoragePath    string
	OwnerID        string
	DOI            string
	Title          string
	Authors        []string
	Abstract       string
	Sections       map[string]string
	Tables         []map[string]interface{}
	Figures        []map[string]interface{}
	References     []map[string]interface{}
	OCRApplied     bool
	PageCount      int
	BatchID        string
	UploadedAt     time.Time
}

// JobStatus enumerates a processing job's lifecycle states.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// ProcessingJob tracks one document's ingestion from upload to completion.
type ProcessingJob struct {
	ID          string
	BatchID     string
	Filename    string
	ByteSize    int64
	Status      JobStatus
	Progress    int
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	OwnerID     string
	DocumentID  *int64
	Metadata    map[string]interface{}
}

// StepStatus enumerates a single processing step's outcome.
type StepStatus string

const (
	StepStarted   StepStatus = "started"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ProcessingStep is one append-only audit entry for a job's pipeline stage.
type ProcessingStep struct {
	ID         int64
	JobID      string
	StepIndex  int
	StepName   string
	Status     StepStatus
	Message    string
	Detail     map[string]interface{}
	DurationMS int64
	Timestamp  time.Time
}

// ChunkKind enumerates the structural role of a chunk's source text.
type ChunkKind string

const (
	ChunkText    ChunkKind = "text"
	ChunkHeading ChunkKind = "heading"
	ChunkCaption ChunkKind = "caption"
)

// Chunk is one embedded, searchable slice of a document.
type Chunk struct {
	ID         string
	DocumentID int64
	ChunkIndex int
	Text       string
	Section    string
	Page       *int
	Kind       ChunkKind
	Embedding  []float32
	CreatedAt  time.Time
}

// SearchQueryLog records one search request for observability.
type SearchQueryLog struct {
	ID          int64
	Query       string
	Timestamp   time.Time
	UserID      string
	ResultCount int
	LatencyMS   int64
}

// DocumentRepository persists documents and cascades deletes to their chunks.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *Document) (int64, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	DeleteDocument(ctx context.Context, id int64) error
	ListDocumentsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Document, error)
	CountDocumentsByOwner(ctx context.Context, ownerID string) (int, error)
}

// JobRepository persists processing jobs and their step audit trail.
type JobRepository interface {
	CreateJob(ctx context.Context, job *ProcessingJob) error
	GetJob(ctx context.Context, id string) (*ProcessingJob, error)
	UpdateJob(ctx context.Context, job *ProcessingJob) error
	ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ProcessingJob, error)
	ListJobsByBatch(ctx context.Context, batchID string) ([]*ProcessingJob, error)
	// ListBatchIDsByOwner returns ownerID's distinct non-empty batch handles,
	// most recently active first, for the gateway's batch-listing endpoint.
	ListBatchIDsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]string, error)

	AppendStep(ctx context.Context, step *ProcessingStep) error
	ListSteps(ctx context.Context, jobID string) ([]*ProcessingStep, error)
}

// ChunkRepository persists a document's embedded chunks as one atomic batch
// and removes them transactionally with their owning document.
type ChunkRepository interface {
	SaveChunks(ctx context.Context, documentID int64, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error)
	ListAllChunks(ctx context.Context) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) error
}

// SearchLogRepository records search queries for observability.
type SearchLogRepository interface {
	LogQuery(ctx context.Context, entry *SearchQueryLog) error
}
