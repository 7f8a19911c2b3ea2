package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryDocumentRepository is a test double for DocumentRepository.
type InMemoryDocumentRepository struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*Document
}

func NewInMemoryDocumentRepository() *InMemoryDocumentRepository {
	return &InMemoryDocumentRepository{byID: make(map[int64]*Document)}
}

func (r *InMemoryDocumentRepository) CreateDocument(ctx context.Context, doc *Document) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	cp := *doc
	r.byID[doc.ID] = &cp
	return doc.ID, nil
}

func (r *InMemoryDocumentRepository) GetDocument(ctx context.Context, id int64) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *InMemoryDocumentRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; !ok {
		return ErrNotFound
	}
	cp := *doc
	r.byID[doc.ID] = &cp
	return nil
}

func (r *InMemoryDocumentRepository) DeleteDocument(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *InMemoryDocumentRepository) ListDocumentsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owned []*Document
	for _, doc := range r.byID {
		if doc.OwnerID == ownerID {
			cp := *doc
			owned = append(owned, &cp)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].UploadedAt.After(owned[j].UploadedAt) })
	return paginate(owned, limit, offset), nil
}

func (r *InMemoryDocumentRepository) CountDocumentsByOwner(ctx context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, doc := range r.byID {
		if doc.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func paginate(docs []*Document, limit, offset int) []*Document {
	if offset >= len(docs) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end]
}

// InMemoryJobRepository is a test double for JobRepository.
type InMemoryJobRepository struct {
	mu    sync.Mutex
	jobs  map[string]*ProcessingJob
	steps map[string][]*ProcessingStep
}

func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:  make(map[string]*ProcessingJob),
		steps: make(map[string][]*ProcessingStep),
	}
}

func (r *InMemoryJobRepository) CreateJob(ctx context.Context, job *ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *InMemoryJobRepository) GetJob(ctx context.Context, id string) (*ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *InMemoryJobRepository) UpdateJob(ctx context.Context, job *ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *InMemoryJobRepository) ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owned []*ProcessingJob
	for _, job := range r.jobs {
		if job.OwnerID == ownerID {
			cp := *job
			owned = append(owned, &cp)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })
	if offset >= len(owned) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (r *InMemoryJobRepository) ListJobsByBatch(ctx context.Context, batchID string) ([]*ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var batch []*ProcessingJob
	for _, job := range r.jobs {
		if job.BatchID == batchID {
			cp := *job
			batch = append(batch, &cp)
		}
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].CreatedAt.Before(batch[j].CreatedAt) })
	return batch, nil
}

func (r *InMemoryJobRepository) ListBatchIDsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastSeen := make(map[string]time.Time)
	for _, job := range r.jobs {
		if job.OwnerID != ownerID || job.BatchID == "" {
			continue
		}
		if seen, ok := lastSeen[job.BatchID]; !ok || job.CreatedAt.After(seen) {
			lastSeen[job.BatchID] = job.CreatedAt
		}
	}

	ids := make([]string, 0, len(lastSeen))
	for id := range lastSeen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lastSeen[ids[i]].After(lastSeen[ids[j]]) })

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end], nil
}

func (r *InMemoryJobRepository) AppendStep(ctx context.Context, step *ProcessingStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *step
	r.steps[step.JobID] = append(r.steps[step.JobID], &cp)
	return nil
}

func (r *InMemoryJobRepository) ListSteps(ctx context.Context, jobID string) ([]*ProcessingStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.steps[jobID]
	out := make([]*ProcessingStep, len(steps))
	copy(out, steps)
	return out, nil
}

// InMemoryChunkRepository is a test double for ChunkRepository.
type InMemoryChunkRepository struct {
	mu        sync.Mutex
	byDocID   map[int64][]*Chunk
}

func NewInMemoryChunkRepository() *InMemoryChunkRepository {
	return &InMemoryChunkRepository{byDocID: make(map[int64][]*Chunk)}
}

func (r *InMemoryChunkRepository) SaveChunks(ctx context.Context, documentID int64, chunks []*Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]*Chunk, len(chunks))
	for i, c := range chunks {
		cc := *c
		cp[i] = &cc
	}
	r.byDocID[documentID] = cp
	return nil
}

func (r *InMemoryChunkRepository) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunks := range r.byDocID {
		for _, c := range chunks {
			if c.ID == id {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryChunkRepository) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunks := r.byDocID[documentID]
	out := make([]*Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

func (r *InMemoryChunkRepository) ListAllChunks(ctx context.Context) ([]*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Chunk
	for _, chunks := range r.byDocID {
		all = append(all, chunks...)
	}
	return all, nil
}

func (r *InMemoryChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byDocID, documentID)
	return nil
}

// InMemorySearchLogRepository is a test double for SearchLogRepository.
type InMemorySearchLogRepository struct {
	mu      sync.Mutex
	Entries []*SearchQueryLog
}

func NewInMemorySearchLogRepository() *InMemorySearchLogRepository {
	return &InMemorySearchLogRepository{}
}

func (r *InMemorySearchLogRepository) LogQuery(ctx context.Context, entry *SearchQueryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
	return nil
}
