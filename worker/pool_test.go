package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/ingest"
	"github.com/scholaris/core/queue"
)

type fakeVectorIndexer struct{ chunkCount int }

func (f *fakeVectorIndexer) IndexDocument(ctx context.Context, documentID int64, title string, sections map[string]string) (int, error) {
	return f.chunkCount, nil
}
func (f *fakeVectorIndexer) DeleteChunks(ctx context.Context, documentID int64) error { return nil }

func writeTempPaper(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.txt")
	body := ""
	for i := 0; i < 60; i++ {
		body += "word "
	}
	content := "Abstract\n" + body + "\nIntroduction\nIntro text here.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testPool(t *testing.T, broker queue.Broker, jobs repository.JobRepository) *Pool {
	t.Helper()
	documents := repository.NewInMemoryDocumentRepository()
	persister := ingest.NewRepositoryDocumentPersister(documents)
	pipeline := ingest.NewPipeline(
		ingest.NewStubExtractor(),
		ingest.NewStubOCREngine(),
		ingest.NewStubDOIValidator(),
		&fakeVectorIndexer{chunkCount: 3},
		persister,
	)
	cfg := DefaultConfig()
	cfg.Concurrency = map[string]int{queue.QueueDocumentProcessing: 1}
	cfg.Backoff = []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	cfg.DequeueTimeout = 50 * time.Millisecond
	return NewPool(broker, jobs, pipeline, cfg)
}

func waitForTerminal(t *testing.T, jobs repository.JobRepository, jobID string) *repository.ProcessingJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == repository.JobCompleted || job.Status == repository.JobFailed || job.Status == repository.JobCancelled {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return nil
}

func TestPoolProcessesJobToCompletion(t *testing.T) {
	broker := queue.NewMemoryBroker()
	jobs := repository.NewInMemoryJobRepository()
	ctx := context.Background()

	path := writeTempPaper(t)
	job := &repository.ProcessingJob{
		ID:       "job-1",
		Filename: "paper.pdf",
		Status:   repository.JobPending,
		OwnerID:  "user-1",
		Metadata: map[string]interface{}{"file_path": path},
	}
	require.NoError(t, jobs.CreateJob(ctx, job))
	require.NoError(t, broker.Enqueue(ctx, queue.Job{JobID: job.ID, QueueName: queue.QueueDocumentProcessing}))

	pool := testPool(t, broker, jobs)
	pool.Start()
	defer pool.Stop()

	final := waitForTerminal(t, jobs, job.ID)
	assert.Equal(t, repository.JobCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.DocumentID)
	assert.Greater(t, *final.DocumentID, int64(0))

	steps, err := jobs.ListSteps(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 8)
	assert.Equal(t, "extract_text", steps[0].StepName)
	assert.Equal(t, "finalize", steps[len(steps)-1].StepName)
}

func TestPoolSkipsAlreadyCancelledJob(t *testing.T) {
	broker := queue.NewMemoryBroker()
	jobs := repository.NewInMemoryJobRepository()
	ctx := context.Background()

	job := &repository.ProcessingJob{
		ID:       "job-cancelled",
		Filename: "paper.pdf",
		Status:   repository.JobCancelled,
		OwnerID:  "user-1",
		Metadata: map[string]interface{}{"file_path": "/irrelevant"},
	}
	require.NoError(t, jobs.CreateJob(ctx, job))
	require.NoError(t, broker.Enqueue(ctx, queue.Job{JobID: job.ID, QueueName: queue.QueueDocumentProcessing}))

	pool := testPool(t, broker, jobs)
	pool.Start()
	defer pool.Stop()

	time.Sleep(200 * time.Millisecond)
	current, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.JobCancelled, current.Status, "a pre-cancelled job must never transition to processing")
}

// cancelAfterNGetJob wraps a JobRepository and reports the wrapped job as
// cancelled starting from the Nth call to GetJob, simulating a cancel
// request arriving mid-run at a specific step boundary.
type cancelAfterNGetJob struct {
	repository.JobRepository
	after int
	calls int
}

func (c *cancelAfterNGetJob) GetJob(ctx context.Context, id string) (*repository.ProcessingJob, error) {
	job, err := c.JobRepository.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	c.calls++
	if c.calls > c.after {
		cancelled := *job
		cancelled.Status = repository.JobCancelled
		return &cancelled, nil
	}
	return job, nil
}

func TestPoolCancelledMidRunRollsBackPersistedDocument(t *testing.T) {
	broker := queue.NewMemoryBroker()
	baseJobs := repository.NewInMemoryJobRepository()
	ctx := context.Background()

	path := writeTempPaper(t)
	job := &repository.ProcessingJob{
		ID:       "job-cancel-mid-run",
		Filename: "paper.pdf",
		Status:   repository.JobPending,
		OwnerID:  "user-1",
		Metadata: map[string]interface{}{"file_path": path},
	}
	require.NoError(t, baseJobs.CreateJob(ctx, job))
	require.NoError(t, broker.Enqueue(ctx, queue.Job{JobID: job.ID, QueueName: queue.QueueDocumentProcessing}))

	// GetJob is called once at the top of every step boundary (runSteps)
	// plus once at dequeue (handle); report cancelled starting at the
	// boundary immediately after persist_document (step index 5) has run,
	// so the document is committed before the cancellation is observed.
	jobs := &cancelAfterNGetJob{JobRepository: baseJobs, after: 7}

	documents := repository.NewInMemoryDocumentRepository()
	vec := &fakeVectorIndexer{chunkCount: 3}
	persister := ingest.NewRepositoryDocumentPersister(documents)
	pipeline := ingest.NewPipeline(
		ingest.NewStubExtractor(),
		ingest.NewStubOCREngine(),
		ingest.NewStubDOIValidator(),
		vec,
		persister,
	)
	cfg := DefaultConfig()
	cfg.Concurrency = map[string]int{queue.QueueDocumentProcessing: 1}
	cfg.Backoff = []time.Duration{time.Millisecond}
	cfg.DequeueTimeout = 50 * time.Millisecond
	pool := NewPool(broker, jobs, pipeline, cfg)
	pool.Start()
	defer pool.Stop()

	final := waitForTerminal(t, baseJobs, job.ID)
	assert.Equal(t, repository.JobCancelled, final.Status)

	docs, err := documents.ListDocumentsByOwner(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, docs, "a document persisted by a job cancelled mid-run must be rolled back")
}

func TestPoolFailsJobOnMissingFile(t *testing.T) {
	broker := queue.NewMemoryBroker()
	jobs := repository.NewInMemoryJobRepository()
	ctx := context.Background()

	job := &repository.ProcessingJob{
		ID:       "job-missing-file",
		Filename: "paper.pdf",
		Status:   repository.JobPending,
		OwnerID:  "user-1",
		Metadata: map[string]interface{}{"file_path": "/nonexistent/does-not-exist.pdf"},
	}
	require.NoError(t, jobs.CreateJob(ctx, job))
	require.NoError(t, broker.Enqueue(ctx, queue.Job{JobID: job.ID, QueueName: queue.QueueDocumentProcessing}))

	pool := testPool(t, broker, jobs)
	pool.Start()
	defer pool.Stop()

	final := waitForTerminal(t, jobs, job.ID)
	assert.Equal(t, repository.JobFailed, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.NotEmpty(t, final.Error)
}
