// Package worker runs the ingestion pipeline against queued jobs: a pool of
// goroutines per logical queue, each owning one job at a time from dequeue
// through acknowledgment, generalized from the teacher's generic
// worker.Pool/Worker/JobProcessor pattern to the ingestion pipeline's
// concrete step sequence, retry schedule, and hard timeout.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/ingest"
	"github.com/scholaris/core/queue"
)

// errJobCancelled marks a runSteps failure as originating from a
// cancellation observed at a step boundary, distinct from a step failure,
// so handle can leave the job in status cancelled instead of failed and
// roll back anything persist_document already committed.
var errJobCancelled = errors.New("job cancelled")

// jobsProcessedTotal counts completed jobs by terminal status in the
// process's default Prometheus registry. cmd/worker serves no HTTP
// endpoint, so the worker binary does not expose it for scraping.
var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholaris_worker_jobs_processed_total",
			Help: "Total ingestion jobs processed by the worker pool, by terminal status.",
		},
		[]string{"status"},
	)
	registerWorkerMetricsOnce sync.Once
)

func registerWorkerMetrics() {
	registerWorkerMetricsOnce.Do(func() {
		prometheus.MustRegister(jobsProcessedTotal)
	})
}

// Config configures the pool's concurrency and timing policy.
type Config struct {
	// Concurrency maps a logical queue name to its worker count.
	Concurrency map[string]int
	// MaxAttempts bounds retries of a job on transient step failure.
	MaxAttempts int
	// Backoff is the exponential delay schedule between attempts.
	Backoff []time.Duration
	// HardTimeout aborts a job as failed if it runs longer than this,
	// regardless of retries.
	HardTimeout time.Duration
	// DequeueTimeout bounds each blocking dequeue call.
	DequeueTimeout time.Duration
}

// DefaultConfig matches §4.3's stated retry schedule and timeout.
func DefaultConfig() Config {
	return Config{
		Concurrency: map[string]int{
			queue.QueueDocumentProcessing: 4,
			queue.QueueBatchProcessing:    2,
			queue.QueueMetadataExtraction: 2,
			queue.QueueOCRProcessing:      2,
		},
		MaxAttempts:    3,
		Backoff:        []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second},
		HardTimeout:    60 * time.Minute,
		DequeueTimeout: 5 * time.Second,
	}
}

// Pool owns a set of per-queue worker goroutines.
type Pool struct {
	broker   queue.Broker
	jobs     repository.JobRepository
	pipeline *ingest.Pipeline
	config   Config

	stopCh chan struct{}
	logger *common.ContextLogger
}

// NewPool builds a pool ready to Start.
func NewPool(broker queue.Broker, jobs repository.JobRepository, pipeline *ingest.Pipeline, config Config) *Pool {
	registerWorkerMetrics()
	return &Pool{
		broker:   broker,
		jobs:     jobs,
		pipeline: pipeline,
		config:   config,
		stopCh:   make(chan struct{}),
		logger:   common.ServiceLogger("worker", "0.1.0"),
	}
}

// Start launches one goroutine per configured worker slot.
func (p *Pool) Start() {
	for queueName, count := range p.config.Concurrency {
		for i := 0; i < count; i++ {
			go p.runWorker(queueName, i)
		}
	}
}

// Stop signals all workers to exit after their current job.
func (p *Pool) Stop() {
	close(p.stopCh)
}

func (p *Pool) runWorker(queueName string, id int) {
	log := p.logger.WithFields(map[string]interface{}{"queue": queueName, "worker_id": id})
	log.Info("worker started")
	for {
		select {
		case <-p.stopCh:
			log.Info("worker stopped")
			return
		default:
		}

		delivery, err := p.broker.Dequeue(context.Background(), queueName, p.config.DequeueTimeout)
		if err != nil {
			log.WithError(err).Error("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		if err := p.handle(delivery, log); err != nil {
			log.WithError(err).WithFields(map[string]interface{}{"job_id": delivery.Job.JobID}).Error("job failed")
		}
	}
}

func (p *Pool) handle(delivery *queue.Delivery, log *common.ContextLogger) error {
	jobID := delivery.Job.JobID

	job, err := p.jobs.GetJob(context.Background(), jobID)
	if err != nil {
		return delivery.Nack(false)
	}

	// Cancel on pending: the worker checks status on dequeue and aborts
	// before step 1 if the gateway already marked the job cancelled.
	if job.Status == repository.JobCancelled {
		return delivery.Ack()
	}
	if job.Status != repository.JobPending {
		// Already terminal or in flight under another delivery; ack and drop.
		return delivery.Ack()
	}

	now := time.Now()
	job.Status = repository.JobProcessing
	job.StartedAt = &now
	if err := p.jobs.UpdateJob(context.Background(), job); err != nil {
		return delivery.Nack(true)
	}

	deadline := now.Add(p.config.HardTimeout)
	jc := jobContextFromJob(job)

	var runErr error
	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := p.config.Backoff[minInt(attempt-1, len(p.config.Backoff)-1)]
			time.Sleep(backoff)
		}
		if time.Now().After(deadline) {
			runErr = fmt.Errorf("job exceeded hard timeout of %s", p.config.HardTimeout)
			break
		}

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		runErr = p.runSteps(ctx, job, jc, log)
		cancel()

		if runErr == nil || !ingest.IsTransient(runErr) {
			break
		}
	}

	if errors.Is(runErr, errJobCancelled) {
		if rbErr := p.pipeline.Rollback(context.Background(), jc); rbErr != nil {
			log.WithError(rbErr).WithFields(map[string]interface{}{"job_id": job.ID}).Error("rolling back cancelled job")
		}
		job.Status = repository.JobCancelled
		job.Progress = 100
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		if err := p.jobs.UpdateJob(context.Background(), job); err != nil {
			return delivery.Nack(false)
		}
		jobsProcessedTotal.WithLabelValues(string(repository.JobCancelled)).Inc()
		return delivery.Ack()
	}

	if runErr != nil {
		job.Status = repository.JobFailed
		job.Error = runErr.Error()
		job.Progress = 100
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		if err := p.jobs.UpdateJob(context.Background(), job); err != nil {
			return delivery.Nack(false)
		}
		jobsProcessedTotal.WithLabelValues(string(repository.JobFailed)).Inc()
		return delivery.Ack()
	}

	job.Status = repository.JobCompleted
	job.Progress = 100
	job.DocumentID = &jc.DocumentID
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	if err := p.jobs.UpdateJob(context.Background(), job); err != nil {
		return delivery.Nack(false)
	}
	jobsProcessedTotal.WithLabelValues(string(repository.JobCompleted)).Inc()
	return delivery.Ack()
}

// runSteps executes the pipeline's step sequence against one job,
// persisting a ProcessingStep per outcome and checking for cancellation at
// each step boundary.
func (p *Pool) runSteps(ctx context.Context, job *repository.ProcessingJob, jc *ingest.JobContext, log *common.ContextLogger) error {
	for i, step := range p.pipeline.Steps() {
		current, err := p.jobs.GetJob(ctx, job.ID)
		if err == nil && current.Status == repository.JobCancelled {
			return fmt.Errorf("job cancelled at step boundary %d (%s): %w", i, step.Name, errJobCancelled)
		}

		start := time.Now()
		detail, stepErr := step.Run(ctx, jc)
		duration := time.Since(start)

		status := repository.StepCompleted
		message := "ok"
		if stepErr != nil {
			status = repository.StepFailed
			message = stepErr.Error()
		}

		_ = p.jobs.AppendStep(ctx, &repository.ProcessingStep{
			JobID:      job.ID,
			StepIndex:  i,
			StepName:   step.Name,
			Status:     status,
			Message:    message,
			Detail:     detail,
			DurationMS: duration.Milliseconds(),
			Timestamp:  time.Now(),
		})

		if stepErr != nil {
			if step.Terminal {
				return stepErr
			}
			log.WithFields(map[string]interface{}{"step": step.Name}).Warn("non-terminal step failed, continuing")
			continue
		}

		job.Progress = step.Progress
		_ = p.jobs.UpdateJob(ctx, job)
	}
	return nil
}

func jobContextFromJob(job *repository.ProcessingJob) *ingest.JobContext {
	jc := &ingest.JobContext{
		OriginalFilename: job.Filename,
		OwnerID:          job.OwnerID,
		BatchID:          job.BatchID,
	}
	if path, ok := job.Metadata["file_path"].(string); ok {
		jc.FilePath = path
	}
	if force, ok := job.Metadata["force_ocr"].(bool); ok {
		jc.ForceOCR = force
	}
	return jc
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
