// Package queue abstracts the job broker (C2) behind a small interface so
// the worker pool and gateway can run against Redis or AMQP interchangeably,
// grounded on the teacher's queue package split between queue/redis and the
// AMQP-interface-backed queue/rabbit.go.
package queue

import (
	"context"
	"time"
)

// Logical queue names routed to distinct worker pools.
const (
	QueueDocumentProcessing = "document_processing"
	QueueBatchProcessing    = "batch_processing"
	QueueMetadataExtraction = "metadata_extraction"
	QueueOCRProcessing      = "ocr_processing"
)

// Job is one unit of work delivered to a worker.
type Job struct {
	JobID      string    `json:"job_id"`
	QueueName  string    `json:"queue_name"`
	BatchID    string    `json:"batch_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
}

// Delivery wraps a dequeued Job with the acknowledgment handles the broker
// needs for at-least-once delivery: Ack on success, Nack to requeue or drop.
type Delivery struct {
	Job  Job
	Ack  func() error
	Nack func(requeue bool) error
}

// Broker is the job queue contract required by §4.5: durable enqueue,
// at-least-once delivery, per-queue routing, and worker acknowledgment.
type Broker interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Delivery, error)
	QueueDepth(ctx context.Context, queueName string) (int, error)
	Close() error
}
