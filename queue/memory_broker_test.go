package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerEnqueueDequeueFIFO(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, Job{JobID: "1", QueueName: QueueDocumentProcessing}))
	require.NoError(t, b.Enqueue(ctx, Job{JobID: "2", QueueName: QueueDocumentProcessing}))

	depth, err := b.QueueDepth(ctx, QueueDocumentProcessing)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	d1, err := b.Dequeue(ctx, QueueDocumentProcessing, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.Equal(t, "1", d1.Job.JobID)
	require.NoError(t, d1.Ack())

	d2, err := b.Dequeue(ctx, QueueDocumentProcessing, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, "2", d2.Job.JobID)
}

func TestMemoryBrokerDequeueTimesOutWhenEmpty(t *testing.T) {
	b := NewMemoryBroker()
	start := time.Now()
	delivery, err := b.Dequeue(context.Background(), QueueOCRProcessing, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, delivery)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMemoryBrokerNackRequeues(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, Job{JobID: "1", QueueName: QueueBatchProcessing}))

	d, err := b.Dequeue(ctx, QueueBatchProcessing, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, d.Nack(true))

	depth, err := b.QueueDepth(ctx, QueueBatchProcessing)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	d2, err := b.Dequeue(ctx, QueueBatchProcessing, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d2)
	assert.Equal(t, "1", d2.Job.JobID)
}

func TestMemoryBrokerNackWithoutRequeueDrops(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, Job{JobID: "1", QueueName: QueueMetadataExtraction}))

	d, err := b.Dequeue(ctx, QueueMetadataExtraction, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, d.Nack(false))

	depth, err := b.QueueDepth(ctx, QueueMetadataExtraction)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestMemoryBrokerCloseUnblocksWaiters(t *testing.T) {
	b := NewMemoryBroker()
	done := make(chan struct{})
	go func() {
		_, _ = b.Dequeue(context.Background(), QueueDocumentProcessing, 5*time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Close")
	}
}
