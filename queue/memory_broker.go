package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker is an in-process Broker for unit tests, grounded on the
// teacher's plain-struct queue mocks (queue/amqp_mock.go) rather than a
// mocking library.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string][]Job
	cond   *sync.Cond
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	b := &MemoryBroker{queues: make(map[string][]Job)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *MemoryBroker) Enqueue(ctx context.Context, job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[job.QueueName] = append(b.queues[job.QueueName], job)
	b.cond.Broadcast()
	return nil
}

func (b *MemoryBroker) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Delivery, error) {
	deadline := time.Now().Add(timeout)

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if jobs := b.queues[queueName]; len(jobs) > 0 {
			job := jobs[0]
			b.queues[queueName] = jobs[1:]
			return &Delivery{
				Job:  job,
				Ack:  func() error { return nil },
				Nack: func(requeue bool) error {
					if !requeue {
						return nil
					}
					return b.Enqueue(context.Background(), job)
				},
			}, nil
		}
		if b.closed || time.Now().After(deadline) {
			return nil, nil
		}
		remaining := time.Until(deadline)
		timer := time.AfterFunc(remaining, func() {
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		})
		b.cond.Wait()
		timer.Stop()
	}
}

func (b *MemoryBroker) QueueDepth(ctx context.Context, queueName string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queueName]), nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
	return nil
}
