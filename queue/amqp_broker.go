package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// AMQPBroker implements Broker over RabbitMQ, one durable queue per logical
// queue name, grounded on the teacher's AMQPConnection/AMQPChannel/AMQPDialer
// abstraction (queue/amqp_interface.go) and connection/publish sequence
// (queue/rabbit.go).
type AMQPBroker struct {
	conn   AMQPConnection
	ch     AMQPChannel
	queues map[string]bool
}

// AMQPConnection abstracts an amqp.Connection for dependency injection and testing.
type AMQPConnection interface {
	Channel() (AMQPChannel, error)
	Close() error
}

// AMQPChannel abstracts an amqp.Channel for dependency injection and testing.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueInspect(name string) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPDialer abstracts dialing an AMQP connection, for dependency injection.
type AMQPDialer interface {
	Dial(url string) (AMQPConnection, error)
}

type realAMQPConnection struct{ conn *amqp.Connection }

func (r *realAMQPConnection) Channel() (AMQPChannel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}
func (r *realAMQPConnection) Close() error { return r.conn.Close() }

// realAMQPDialer implements AMQPDialer using the real amqp library.
type realAMQPDialer struct{}

func (realAMQPDialer) Dial(url string) (AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realAMQPConnection{conn: conn}, nil
}

var queueNames = []string{
	QueueDocumentProcessing, QueueBatchProcessing, QueueMetadataExtraction, QueueOCRProcessing,
}

// NewAMQPBroker dials url and declares all four logical queues as durable.
func NewAMQPBroker(url string) (*AMQPBroker, error) {
	return NewAMQPBrokerWithDialer(url, realAMQPDialer{})
}

// NewAMQPBrokerWithDialer allows injecting a test dialer.
func NewAMQPBrokerWithDialer(url string, dialer AMQPDialer) (*AMQPBroker, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	b := &AMQPBroker{conn: conn, ch: ch, queues: make(map[string]bool)}
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declaring queue %s: %w", name, err)
		}
		b.queues[name] = true
	}
	return b, nil
}

func (b *AMQPBroker) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	return b.ch.Publish("", job.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

func (b *AMQPBroker) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Delivery, error) {
	deliveries, err := b.ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", queueName, err)
	}

	select {
	case d, ok := <-deliveries:
		if !ok {
			return nil, nil
		}
		var job Job
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return nil, fmt.Errorf("unmarshaling job: %w", err)
		}
		return &Delivery{
			Job:  job,
			Ack:  func() error { return d.Ack(false) },
			Nack: func(requeue bool) error { return d.Nack(false, requeue) },
		}, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *AMQPBroker) QueueDepth(ctx context.Context, queueName string) (int, error) {
	q, err := b.ch.QueueInspect(queueName)
	if err != nil {
		return 0, err
	}
	return q.Messages, nil
}

func (b *AMQPBroker) Close() error {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}
