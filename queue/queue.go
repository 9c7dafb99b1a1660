package queue

import (
	"context"

	"vidscribe/models"
)

// Message is the unit of work handed from the submission surface to
// the worker pool. Only identifiers travel on the wire; workers load
// the job row before acting on it.
type Message struct {
	JobID   string
	OwnerID string
	Quality models.Quality

	// ackID is transport-specific delivery state, set by Consume.
	ackID    string
	priority bool
}

// Priority reports whether the message rode the priority lane.
func (m *Message) Priority() bool { return m.priority }

// Queue decouples job submission from execution. Premium work is
// delivered ahead of standard work when both are waiting.
type Queue interface {
	// Enqueue publishes a message. It fails fast when the queue is
	// full or the backend is unreachable; the job stays pending and
	// the caller surfaces the error.
	Enqueue(ctx context.Context, msg Message) error

	// Consume blocks until a message is available or the context
	// ends. Each message must be Acked once processing finishes,
	// successfully or not; unacked messages are redelivered.
	Consume(ctx context.Context) (*Message, error)

	// Ack marks a consumed message as handled.
	Ack(ctx context.Context, msg *Message) error

	Close() error
}
