package queue

import (
	"context"
	"sync"

	"vidscribe/errors"
	"vidscribe/models"
)

// MemoryQueue is the single-process queue used when no Redis address
// is configured. Delivery is at-most-once; a process crash loses
// in-flight work, an accepted trade for the zero-dependency setup.
type MemoryQueue struct {
	standard chan Message
	premium  chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{
		standard: make(chan Message, size),
		premium:  make(chan Message, size),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	const op = "MemoryQueue.Enqueue"

	select {
	case <-q.done:
		return errors.Internal(op, nil, "Queue is shut down")
	case <-ctx.Done():
		return errors.Internal(op, ctx.Err(), "Enqueue cancelled")
	default:
	}

	ch := q.standard
	if msg.Quality == models.QualityPremium {
		ch = q.premium
		msg.priority = true
	}

	select {
	case ch <- msg:
		return nil
	default:
		return errors.Internal(op, nil, "Queue is full")
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (*Message, error) {
	// Drain premium work before looking at the standard lane.
	select {
	case msg := <-q.premium:
		return &msg, nil
	default:
	}

	select {
	case msg := <-q.premium:
		return &msg, nil
	case msg := <-q.standard:
		return &msg, nil
	case <-q.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, *Message) error {
	// Channel delivery already removed the message.
	return nil
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
