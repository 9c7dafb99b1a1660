package queue

import (
	"context"
	"testing"
	"time"

	"vidscribe/models"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(10)
	defer q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, Message{JobID: "job-1", OwnerID: "owner-1", Quality: models.QualityStandard}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if msg.JobID != "job-1" || msg.OwnerID != "owner-1" {
		t.Errorf("got message %+v", msg)
	}
	if err := q.Ack(ctx, msg); err != nil {
		t.Errorf("Ack() error = %v", err)
	}
}

func TestMemoryQueuePremiumFirst(t *testing.T) {
	q := NewMemoryQueue(10)
	defer q.Close()

	ctx := context.Background()
	for _, m := range []Message{
		{JobID: "standard-1", Quality: models.QualityStandard},
		{JobID: "standard-2", Quality: models.QualityCaptionFirst},
		{JobID: "premium-1", Quality: models.QualityPremium},
	} {
		if err := q.Enqueue(ctx, m); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", m.JobID, err)
		}
	}

	msg, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if msg.JobID != "premium-1" {
		t.Errorf("first message = %s, want premium-1", msg.JobID)
	}
	if !msg.Priority() {
		t.Error("premium message should report priority")
	}

	msg, err = q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if msg.JobID != "standard-1" {
		t.Errorf("second message = %s, want standard-1", msg.JobID)
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, Message{JobID: "a"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, Message{JobID: "b"}); err == nil {
		t.Fatal("expected error on full queue")
	}
}

func TestMemoryQueueConsumeRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Consume(ctx); err == nil {
		t.Fatal("expected context error on empty queue")
	}
}

func TestMemoryQueueClosedEnqueue(t *testing.T) {
	q := NewMemoryQueue(1)
	q.Close()

	if err := q.Enqueue(context.Background(), Message{JobID: "a"}); err == nil {
		t.Fatal("expected error after Close")
	}
}
