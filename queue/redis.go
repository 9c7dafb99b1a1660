package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
	"vidscribe/models"
)

const readBlock = 5 * time.Second

// RedisQueue backs the queue with two Redis streams read through a
// consumer group, so a worker fleet shares delivery and messages
// survive worker restarts. Premium jobs ride a separate stream that is
// always read first.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	priority string
	group    string
	consumer string

	claimIdle time.Duration
	log       *logrus.Logger
}

func NewRedisQueue(ctx context.Context, cfg config.QueueConfig, log *logrus.Logger) (*RedisQueue, error) {
	const op = "NewRedisQueue"

	if log == nil {
		log = logrus.StandardLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to connect to Redis")
	}

	hostname, _ := os.Hostname()
	q := &RedisQueue{
		client:    client,
		stream:    cfg.StreamName,
		priority:  cfg.StreamName + ":priority",
		group:     cfg.Group,
		consumer:  fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		claimIdle: cfg.ClaimIdleTime,
		log:       log,
	}

	for _, stream := range []string{q.priority, q.stream} {
		err := client.XGroupCreateMkStream(ctx, stream, q.group, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return nil, errors.Internal(op, err, "Failed to create consumer group")
		}
	}

	return q, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	const op = "RedisQueue.Enqueue"

	stream := q.stream
	if msg.Quality == models.QualityPremium {
		stream = q.priority
	}

	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"job_id":   msg.JobID,
			"owner_id": msg.OwnerID,
			"quality":  string(msg.Quality),
		},
	}).Err()
	if err != nil {
		return errors.Internal(op, err, "Failed to enqueue job")
	}

	q.log.WithFields(logrus.Fields{
		"job_id": msg.JobID,
		"stream": stream,
	}).Debug("Job enqueued")
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context) (*Message, error) {
	const op = "RedisQueue.Consume"

	for {
		if msg := q.claimStale(ctx); msg != nil {
			return msg, nil
		}

		// Priority stream listed first; Redis serves streams in the
		// order given, so premium work drains before standard.
		res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.priority, q.stream, ">", ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Internal(op, err, "Failed to read from queue")
		}

		for _, stream := range res {
			for _, entry := range stream.Messages {
				return q.decode(stream.Stream, entry), nil
			}
		}
	}
}

// claimStale adopts messages another worker consumed but never acked,
// typically after a crash mid-job.
func (q *RedisQueue) claimStale(ctx context.Context) *Message {
	for _, stream := range []string{q.priority, q.stream} {
		entries, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.claimIdle,
			Start:    "0",
			Count:    1,
		}).Result()
		if err != nil || len(entries) == 0 {
			continue
		}
		q.log.WithFields(logrus.Fields{
			"stream": stream,
			"id":     entries[0].ID,
		}).Warn("Claimed stale message from crashed worker")
		return q.decode(stream, entries[0])
	}
	return nil
}

func (q *RedisQueue) decode(stream string, entry redis.XMessage) *Message {
	str := func(key string) string {
		if v, ok := entry.Values[key].(string); ok {
			return v
		}
		return ""
	}
	return &Message{
		JobID:    str("job_id"),
		OwnerID:  str("owner_id"),
		Quality:  models.Quality(str("quality")),
		ackID:    entry.ID,
		priority: stream == q.priority,
	}
}

func (q *RedisQueue) Ack(ctx context.Context, msg *Message) error {
	const op = "RedisQueue.Ack"

	stream := q.stream
	if msg.priority {
		stream = q.priority
	}
	if err := q.client.XAck(ctx, stream, q.group, msg.ackID).Err(); err != nil {
		return errors.Internal(op, err, "Failed to ack message")
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
