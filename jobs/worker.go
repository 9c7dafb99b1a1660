package jobs

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"vidscribe/errors"
	"vidscribe/queue"
)

// WorkerPool pulls jobs off the queue and runs them through the
// orchestrator. Pool size is the concurrency bound: each worker is
// occupied for a job's full acquisition phase. A panicking job takes
// down its own execution, not the worker.
type WorkerPool struct {
	queue   queue.Queue
	service *Service
	count   int
	log     *logrus.Logger

	wg sync.WaitGroup
}

func NewWorkerPool(q queue.Queue, service *Service, count int, log *logrus.Logger) *WorkerPool {
	if count <= 0 {
		count = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WorkerPool{
		queue:   q,
		service: service,
		count:   count,
		log:     log,
	}
}

// Start launches the workers. They run until ctx is cancelled; Wait
// blocks until all have drained.
func (p *WorkerPool) Start(ctx context.Context) {
	p.log.WithField("workers", p.count).Info("Starting worker pool")

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	log := p.log.WithField("worker", id)
	log.Debug("Worker started")

	for {
		msg, err := p.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("Worker stopping")
				return
			}
			log.WithError(err).Error("Failed to consume from queue")
			continue
		}

		p.handle(ctx, log, msg)

		if err := p.queue.Ack(ctx, msg); err != nil {
			log.WithError(err).WithField("job_id", msg.JobID).Error("Failed to ack message")
		}
	}
}

func (p *WorkerPool) handle(ctx context.Context, log *logrus.Entry, msg *queue.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"job_id": msg.JobID,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("Job processing panicked")

			// The message is acked regardless, so the job must reach a
			// terminal state here or it stays stuck with its charge held.
			cause := errors.Internal("jobs.WorkerPool.handle", nil, "Processing aborted unexpectedly")
			if err := p.service.Abort(ctx, msg.JobID, cause); err != nil {
				log.WithError(err).WithField("job_id", msg.JobID).Error("Failed to abort panicked job")
			}
		}
	}()

	if err := p.service.Process(ctx, msg.JobID); err != nil {
		// Process already moved the job to a terminal state and
		// logged the cause; nothing to escalate here.
		log.WithError(err).WithField("job_id", msg.JobID).Debug("Job finished with error")
	}
}
