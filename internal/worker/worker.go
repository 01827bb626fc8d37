package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/pkg/queue"
)

// JobSource is the job queue as seen by the consumer.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// BodyProcessor runs one verified webhook body through the event pipeline.
type BodyProcessor interface {
	Process(ctx context.Context, body []byte) error
}

// EventConsumer drains queued LINE deliveries.
type EventConsumer struct {
	queue     JobSource
	processor BodyProcessor
	logger    *zap.Logger
}

// NewEventConsumer creates a queue consumer.
func NewEventConsumer(q JobSource, processor BodyProcessor, logger *zap.Logger) *EventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{queue: q, processor: processor, logger: logger}
}

// Handle processes one job. Jobs that cannot be decoded or processed go to the DLQ;
// they are never retried since reply tokens are single-use and short-lived.
func (c *EventConsumer) Handle(ctx context.Context, job *queue.Job) {
	log := c.logger.With(zap.String("job_id", job.ID))
	payload, err := queue.DecodeLineEvents(job)
	if err == nil {
		if lag := time.Since(payload.ReceivedAt); lag > time.Minute {
			log.Warn("stale delivery", zap.Duration("lag", lag))
		}
		err = c.processor.Process(ctx, payload.Body)
	}
	if err != nil {
		log.Error("job failed", zap.Error(err))
		if dlqErr := c.queue.DeadLetter(ctx, job, err); dlqErr != nil {
			log.Error("dead-letter failed", zap.Error(dlqErr))
		}
	}
}

// Run starts the worker loop: dequeue, process, dead-letter on error. It returns when ctx is done;
// a job already dequeued is finished first.
func (c *EventConsumer) Run(ctx context.Context) {
	c.logger.Info("event consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("event consumer stopping")
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.IdleBackoff)
			continue
		}
		if job == nil {
			continue
		}
		c.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		c.Handle(context.WithoutCancel(ctx), job)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
