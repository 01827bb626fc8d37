package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueLineEvents is the Redis list key for verified LINE webhook deliveries.
	QueueLineEvents = "worker:line-events"
	// QueueDLQ is the dead-letter queue for jobs that cannot be processed.
	QueueDLQ = "worker:dlq"
	// DequeueTimeout bounds one blocking pop so the worker can observe cancellation.
	DequeueTimeout = 5 * time.Second
	// IdleBackoff is the delay after a Redis error before polling again.
	IdleBackoff = 2 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeLineEvents JobType = "line_events"
)

// LineEventsPayload carries one signature-verified webhook body.
type LineEventsPayload struct {
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueLineEvents enqueues a verified webhook body for asynchronous processing.
func (q *Queue) EnqueueLineEvents(ctx context.Context, body []byte) error {
	payload, err := json.Marshal(LineEventsPayload{Body: body, ReceivedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeLineEvents,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueLineEvents, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued line events job", zap.String("job_id", job.ID), zap.Int("bytes", len(body)))
	return nil
}

// Dequeue blocks for at most DequeueTimeout. It returns (nil, nil) when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, DequeueTimeout, QueueLineEvents).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// DeadLetter moves a job that failed permanently to the DLQ.
// LINE jobs are never retried: reply tokens expire and a retry would fail identically.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	if cause != nil {
		job.Error = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

// DecodeLineEvents extracts the webhook body from a line events job.
func DecodeLineEvents(job *Job) (*LineEventsPayload, error) {
	if job.Type != JobTypeLineEvents {
		return nil, fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload LineEventsPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}
