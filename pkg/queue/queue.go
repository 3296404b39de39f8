package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueWorkflows is the Redis list key for workflow run jobs.
	QueueWorkflows = "worker:workflows"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeWorkflowRun JobType = "workflow_run"
)

// WorkflowRunPayload is the payload for workflow run jobs.
type WorkflowRunPayload struct {
	RunID    string          `json:"run_id"`
	Workflow string          `json:"workflow"`
	URL      string          `json:"url"`
	Input    json.RawMessage `json:"input"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
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

// NewJob wraps payload in a fresh job envelope.
func NewJob(jobType JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}, nil
}

// EnqueueWorkflowRun enqueues a workflow run job and returns the job id.
func (q *Queue) EnqueueWorkflowRun(ctx context.Context, payload WorkflowRunPayload) (string, error) {
	job, err := NewJob(JobTypeWorkflowRun, payload)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueWorkflows, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued workflow run job",
		zap.String("job_id", job.ID),
		zap.String("run_id", payload.RunID),
		zap.String("workflow", payload.Workflow),
	)
	return job.ID, nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueWorkflows).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	job, err := DecodeJob([]byte(result[1]))
	if err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return job, result[0], nil
}

// DecodeJob parses a raw job envelope.
func DecodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	if job.ID == "" || job.Type == "" {
		return nil, fmt.Errorf("job id and type are required")
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if Exhausted(job) {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueWorkflows, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Requeue pushes job back unchanged, for work interrupted before it could finish.
// The attempt count is kept.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, QueueWorkflows, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Exhausted reports whether job has used up its retries.
func Exhausted(job *Job) bool {
	return job.Attempt >= MaxRetries
}
