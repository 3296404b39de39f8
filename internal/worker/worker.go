package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/metrics"
	"github.com/newtube/backend/pkg/queue"
)

// requeueTimeout bounds pushing a failed job back once the run context is gone.
const requeueTimeout = 5 * time.Second

// JobQueue is the queue the dispatcher drains.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
	Requeue(ctx context.Context, job *queue.Job) error
}

// Invoker delivers a workflow run to its endpoint.
type Invoker interface {
	Invoke(ctx context.Context, p queue.WorkflowRunPayload) error
}

// WorkflowDispatcher processes workflow run jobs: POST the run to its workflow endpoint,
// retry through the queue on failure.
type WorkflowDispatcher struct {
	queue   JobQueue
	invoker Invoker
	backoff time.Duration
	logger  *zap.Logger
}

// NewWorkflowDispatcher creates a workflow run dispatcher.
func NewWorkflowDispatcher(q JobQueue, invoker Invoker, logger *zap.Logger) *WorkflowDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowDispatcher{queue: q, invoker: invoker, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one workflow run job.
func (d *WorkflowDispatcher) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeWorkflowRun {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.WorkflowRunPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RunID == "" || payload.URL == "" {
		return fmt.Errorf("workflow job %s missing run id or url", job.ID)
	}

	if err := d.invoker.Invoke(ctx, payload); err != nil {
		metrics.WorkflowJobsTotal.WithLabelValues(payload.Workflow, "failed").Inc()
		return err
	}
	metrics.WorkflowJobsTotal.WithLabelValues(payload.Workflow, "completed").Inc()
	d.logger.Info("workflow run completed",
		zap.String("run_id", payload.RunID),
		zap.String("workflow", payload.Workflow),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (d *WorkflowDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("workflow worker stopping")
			return
		default:
		}

		job, _, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Warn("dequeue error", zap.Error(err))
			d.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		d.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := d.Process(ctx, job); err != nil {
			d.giveBack(ctx, job, err)
			d.sleep(ctx)
			continue
		}
	}
}

// giveBack returns a failed job to Redis. A job cut off by shutdown is requeued
// without spending a retry; the push outlives ctx either way.
func (d *WorkflowDispatcher) giveBack(ctx context.Context, job *queue.Job, cause error) {
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	if ctx.Err() != nil {
		d.logger.Warn("job interrupted", zap.String("job_id", job.ID), zap.Error(cause))
		if err := d.queue.Requeue(pushCtx, job); err != nil {
			d.logger.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	d.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
	if err := d.queue.Retry(pushCtx, job); err != nil {
		d.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (d *WorkflowDispatcher) sleep(ctx context.Context) {
	t := time.NewTimer(d.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
