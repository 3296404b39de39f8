// Package workflow runs multi-step jobs whose completed steps survive retries.
//
// A run is identified by a run id. Each step's JSON output is checkpointed before
// the next step starts; re-executing the same run id replays completed steps from
// their checkpoints instead of running them again.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/metrics"
)

// ErrStepFailed matches any error returned by Step when the step body failed.
var ErrStepFailed = errors.New("workflow step failed")

// StepError names the step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

// Run is one execution of a named workflow.
type Run struct {
	ID          string
	Workflow    string
	checkpoints Checkpoints
	logger      *zap.Logger
}

// NewRun binds a run id to a checkpoint store.
func NewRun(workflowName, runID string, checkpoints Checkpoints, logger *zap.Logger) *Run {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Run{
		ID:          runID,
		Workflow:    workflowName,
		checkpoints: checkpoints,
		logger:      logger.With(zap.String("workflow", workflowName), zap.String("run_id", runID)),
	}
}

// Step executes fn once per run. When a checkpoint for name exists its output is
// decoded and returned without calling fn.
func Step[T any](ctx context.Context, run *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	raw, ok, err := run.checkpoints.Load(ctx, run.ID, name)
	if err != nil {
		return out, err
	}
	if ok {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("decode checkpoint %s: %w", name, err)
		}
		run.logger.Info("step replayed from checkpoint", zap.String("step", name))
		metrics.WorkflowStepsTotal.WithLabelValues(run.Workflow, name, "replayed").Inc()
		return out, nil
	}

	out, err = fn(ctx)
	if err != nil {
		run.logger.Warn("step failed", zap.String("step", name), zap.Error(err))
		metrics.WorkflowStepsTotal.WithLabelValues(run.Workflow, name, "failed").Inc()
		var zero T
		return zero, &StepError{Step: name, Err: err}
	}

	raw, err = json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("encode checkpoint %s: %w", name, err)
	}
	if err := run.checkpoints.Save(ctx, run.ID, name, raw); err != nil {
		return out, err
	}
	run.logger.Info("step completed", zap.String("step", name))
	metrics.WorkflowStepsTotal.WithLabelValues(run.Workflow, name, "ok").Inc()
	return out, nil
}
