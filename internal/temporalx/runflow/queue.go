package runflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// Queue starts one workflow per queued run.
type Queue struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewQueue(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string) *Queue {
	return &Queue{log: log.With("component", "TemporalRunQueue"), tc: tc, taskQueue: taskQueue}
}

func (q *Queue) Enqueue(ctx context.Context, run *animation.GenerationRun) error {
	if q == nil || q.tc == nil {
		return fmt.Errorf("temporal client is not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    WorkflowID(run.ID),
		TaskQueue:             q.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	we, err := q.tc.ExecuteWorkflow(ctx, opts, WorkflowName, Input{RunID: run.ID.String(), Kind: string(run.JobKind)})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			// The running workflow claims the run on its next tick.
			return nil
		}
		return fmt.Errorf("start workflow: %w", err)
	}
	q.log.Debug("workflow started", "run_id", run.ID, "workflow_id", we.GetID(), "temporal_run_id", we.GetRunID())
	return nil
}

func (q *Queue) Cancel(ctx context.Context, runID uuid.UUID) error {
	if q == nil || q.tc == nil {
		return nil
	}
	err := q.tc.CancelWorkflow(ctx, WorkflowID(runID), "")
	var nf *serviceerror.NotFound
	if err != nil && !errors.As(err, &nf) {
		return err
	}
	return nil
}
