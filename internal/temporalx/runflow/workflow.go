package runflow

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	requeueDelay         = 5 * time.Second
	continueTickLimit    = 500
	continueHistoryLimit = 10000
)

// Workflow executes one queued render or export. Render retries live inside the dispatcher,
// so the activity runs once per claim; a released run is claimed again after requeueDelay.
func Workflow(ctx workflow.Context, in Input) error {
	if strings.TrimSpace(in.RunID) == "" {
		return fmt.Errorf("runflow: missing run_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	for tick := 1; ; tick++ {
		var out Result
		if err := workflow.ExecuteActivity(ctx, ActivityExecute, in.RunID).Get(ctx, &out); err != nil {
			return err
		}
		if !out.Released {
			workflow.GetLogger(ctx).Info("run finished", "run_id", in.RunID, "state", out.State, "ticks", tick)
			return nil
		}
		if err := workflow.Sleep(ctx, requeueDelay); err != nil {
			return err
		}
		if tick >= continueTickLimit || workflow.GetInfo(ctx).GetCurrentHistoryLength() >= continueHistoryLimit {
			return workflow.NewContinueAsNewError(ctx, Workflow, in)
		}
	}
}
