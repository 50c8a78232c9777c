package runflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func newEnv(t *testing.T, results ...Result) (*testsuite.TestWorkflowEnvironment, *int) {
	t.Helper()
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	calls := 0
	env.RegisterActivityWithOptions(func(_ context.Context, runID string) (Result, error) {
		if calls >= len(results) {
			return Result{}, errors.New("unexpected claim")
		}
		r := results[calls]
		calls++
		r.RunID = runID
		return r, nil
	}, activity.RegisterOptions{Name: ActivityExecute})
	return env, &calls
}

func TestWorkflowFinishesAfterOneClaim(t *testing.T) {
	env, calls := newEnv(t, Result{State: "COMPLETED"})
	env.ExecuteWorkflow(WorkflowName, Input{RunID: "8f2d9c7e-0000-4000-8000-000000000001", Kind: "render"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 1, *calls)
}

func TestWorkflowReclaimsReleasedRun(t *testing.T) {
	env, calls := newEnv(t,
		Result{State: "STARTING", Released: true},
		Result{State: "STARTING", Released: true},
		Result{State: "FAILED"},
	)
	env.ExecuteWorkflow(WorkflowName, Input{RunID: "8f2d9c7e-0000-4000-8000-000000000002", Kind: "render"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, *calls)
}

func TestWorkflowRequiresRunID(t *testing.T) {
	env, calls := newEnv(t)
	env.ExecuteWorkflow(WorkflowName, Input{})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Zero(t, *calls)
}
