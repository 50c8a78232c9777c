package runflow

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	WorkflowName    = "generation_run"
	ActivityExecute = "generation_run_execute"
)

type Input struct {
	RunID string `json:"run_id"`
	Kind  string `json:"kind"`
}

type Result struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
	// Released is set when the run gave its renderer slot back and must be retried.
	Released bool `json:"released,omitempty"`
}

// WorkflowID is stable per run. Render and export workflows never overlap, so both use it.
func WorkflowID(runID uuid.UUID) string {
	return fmt.Sprintf("generation_run:%s", runID)
}
