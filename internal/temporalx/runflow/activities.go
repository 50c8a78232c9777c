package runflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// Executor runs a claimed run to a terminal state or releases it.
type Executor interface {
	Execute(ctx context.Context, run *animation.GenerationRun) error
}

type Activities struct {
	Log      *logger.Logger
	Runs     repos.GenerationRunRepo
	Executor Executor
	// HeartbeatEvery is how often liveness is reported to Temporal.
	HeartbeatEvery time.Duration
}

func (a *Activities) Execute(ctx context.Context, runID string) (Result, error) {
	res := Result{RunID: strings.TrimSpace(runID)}
	if a == nil || a.Runs == nil || a.Executor == nil {
		return res, fmt.Errorf("runflow: activity not configured")
	}
	id, err := uuid.Parse(res.RunID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("runflow: invalid run_id %q", runID)
	}
	dbc := dbctx.Context{Ctx: ctx}

	run, err := a.Runs.ClaimByID(dbc, id)
	if err != nil {
		return res, err
	}
	if run == nil {
		// Canceled, finished, or claimed by a polling worker.
		cur, err := a.Runs.GetByID(dbc, id)
		if err != nil {
			return res, err
		}
		if cur == nil {
			return res, fmt.Errorf("runflow: run %s not found", id)
		}
		res.State = string(cur.State)
		return res, nil
	}

	stop := a.heartbeat(ctx)
	execErr := a.Executor.Execute(ctx, run)
	stop()
	if execErr != nil {
		a.Log.Warn("run execution returned error", "run_id", id, "error", execErr)
	}

	cur, err := a.Runs.GetByID(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, id)
	if err != nil {
		return res, err
	}
	if cur == nil {
		return res, fmt.Errorf("runflow: run %s vanished", id)
	}
	res.State = string(cur.State)
	res.Released = cur.LockedAt == nil && cur.JobKind != animation.JobKindNone &&
		(cur.State == animation.RunStateStarting || cur.State == animation.RunStateExporting)
	return res, nil
}

func (a *Activities) heartbeat(ctx context.Context) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
