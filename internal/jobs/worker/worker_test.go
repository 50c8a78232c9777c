package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/data/repos/testutil"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/jobs/runtime"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

type funcHandler struct {
	kind animation.JobKind
	fn   func(*runtime.Context) error
}

func (h funcHandler) Kind() animation.JobKind      { return h.kind }
func (h funcHandler) Run(jc *runtime.Context) error { return h.fn(jc) }

func newWorker(t *testing.T, handlers ...runtime.Handler) (*Worker, repos.Set, func(animation.RunState, animation.JobKind) *animation.GenerationRun) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	set := repos.NewSet(db, log)
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	w := NewWorker(log, Config{}, set.Runs, reg, services.NewRunNotifier(log, set.RunEvents, nil))
	seed := func(state animation.RunState, kind animation.JobKind) *animation.GenerationRun {
		return testutil.SeedRun(t, context.Background(), db, uuid.New(), state, kind)
	}
	return w, set, seed
}

func get(t *testing.T, set repos.Set, id uuid.UUID) *animation.GenerationRun {
	t.Helper()
	run, err := set.Runs.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	return run
}

func TestClaimOnceRunsHandler(t *testing.T) {
	var ran uuid.UUID
	w, set, seed := newWorker(t, funcHandler{kind: animation.JobKindRender, fn: func(jc *runtime.Context) error {
		ran = jc.Run.ID
		return jc.Finish(render.Outcome{State: animation.RunStateFailed, Category: render.SceneSyntax, Raw: "bad"})
	}})
	run := seed(animation.RunStateStarting, animation.JobKindRender)

	assert.True(t, w.claimOnce(context.Background(), 1))
	assert.Equal(t, run.ID, ran)
	assert.Equal(t, animation.RunStateFailed, get(t, set, run.ID).State)

	assert.False(t, w.claimOnce(context.Background(), 1))
}

func TestClaimOnceStopsAfterRelease(t *testing.T) {
	w, set, seed := newWorker(t, funcHandler{kind: animation.JobKindRender, fn: func(jc *runtime.Context) error {
		return jc.Release()
	}})
	run := seed(animation.RunStateStarting, animation.JobKindRender)

	assert.False(t, w.claimOnce(context.Background(), 1))
	got := get(t, set, run.ID)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, 1, got.Attempts)
}

func TestExecuteWithoutHandlerFails(t *testing.T) {
	w, set, seed := newWorker(t)
	run := seed(animation.RunStateExporting, animation.JobKindExport)
	claimed, err := set.Runs.ClaimByID(dbctx.Context{Ctx: context.Background()}, run.ID)
	require.NoError(t, err)

	require.NoError(t, w.Execute(context.Background(), claimed))
	got := get(t, set, run.ID)
	assert.Equal(t, animation.RunStateFailed, got.State)
	assert.Contains(t, got.FailureRaw, "no handler")
}

func TestExecuteRecoversPanic(t *testing.T) {
	w, set, seed := newWorker(t, funcHandler{kind: animation.JobKindRender, fn: func(*runtime.Context) error {
		panic("renderer exploded")
	}})
	run := seed(animation.RunStateStarting, animation.JobKindRender)
	claimed, err := set.Runs.ClaimByID(dbctx.Context{Ctx: context.Background()}, run.ID)
	require.NoError(t, err)

	require.NoError(t, w.Execute(context.Background(), claimed))
	got := get(t, set, run.ID)
	assert.Equal(t, animation.RunStateFailed, got.State)
	assert.Equal(t, string(render.UnknownRuntime), got.FailureCategory)
	assert.Contains(t, got.FailureRaw, "renderer exploded")
}

func TestExecuteReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	w, _, seed := newWorker(t, funcHandler{kind: animation.JobKindRender, fn: func(*runtime.Context) error { return boom }})
	run := seed(animation.RunStateStarting, animation.JobKindRender)
	assert.ErrorIs(t, w.Execute(context.Background(), run), boom)
}
