package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/codegen"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

/*
Context is the execution handle for one claimed run. Handlers never write the
generation_run row directly: every state change, progress update and artifact goes
through it so that a run canceled elsewhere is never overwritten and every persisted
change lands in the event ledger.

It implements render.Sink.
*/
type Context struct {
	Ctx    context.Context
	Run    *animation.GenerationRun
	Repo   repos.GenerationRunRepo
	Notify services.RunNotifier
	Log    *logger.Logger
}

var _ render.Sink = (*Context)(nil)

var activeStates = []animation.RunState{
	animation.RunStateStarting,
	animation.RunStatePreviewing,
	animation.RunStateRendering,
	animation.RunStateExporting,
}

var terminalStates = []animation.RunState{
	animation.RunStateCompleted,
	animation.RunStateFailed,
	animation.RunStateCanceled,
}

func NewContext(ctx context.Context, run *animation.GenerationRun, repo repos.GenerationRunRepo, notify services.RunNotifier, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	ctx = ctxutil.Default(ctx)
	if run != nil {
		ctx = ctxutil.WithRequestData(ctx, &ctxutil.RequestData{OwnerID: run.OwnerID, SessionID: run.SessionID})
		log = log.With("run_id", run.ID, "job_kind", run.JobKind)
	}
	return &Context{Ctx: ctx, Run: run, Repo: repo, Notify: notify, Log: log}
}

func (c *Context) dbc(ctx context.Context) dbctx.Context {
	if ctx == nil {
		ctx = c.Ctx
	}
	return dbctx.Context{Ctx: ctxutil.Detach(ctx)}
}

func (c *Context) emit(ctx context.Context, kind animation.RunEventKind, msg string, data any) {
	if c.Notify == nil {
		return
	}
	_, _ = c.Notify.Event(ctx, c.Run, kind, msg, data)
}

// predecessors lists every state from which target may be entered, target included.
func predecessors(target animation.RunState) []animation.RunState {
	out := []animation.RunState{target}
	for _, s := range animation.AllRunStates {
		if s != target && animation.CanTransition(s, target) {
			out = append(out, s)
		}
	}
	return out
}

// Request builds the dispatcher request for the claimed run.
func (c *Context) Request() render.Request {
	var opts codegen.Options
	if len(c.Run.Options) > 0 {
		_ = json.Unmarshal(c.Run.Options, &opts)
	}
	quality := render.ParseTier(opts.Quality)
	if c.Run.JobKind == animation.JobKindExport && c.Run.ExportQuality != "" {
		quality = render.ParseTier(c.Run.ExportQuality)
	}
	return render.Request{
		RunID: c.Run.ID,
		Code: codegen.Output{
			Source:     c.Run.Source,
			EntryPoint: c.Run.EntryPoint,
			TemplateID: c.Run.TemplateID,
			Generative: c.Run.Generative,
		},
		Aspect:      opts.Aspect,
		Quality:     quality,
		RetriesUsed: c.Run.RetryCount,
	}
}

func (c *Context) Heartbeat(ctx context.Context, hb render.Heartbeat) {
	if err := c.Repo.Heartbeat(c.dbc(ctx), c.Run.ID); err != nil {
		c.Log.Warn("heartbeat write failed", "error", err)
	}
	now := hb.At
	if now.IsZero() {
		now = time.Now()
	}
	c.Run.HeartbeatAt = &now
	if c.Notify != nil {
		c.Notify.Heartbeat(ctx, c.Run, hb)
	}
}

// Transition moves the run into state. A run that has left the lifecycle path (canceled or
// failed elsewhere) reports render.ErrRunInactive.
func (c *Context) Transition(ctx context.Context, state animation.RunState, phase render.Phase) error {
	now := time.Now()
	ok, err := c.Repo.UpdateFieldsIfState(c.dbc(ctx), c.Run.ID, predecessors(state), map[string]interface{}{
		"state":          state,
		"phase":          string(phase),
		"progress":       0,
		"status_message": "",
		"heartbeat_at":   now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return render.ErrRunInactive
	}
	c.Run.State = state
	c.Run.Phase = string(phase)
	c.Run.Progress = 0
	c.Run.StatusMessage = ""
	c.Run.HeartbeatAt = &now
	c.emit(ctx, animation.RunEventTransition, fmt.Sprintf("%s started", phase), map[string]any{"phase": phase})
	return nil
}

func (c *Context) Progress(ctx context.Context, p render.Progress) {
	msg := p.Message
	if msg == "" {
		msg = fmt.Sprintf("Animation %d: %d%%", p.Step, p.Percent)
	}
	pct := p.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	ok, err := c.Repo.UpdateFieldsUnlessState(c.dbc(ctx), c.Run.ID, terminalStates, map[string]interface{}{
		"progress":       pct,
		"status_message": msg,
		"heartbeat_at":   time.Now(),
	})
	if err != nil {
		c.Log.Warn("progress write failed", "error", err)
		return
	}
	if !ok {
		return
	}
	c.Run.Progress = pct
	c.Run.StatusMessage = msg
	c.emit(ctx, animation.RunEventProgress, msg, map[string]any{"phase": p.Phase, "step": p.Step, "percent": p.Percent})
}

func (c *Context) Retrying(ctx context.Context, category render.FailureCategory, raw string, next codegen.Output) {
	retries := c.Run.RetryCount + 1
	ok, err := c.Repo.UpdateFieldsUnlessState(c.dbc(ctx), c.Run.ID, terminalStates, map[string]interface{}{
		"retry_count": retries,
		"source":      next.Source,
		"entry_point": next.EntryPoint,
		"generative":  next.Generative,
	})
	if err != nil {
		c.Log.Warn("retry write failed", "error", err)
		return
	}
	if !ok {
		return
	}
	c.Run.RetryCount = retries
	c.Run.Source = next.Source
	c.Run.EntryPoint = next.EntryPoint
	c.Run.Generative = next.Generative
	c.emit(ctx, animation.RunEventRetrying, category.Summary(), map[string]any{
		"category": category,
		"attempt":  retries,
		"raw":      render.CapMessage(raw),
	})
}

func artifactColumn(kind render.ArtifactKind) string {
	switch kind {
	case render.ArtifactSource:
		return "source_key"
	case render.ArtifactContactSheet:
		return "preview_key"
	case render.ArtifactVideo:
		return "video_key"
	case render.ArtifactExport:
		return "export_key"
	}
	return ""
}

func (c *Context) Artifact(ctx context.Context, kind render.ArtifactKind, key string) {
	if col := artifactColumn(kind); col != "" {
		ok, err := c.Repo.UpdateFieldsUnlessState(c.dbc(ctx), c.Run.ID, terminalStates, map[string]interface{}{col: key})
		if err != nil {
			c.Log.Warn("artifact write failed", "kind", kind, "error", err)
			return
		}
		if !ok {
			return
		}
	}
	c.emit(ctx, animation.RunEventArtifact, "", map[string]any{"kind": kind, "key": key})
}

// Release unlocks the run without touching its state so that it is claimed again later.
func (c *Context) Release() error {
	_, err := c.Repo.UpdateFieldsIfState(c.dbc(nil), c.Run.ID, []animation.RunState{
		animation.RunStateStarting, animation.RunStateExporting,
	}, map[string]interface{}{"locked_at": nil})
	if err == nil {
		c.Run.LockedAt = nil
	}
	return err
}

// Finish records the dispatcher outcome. It is a no-op when the run already left the active
// states, so a late worker never overwrites a cancel.
func (c *Context) Finish(out render.Outcome) error {
	now := time.Now()
	updates := map[string]interface{}{
		"state":       out.State,
		"locked_at":   nil,
		"job_kind":    animation.JobKindNone,
		"retry_count": max(out.Retries, c.Run.RetryCount),
	}
	if out.Phase != "" {
		updates["phase"] = string(out.Phase)
	}
	if !out.Code.Empty() {
		updates["source"] = out.Code.Source
		updates["entry_point"] = out.Code.EntryPoint
		updates["generative"] = out.Code.Generative
	}

	var kind animation.RunEventKind
	switch out.State {
	case animation.RunStateCompleted:
		kind = animation.RunEventCompleted
		updates["progress"] = 100
		updates["status_message"] = ""
		updates["completed_at"] = now
		updates["failure_category"] = ""
		updates["failure_summary"] = ""
		updates["failure_raw"] = ""
		setKey(updates, "source_key", out.SourceKey)
		setKey(updates, "preview_key", out.ContactSheetKey)
		setKey(updates, "video_key", out.VideoKey)
		setKey(updates, "export_key", out.ExportKey)
		if len(out.FrameKeys) > 0 {
			b, _ := json.Marshal(out.FrameKeys)
			updates["frame_keys"] = datatypes.JSON(b)
		}
	case animation.RunStateFailed:
		kind = animation.RunEventFailed
		cat := out.Category
		if !cat.Valid() {
			cat = render.UnknownRuntime
		}
		summary := out.Summary
		if summary == "" {
			summary = cat.Summary()
		}
		out.Category, out.Summary = cat, summary
		updates["failure_category"] = string(cat)
		updates["failure_summary"] = summary
		updates["failure_raw"] = out.Raw
		updates["status_message"] = summary
		c.dropDispatchKeys(updates)
	case animation.RunStateCanceled:
		kind = animation.RunEventCanceled
		updates["status_message"] = out.Summary
		c.dropDispatchKeys(updates)
	default:
		return fmt.Errorf("outcome state %s is not terminal", out.State)
	}

	ok, err := c.Repo.UpdateFieldsIfState(c.dbc(nil), c.Run.ID, activeStates, updates)
	if err != nil {
		return err
	}
	if !ok {
		c.Log.Info("run left active states before finish", "outcome", out.State)
		return nil
	}

	c.Run.State = out.State
	c.Run.LockedAt = nil
	c.Run.JobKind = animation.JobKindNone
	if out.Phase != "" {
		c.Run.Phase = string(out.Phase)
	}
	var data map[string]any
	msg := out.Summary
	switch out.State {
	case animation.RunStateCompleted:
		c.Run.Progress = 100
		c.Run.CompletedAt = &now
		data = map[string]any{"artifacts": out.Artifacts, "retries": out.Retries}
		msg = fmt.Sprintf("%s completed", out.Phase)
	case animation.RunStateFailed:
		c.Run.FailureCategory = string(out.Category)
		c.Run.FailureSummary = out.Summary
		c.Run.FailureRaw = out.Raw
		data = map[string]any{"category": out.Category, "raw": render.CapMessage(out.Raw), "retries": out.Retries}
	}
	c.emit(ctxutil.Detach(c.Ctx), kind, msg, data)
	return nil
}

// Fail finishes the run as failed outside the dispatcher (missing handler, panic).
func (c *Context) Fail(category render.FailureCategory, raw string) error {
	return c.Finish(render.Outcome{
		State:    animation.RunStateFailed,
		Phase:    render.Phase(c.Run.Phase),
		Category: category,
		Summary:  category.Summary(),
		Raw:      raw,
		Retries:  c.Run.RetryCount,
	})
}

// dropDispatchKeys clears the keys of objects the dispatcher removes when a dispatch does
// not complete. An export failure keeps the earlier render artifacts.
func (c *Context) dropDispatchKeys(updates map[string]interface{}) {
	if c.Run.JobKind == animation.JobKindExport {
		updates["export_key"] = ""
		return
	}
	updates["source_key"] = ""
	updates["preview_key"] = ""
	updates["video_key"] = ""
	updates["frame_keys"] = nil
}

func setKey(updates map[string]interface{}, col, key string) {
	if key != "" {
		updates[col] = key
	}
}

// RunID is a convenience for log fields.
func (c *Context) RunID() uuid.UUID {
	if c == nil || c.Run == nil {
		return uuid.Nil
	}
	return c.Run.ID
}
