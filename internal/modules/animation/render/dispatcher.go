package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/codegen"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

var (
	ErrPoolExhausted = errors.New("render pool exhausted")
	ErrCanceled      = errors.New("render canceled")
	// ErrRunInactive is returned by a Sink when the run was moved to a terminal state elsewhere.
	ErrRunInactive = errors.New("run no longer active")

	errPhaseTimeout = errors.New("render phase timed out")
)

type PoolMode string

const (
	PoolQueue  PoolMode = "queue"
	PoolReject PoolMode = "reject"
)

type Config struct {
	PoolSize          int
	PoolMode          PoolMode
	PreviewTimeout    time.Duration
	RenderTimeout     time.Duration
	ExportTimeout     time.Duration
	HeartbeatInterval time.Duration
	WorkRoot          string
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 2
	}
	if c.PoolMode != PoolReject {
		c.PoolMode = PoolQueue
	}
	if c.PreviewTimeout <= 0 {
		c.PreviewTimeout = 600 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 1800 * time.Second
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 600 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.HeartbeatInterval < time.Second {
		c.HeartbeatInterval = time.Second
	}
	if c.HeartbeatInterval > 10*time.Second {
		c.HeartbeatInterval = 10 * time.Second
	}
	if strings.TrimSpace(c.WorkRoot) == "" {
		c.WorkRoot = filepath.Join(os.TempDir(), "chartmotion-render")
	}
	return c
}

func (c Config) timeout(p Phase) time.Duration {
	switch p {
	case PhasePreview:
		return c.PreviewTimeout
	case PhaseExport:
		return c.ExportTimeout
	default:
		return c.RenderTimeout
	}
}

// ArtifactStore is the subset of object storage the dispatcher writes to.
type ArtifactStore interface {
	Upload(dbc dbctx.Context, category objectstore.Category, key string, r io.Reader) error
	Delete(dbc dbctx.Context, category objectstore.Category, key string) error
}

// Regenerator produces a corrected scene after a SceneSyntax failure.
type Regenerator interface {
	Regenerate(ctx context.Context, prior codegen.Output, failure string) (codegen.Output, error)
}

type ArtifactKind string

const (
	ArtifactSource       ArtifactKind = "source"
	ArtifactPreviewFrame ArtifactKind = "preview_frame"
	ArtifactContactSheet ArtifactKind = "contact_sheet"
	ArtifactVideo        ArtifactKind = "video"
	ArtifactExport       ArtifactKind = "export"
)

// Sink receives everything the dispatcher observes for one run, in order.
type Sink interface {
	Heartbeat(ctx context.Context, hb Heartbeat)
	// Transition persists a state change. Returning ErrRunInactive aborts the run as canceled.
	Transition(ctx context.Context, state animation.RunState, phase Phase) error
	Progress(ctx context.Context, p Progress)
	Retrying(ctx context.Context, category FailureCategory, raw string, next codegen.Output)
	Artifact(ctx context.Context, kind ArtifactKind, key string)
}

type Request struct {
	RunID   uuid.UUID
	Code    codegen.Output
	Aspect  string
	Quality Tier
	// RetriesUsed carries the persisted retry count so a resumed run cannot retry twice.
	RetriesUsed int
}

type Artifacts struct {
	SourceKey       string   `json:"source_key,omitempty"`
	FrameKeys       []string `json:"frame_keys,omitempty"`
	ContactSheetKey string   `json:"contact_sheet_key,omitempty"`
	VideoKey        string   `json:"video_key,omitempty"`
	ExportKey       string   `json:"export_key,omitempty"`
}

type Outcome struct {
	State    animation.RunState
	Phase    Phase
	Category FailureCategory
	Summary  string
	Raw      string
	Retries  int
	Code     codegen.Output
	Artifacts
}

// Dispatcher drives render phases against a bounded renderer pool.
type Dispatcher struct {
	log    *logger.Logger
	cfg    Config
	engine Engine
	store  ArtifactStore
	regen  Regenerator
	pool   *semaphore.Weighted

	mu       sync.Mutex
	inflight map[uuid.UUID]context.CancelCauseFunc
	inUse    int
}

func NewDispatcher(log *logger.Logger, cfg Config, engine Engine, store ArtifactStore, regen Regenerator) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		log:      log.With("component", "RenderDispatcher"),
		cfg:      cfg,
		engine:   engine,
		store:    store,
		regen:    regen,
		pool:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		inflight: map[uuid.UUID]context.CancelCauseFunc{},
	}
}

func (d *Dispatcher) Config() Config { return d.cfg }

// Cancel stops the in-flight render for runID. It reports whether a render was running here.
func (d *Dispatcher) Cancel(runID uuid.UUID) bool {
	d.mu.Lock()
	cancel, ok := d.inflight[runID]
	d.mu.Unlock()
	if ok {
		cancel(ErrCanceled)
	}
	return ok
}

// InFlight reports whether runID is currently rendering in this process.
func (d *Dispatcher) InFlight(runID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[runID]
	return ok
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if d.cfg.PoolMode == PoolReject {
		if !d.pool.TryAcquire(1) {
			return ErrPoolExhausted
		}
	} else if err := d.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	d.mu.Lock()
	d.inUse++
	observability.Current().SetRenderPoolInUse(d.inUse)
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.inUse--
	observability.Current().SetRenderPoolInUse(d.inUse)
	d.mu.Unlock()
	d.pool.Release(1)
}

func (d *Dispatcher) register(ctx context.Context, runID uuid.UUID) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	d.mu.Lock()
	d.inflight[runID] = cancel
	d.mu.Unlock()
	return runCtx, func() {
		d.mu.Lock()
		delete(d.inflight, runID)
		d.mu.Unlock()
		cancel(nil)
	}
}

// Run drives PREVIEWING -> RENDERING -> COMPLETED. Render failures are reported in the
// Outcome; the error return is reserved for pool exhaustion and invalid requests.
func (d *Dispatcher) Run(ctx context.Context, req Request, sink Sink) (Outcome, error) {
	return d.execute(ctx, req, sink, []Phase{PhasePreview, PhaseRender})
}

// Export runs a separate high-quality pass for a completed run.
func (d *Dispatcher) Export(ctx context.Context, req Request, sink Sink) (Outcome, error) {
	return d.execute(ctx, req, sink, []Phase{PhaseExport})
}

type phaseResult struct {
	ok       bool
	success  Succeeded
	canceled bool
	category FailureCategory
	raw      string
}

type runState struct {
	req      Request
	code     codegen.Output
	retries  int
	written  []string
	artifact Artifacts
	attempt  int
}

func (d *Dispatcher) execute(ctx context.Context, req Request, sink Sink, phases []Phase) (Outcome, error) {
	if req.RunID == uuid.Nil {
		return Outcome{}, errors.New("run id required")
	}
	if strings.TrimSpace(req.Code.Source) == "" {
		return Outcome{}, errors.New("source required")
	}
	// Registered before the pool wait so a queued run can be canceled.
	runCtx, done := d.register(ctx, req.RunID)
	defer done()

	log := d.log.With("run_id", req.RunID)
	st := &runState{req: req, code: req.Code, retries: req.RetriesUsed}
	if err := d.acquire(runCtx); err != nil {
		if errors.Is(context.Cause(runCtx), ErrCanceled) {
			return d.canceled(ctx, log, st, phases[0]), nil
		}
		return Outcome{}, err
	}
	defer d.release()

	runDir := filepath.Join(d.cfg.WorkRoot, req.RunID.String())
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.Warn("remove work dir failed", "dir", runDir, "error", err)
		}
	}()

	if phases[0] != PhaseExport {
		key, err := d.uploadSource(runCtx, st)
		if err != nil {
			return d.fail(ctx, log, st, phases[0], UnknownRuntime, fmt.Sprintf("upload source: %v", err)), nil
		}
		sink.Artifact(runCtx, ArtifactSource, key)
	}

	for i := 0; i < len(phases); i++ {
		phase := phases[i]
		if err := sink.Transition(runCtx, stateFor(phase), phase); err != nil {
			if errors.Is(err, ErrRunInactive) {
				return d.canceled(ctx, log, st, phase), nil
			}
			return d.fail(ctx, log, st, phase, UnknownRuntime, fmt.Sprintf("persist transition: %v", err)), nil
		}

		started := time.Now()
		res := d.runPhase(runCtx, runDir, st, phase, sink)
		dur := time.Since(started)

		if res.canceled {
			observability.Current().ObserveRender(string(phase), "canceled", "", dur)
			return d.canceled(ctx, log, st, phase), nil
		}
		if !res.ok {
			observability.Current().ObserveRender(string(phase), "failed", string(res.category), dur)
			if res.category.RetryEligible() && st.retries == 0 && d.regen != nil {
				st.retries++
				observability.Current().IncRenderRetry()
				log.Info("regenerating scene after failure", "phase", phase, "category", res.category)
				next, err := d.regen.Regenerate(runCtx, st.code, res.raw)
				if err != nil {
					if cause := context.Cause(runCtx); errors.Is(cause, ErrCanceled) {
						return d.canceled(ctx, log, st, phase), nil
					}
					raw := res.raw + "\nregeneration failed: " + err.Error()
					return d.fail(ctx, log, st, phase, res.category, raw), nil
				}
				st.code = next
				sink.Retrying(runCtx, res.category, res.raw, next)
				if key, err := d.uploadSource(runCtx, st); err == nil {
					sink.Artifact(runCtx, ArtifactSource, key)
				}
				i--
				continue
			}
			return d.fail(ctx, log, st, phase, res.category, res.raw), nil
		}
		observability.Current().ObserveRender(string(phase), "succeeded", "", dur)

		if err := d.collect(runCtx, st, phase, res.success, sink); err != nil {
			if errors.Is(context.Cause(runCtx), ErrCanceled) {
				return d.canceled(ctx, log, st, phase), nil
			}
			return d.fail(ctx, log, st, phase, UnknownRuntime, fmt.Sprintf("store %s artifacts: %v", phase, err)), nil
		}
	}

	last := phases[len(phases)-1]
	log.Info("render completed", "phase", last, "retries", st.retries)
	return Outcome{
		State:     animation.RunStateCompleted,
		Phase:     last,
		Retries:   st.retries,
		Code:      st.code,
		Artifacts: st.artifact,
	}, nil
}

func stateFor(p Phase) animation.RunState {
	switch p {
	case PhasePreview:
		return animation.RunStatePreviewing
	case PhaseExport:
		return animation.RunStateExporting
	default:
		return animation.RunStateRendering
	}
}

func (d *Dispatcher) runPhase(runCtx context.Context, runDir string, st *runState, phase Phase, sink Sink) phaseResult {
	st.attempt++
	phaseCtx, cancel := context.WithTimeoutCause(runCtx, d.cfg.timeout(phase), errPhaseTimeout)
	defer cancel()

	job := Job{
		RunID:             st.req.RunID,
		Attempt:           st.attempt,
		Source:            st.code.Source,
		EntryPoint:        st.code.EntryPoint,
		Phase:             phase,
		Preset:            PresetFor(phase, st.req.Aspect, st.req.Quality),
		WorkDir:           filepath.Join(runDir, fmt.Sprintf("%s-%d", phase, st.attempt)),
		HeartbeatInterval: d.cfg.HeartbeatInterval,
	}
	events, err := d.engine.Render(phaseCtx, job)
	if err != nil {
		return d.interpret(runCtx, phaseCtx, Failed{Phase: phase, Raw: err.Error()}, false)
	}

	var terminal Event
	for ev := range events {
		switch e := ev.(type) {
		case Heartbeat:
			observability.Current().IncHeartbeat()
			sink.Heartbeat(runCtx, e)
		case Progress:
			e.Phase = phase
			e.Message = CapMessage(e.Message)
			sink.Progress(runCtx, e)
		case Succeeded, Failed:
			if terminal == nil {
				terminal = e
			}
		}
	}
	if terminal == nil {
		terminal = Failed{Phase: phase, Raw: "renderer exited without a result"}
	}
	return d.interpret(runCtx, phaseCtx, terminal, true)
}

// interpret classifies the end of a phase. Cancellation and timeouts are decided from the
// context cause, never from the renderer's text.
func (d *Dispatcher) interpret(runCtx, phaseCtx context.Context, terminal Event, fromEngine bool) phaseResult {
	if errors.Is(context.Cause(runCtx), ErrCanceled) {
		return phaseResult{canceled: true}
	}
	if errors.Is(context.Cause(phaseCtx), errPhaseTimeout) {
		raw := "render timed out"
		if f, ok := terminal.(Failed); ok && strings.TrimSpace(f.Raw) != "" {
			raw = raw + ": " + f.Raw
		}
		return phaseResult{category: PerformanceTimeout, raw: raw}
	}
	if runCtx.Err() != nil {
		return phaseResult{category: UnknownRuntime, raw: "render interrupted: " + context.Cause(runCtx).Error()}
	}
	switch e := terminal.(type) {
	case Succeeded:
		return phaseResult{ok: true, success: e}
	case Failed:
		return phaseResult{category: Classify(e.Raw), raw: e.Raw}
	}
	return phaseResult{category: UnknownRuntime, raw: fmt.Sprintf("unexpected terminal event %T", terminal)}
}

func (d *Dispatcher) key(runID uuid.UUID, parts ...string) string {
	return "runs/" + runID.String() + "/" + strings.Join(parts, "/")
}

func (d *Dispatcher) upload(ctx context.Context, st *runState, key string, r io.Reader) error {
	if err := d.store.Upload(dbctx.Context{Ctx: ctx}, objectstore.CategoryArtifact, key, r); err != nil {
		return err
	}
	st.written = append(st.written, key)
	return nil
}

func (d *Dispatcher) uploadSource(ctx context.Context, st *runState) (string, error) {
	entry := st.code.EntryPoint
	if entry == "" {
		entry = codegen.EntryPoint
	}
	key := d.key(st.req.RunID, "source", fmt.Sprintf("%s-%d.py", entry, st.retries))
	if err := d.upload(ctx, st, key, strings.NewReader(st.code.Source)); err != nil {
		return "", err
	}
	st.artifact.SourceKey = key
	return key, nil
}

func (d *Dispatcher) collect(ctx context.Context, st *runState, phase Phase, s Succeeded, sink Sink) error {
	switch phase {
	case PhasePreview:
		return d.collectPreview(ctx, st, s, sink)
	case PhaseRender, PhaseExport:
		if s.ArtifactPath == "" {
			return errors.New("renderer reported success without an output file")
		}
		name := string(phase) + filepath.Ext(s.ArtifactPath)
		kind := ArtifactVideo
		if phase == PhaseExport {
			name = fmt.Sprintf("export-%s%s", st.req.Quality, filepath.Ext(s.ArtifactPath))
			kind = ArtifactExport
		}
		key := d.key(st.req.RunID, string(phase), name)
		if err := d.uploadFile(ctx, st, key, s.ArtifactPath); err != nil {
			return err
		}
		if kind == ArtifactExport {
			st.artifact.ExportKey = key
		} else {
			st.artifact.VideoKey = key
		}
		sink.Artifact(ctx, kind, key)
	}
	return nil
}

func (d *Dispatcher) uploadFile(ctx context.Context, st *runState, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return d.upload(ctx, st, key, f)
}

func (d *Dispatcher) collectPreview(ctx context.Context, st *runState, s Succeeded, sink Sink) error {
	frames := s.FramePaths
	if len(frames) == 0 {
		return errors.New("renderer produced no preview frames")
	}
	keys := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range frames {
		i, path := i, path
		keys[i] = d.key(st.req.RunID, "preview", fmt.Sprintf("frame_%04d%s", i+1, filepath.Ext(path)))
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			return d.store.Upload(dbctx.Context{Ctx: gctx}, objectstore.CategoryArtifact, keys[i], f)
		})
	}
	err := g.Wait()
	// Keys are tracked even on error so cleanup removes whatever landed.
	st.written = append(st.written, keys...)
	if err != nil {
		return err
	}
	st.artifact.FrameKeys = keys
	for _, k := range keys {
		sink.Artifact(ctx, ArtifactPreviewFrame, k)
	}

	sheet, err := ContactSheet(frames, fmt.Sprintf("%s preview", st.code.TemplateID))
	if err != nil {
		d.log.Warn("contact sheet failed", "run_id", st.req.RunID, "error", err)
		return nil
	}
	key := d.key(st.req.RunID, "preview", "contact_sheet.png")
	if err := d.upload(ctx, st, key, bytes.NewReader(sheet)); err != nil {
		return err
	}
	st.artifact.ContactSheetKey = key
	sink.Artifact(ctx, ArtifactContactSheet, key)
	return nil
}

// cleanup removes every object written during this dispatch. It runs on a detached context
// because the run context is usually already canceled.
func (d *Dispatcher) cleanup(parent context.Context, log *logger.Logger, st *runState) {
	if len(st.written) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer cancel()
	for _, key := range st.written {
		if err := d.store.Delete(dbctx.Context{Ctx: ctx}, objectstore.CategoryArtifact, key); err != nil {
			log.Warn("artifact cleanup failed", "key", key, "error", err)
		}
	}
	st.written = nil
	st.artifact = Artifacts{}
}

func (d *Dispatcher) fail(parent context.Context, log *logger.Logger, st *runState, phase Phase, cat FailureCategory, raw string) Outcome {
	d.cleanup(parent, log, st)
	log.Warn("render failed", "phase", phase, "category", cat, "retries", st.retries)
	return Outcome{
		State:    animation.RunStateFailed,
		Phase:    phase,
		Category: cat,
		Summary:  cat.Summary(),
		Raw:      raw,
		Retries:  st.retries,
		Code:     st.code,
	}
}

func (d *Dispatcher) canceled(parent context.Context, log *logger.Logger, st *runState, phase Phase) Outcome {
	d.cleanup(parent, log, st)
	log.Info("render canceled", "phase", phase)
	return Outcome{
		State:   animation.RunStateCanceled,
		Phase:   phase,
		Summary: "Canceled by owner.",
		Retries: st.retries,
		Code:    st.code,
	}
}
