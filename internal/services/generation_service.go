package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/codegen"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/intent"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/scoring"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrInvalidTransition = errors.New("run is not in a state that allows this operation")
)

const (
	NotAnimationMessage = "this message does not look like an animation request"
	NeedDatasetMessage  = "attach a dataset (upload a CSV or reference it with csv_path=<name>) to animate it"
)

// RunQueue hands a queued run to the execution backend.
type RunQueue interface {
	Enqueue(ctx context.Context, run *animation.GenerationRun) error
	Cancel(ctx context.Context, runID uuid.UUID) error
}

// PollingQueue is the queue of the in-process worker: runs are claimed from the table, so
// there is nothing to hand over.
type PollingQueue struct{}

func (PollingQueue) Enqueue(context.Context, *animation.GenerationRun) error { return nil }
func (PollingQueue) Cancel(context.Context, uuid.UUID) error                 { return nil }

// RenderCanceler stops a render running in this process.
type RenderCanceler interface {
	Cancel(runID uuid.UUID) bool
}

type GenerationConfig struct {
	Scoring scoring.Config
	Mapping mapping.Config
}

type SubmitInput struct {
	Message   string          `json:"message"`
	DatasetID *uuid.UUID      `json:"dataset_id,omitempty"`
	Options   codegen.Options `json:"options"`
	// AllowGenerative opts into the generative fallback when no template is recommended.
	AllowGenerative bool `json:"allow_generative"`
}

type SelectInput struct {
	DatasetID  uuid.UUID       `json:"dataset_id"`
	TemplateID string          `json:"template_id"`
	Message    string          `json:"message"`
	Options    codegen.Options `json:"options"`
}

type ConfirmInput struct {
	Mapping map[string]*string `json:"mapping"`
	Labels  map[string]string  `json:"labels,omitempty"`
	Title   string             `json:"title,omitempty"`
	TopN    int                `json:"top_n,omitempty"`
	Aspect  string             `json:"aspect,omitempty"`
	Quality string             `json:"quality,omitempty"`
	Style   string             `json:"style,omitempty"`
	Theme   string             `json:"theme,omitempty"`
	Palette string             `json:"palette,omitempty"`
}

// SubmitResult carries either a run (queued or awaiting mapping) or a candidate list.
type SubmitResult struct {
	Intent     intent.Result       `json:"intent"`
	DatasetID  *uuid.UUID          `json:"dataset_id,omitempty"`
	Candidates []scoring.Candidate `json:"candidates,omitempty"`
	Message    string              `json:"message,omitempty"`
	Run        *RunStatus          `json:"run,omitempty"`
}

type GenerationService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	SelectTemplate(ctx context.Context, in SelectInput) (*RunStatus, error)
	ConfirmMapping(ctx context.Context, runID uuid.UUID, in ConfirmInput) (*RunStatus, error)
	Status(ctx context.Context, runID uuid.UUID) (*RunStatus, error)
	Cancel(ctx context.Context, runID uuid.UUID) (*RunStatus, error)
	RequestExport(ctx context.Context, runID uuid.UUID, quality string) (*RunStatus, error)
	Events(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*animation.GenerationRunEvent, error)
	SourceCode(ctx context.Context, runID uuid.UUID) (filename string, source string, err error)
	MergeExports(ctx context.Context, in MergeInput) (*MergeResult, error)
	// Run loads a run for its owner; used by the event stream.
	Run(ctx context.Context, runID uuid.UUID) (*animation.GenerationRun, error)
}

type generationService struct {
	log        *logger.Logger
	cfg        GenerationConfig
	runs       repos.GenerationRunRepo
	events     repos.RunEventRepo
	datasets   DatasetService
	classifier *intent.Classifier
	registry   *templates.Registry
	generator  *codegen.Generator
	notify     RunNotifier
	emit       SSEEmitter
	queue      RunQueue
	renders    RenderCanceler
	store      objectstore.Store
	merger     VideoMerger
}

type GenerationDeps struct {
	Runs       repos.GenerationRunRepo
	Events     repos.RunEventRepo
	Datasets   DatasetService
	Classifier *intent.Classifier
	Registry   *templates.Registry
	Generator  *codegen.Generator
	Notify     RunNotifier
	Emit       SSEEmitter
	Queue      RunQueue
	Renders    RenderCanceler
	Store      objectstore.Store
	// Merger is optional; without it MergeExports reports unavailable.
	Merger     VideoMerger
}

func NewGenerationService(log *logger.Logger, cfg GenerationConfig, deps GenerationDeps) GenerationService {
	queue := deps.Queue
	if queue == nil {
		queue = PollingQueue{}
	}
	return &generationService{
		log:        log.With("service", "GenerationService"),
		cfg:        cfg,
		runs:       deps.Runs,
		events:     deps.Events,
		datasets:   deps.Datasets,
		classifier: deps.Classifier,
		registry:   deps.Registry,
		generator:  deps.Generator,
		notify:     deps.Notify,
		emit:       deps.Emit,
		queue:      queue,
		renders:    deps.Renders,
		store:      deps.Store,
		merger:     deps.Merger,
	}
}

func (s *generationService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	ctx, span := observability.StartSpan(ctx, "generation.submit")
	defer span.End()

	if _, err := ownerFrom(ctx); err != nil {
		return nil, err
	}
	if err := checkStyle(in.Options); err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)

	ds, err := s.datasets.Resolve(ctx, in.DatasetID, message)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := s.classifier.ClassifyWithDataset(message, ds != nil)
	observability.Current().ObserveStage("classify", time.Since(start))
	observability.Current().IncIntent(res.IsAnimation, res.Hint)
	span.SetAttributes(attribute.Bool("intent.animation", res.IsAnimation), attribute.String("intent.hint", res.Hint))
	s.log.Debug("message classified", "intent", res.String())

	out := &SubmitResult{Intent: res}
	if !res.IsAnimation {
		out.Message = NotAnimationMessage
		return out, nil
	}
	if ds == nil {
		out.Message = NeedDatasetMessage
		return out, nil
	}
	out.DatasetID = &ds.ID

	n, _, err := s.datasets.Normalized(ctx, ds)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	cands := scoring.Score(n, s.registry, res.Hint, s.cfg.Scoring)
	observability.Current().ObserveStage("score", time.Since(start))
	s.log.Debug("templates scored", "dataset_id", ds.ID, "candidates", scoring.Summary(cands))

	rec, ok := scoring.Recommended(cands)
	if !ok {
		observability.Current().IncScoringOutcome("none")
		if in.AllowGenerative && s.generator.Available() {
			run, err := s.startGenerative(ctx, message, ds, n, res.Hint, in.Options)
			if err != nil {
				return nil, err
			}
			out.Run = s.status(run)
			return out, nil
		}
		out.Candidates = cands
		out.Message = scoring.Message(n, cands)
		return out, nil
	}
	observability.Current().IncScoringOutcome(rec.Template.ID)

	run, err := s.startNegotiated(ctx, message, ds, n, rec, res.Hint, in.Options)
	if err != nil {
		return nil, err
	}
	out.Run = s.status(run)
	return out, nil
}

func (s *generationService) SelectTemplate(ctx context.Context, in SelectInput) (*RunStatus, error) {
	if err := checkStyle(in.Options); err != nil {
		return nil, err
	}
	def, ok := s.registry.Get(in.TemplateID)
	if !ok {
		return nil, apierr.NotFound("template_not_found", fmt.Errorf("unknown template %q", in.TemplateID))
	}
	ds, err := s.datasets.Get(ctx, in.DatasetID)
	if err != nil {
		return nil, err
	}
	n, _, err := s.datasets.Normalized(ctx, ds)
	if err != nil {
		return nil, err
	}
	res := s.classifier.ClassifyWithDataset(in.Message, true)

	var cand *scoring.Candidate
	for _, c := range scoring.Score(n, s.registry, res.Hint, s.cfg.Scoring) {
		if c.Template.ID == def.ID {
			c := c
			cand = &c
			break
		}
	}
	if cand == nil || !cand.Feasible {
		return nil, apierr.BadRequest("template_infeasible", fmt.Errorf("template %s cannot be filled from this dataset", def.ID))
	}
	run, err := s.startNegotiated(ctx, strings.TrimSpace(in.Message), ds, n, *cand, res.Hint, in.Options)
	if err != nil {
		return nil, err
	}
	return s.status(run), nil
}

func (s *generationService) newRun(ctx context.Context, message string, ds *animation.Dataset, hint string, opts codegen.Options) *animation.GenerationRun {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		rd = &ctxutil.RequestData{}
	}
	optsJSON, _ := json.Marshal(normalizeOptions(opts))
	now := time.Now()
	return &animation.GenerationRun{
		ID:        uuid.New(),
		OwnerID:   rd.OwnerID,
		SessionID: rd.SessionID,
		Message:   message,
		DatasetID: &ds.ID,
		Hint:      hint,
		State:     animation.RunStateStarting,
		Options:   datatypes.JSON(optsJSON),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func normalizeOptions(o codegen.Options) codegen.Options {
	o.Aspect = render.NormalizeAspect(o.Aspect)
	o.Quality = string(render.ParseTier(o.Quality))
	if o.TopN < 0 {
		o.TopN = 0
	}
	o.Theme = strings.ToLower(strings.TrimSpace(o.Theme))
	o.Palette = strings.ToLower(strings.TrimSpace(o.Palette))
	return o
}

func checkStyle(o codegen.Options) error {
	if err := templates.CheckStyle(o.Theme, o.Palette); err != nil {
		return apierr.BadRequest("unknown_style", err)
	}
	return nil
}

func (s *generationService) create(ctx context.Context, run *animation.GenerationRun, data any) error {
	if err := s.runs.Create(dbctx.Context{Ctx: ctx}, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	s.event(ctx, run, animation.RunEventCreated, "run created", data)
	return nil
}

func (s *generationService) event(ctx context.Context, run *animation.GenerationRun, kind animation.RunEventKind, msg string, data any) {
	if s.notify == nil {
		return
	}
	_, _ = s.notify.Event(ctx, run, kind, msg, data)
}

// startNegotiated creates a run for a scored candidate and either queues it or parks it in
// AWAITING_MAPPING.
func (s *generationService) startNegotiated(ctx context.Context, message string, ds *animation.Dataset, n *dataset.Normalized, cand scoring.Candidate, hint string, opts codegen.Options) (*animation.GenerationRun, error) {
	decision := mapping.Negotiate(cand, n, s.cfg.Mapping)
	negotiation, _ := json.Marshal(decision)
	m, _ := json.Marshal(decision.Mapping)

	run := s.newRun(ctx, message, ds, hint, opts)
	run.TemplateID = cand.Template.ID
	run.Confidence = cand.Confidence
	run.Negotiation = datatypes.JSON(negotiation)
	run.Mapping = datatypes.JSON(m)

	if !decision.AutoConfirmed {
		observability.Current().IncMappingOutcome("prompted")
		run.State = animation.RunStateAwaitingMapping
		if p, ok := decision.Pending(); ok {
			run.StatusMessage = fmt.Sprintf("choose a column for %s", p.Label)
		} else {
			run.StatusMessage = "confirm the column mapping"
		}
		if err := s.create(ctx, run, map[string]any{"template_id": run.TemplateID, "negotiation": decision}); err != nil {
			return nil, err
		}
		s.log.Info("run awaiting mapping", "run_id", run.ID, "template_id", run.TemplateID, "reasons", strings.Join(decision.Reasons, "; "))
		return run, nil
	}

	observability.Current().IncMappingOutcome("auto_confirmed")
	if err := s.create(ctx, run, map[string]any{"template_id": run.TemplateID, "mapping": decision.Mapping}); err != nil {
		return nil, err
	}
	code, err := s.fromTemplate(cand.Template, decision.Mapping, n, normalizeOptions(opts))
	if err != nil {
		return s.failBeforeRender(ctx, run, []animation.RunState{animation.RunStateStarting}, err)
	}
	return s.queueRender(ctx, run, []animation.RunState{animation.RunStateStarting}, code, nil)
}

func (s *generationService) startGenerative(ctx context.Context, message string, ds *animation.Dataset, n *dataset.Normalized, hint string, opts codegen.Options) (*animation.GenerationRun, error) {
	run := s.newRun(ctx, message, ds, hint, opts)
	run.TemplateID = templates.GenerativeFallbackID
	run.Generative = true
	if err := s.create(ctx, run, map[string]any{"template_id": run.TemplateID}); err != nil {
		return nil, err
	}
	code, err := s.generate(ctx, codegen.Request{
		Dataset: n,
		Mapping: mapping.Mapping{},
		Hint:    hint,
		Message: message,
		Options: normalizeOptions(opts),
	})
	if err != nil {
		return s.failBeforeRender(ctx, run, []animation.RunState{animation.RunStateStarting}, err)
	}
	return s.queueRender(ctx, run, []animation.RunState{animation.RunStateStarting}, code, nil)
}

func (s *generationService) fromTemplate(def templates.Definition, m mapping.Mapping, n *dataset.Normalized, opts codegen.Options) (codegen.Output, error) {
	start := time.Now()
	defer func() { observability.Current().ObserveStage("codegen_template", time.Since(start)) }()
	return codegen.FromTemplate(def, m, n, opts)
}

func (s *generationService) generate(ctx context.Context, req codegen.Request) (codegen.Output, error) {
	start := time.Now()
	defer func() { observability.Current().ObserveStage("codegen_generative", time.Since(start)) }()
	return s.generator.Generate(ctx, req)
}

// codegenFailure classifies a code generation error with the render taxonomy so the run
// records it like any other failure.
func codegenFailure(err error) render.FailureCategory {
	var se *codegen.StructuralError
	switch {
	case errors.Is(err, codegen.ErrEmptyLabel):
		return render.MissingAxisLabel
	case errors.As(err, &se):
		return render.SceneSyntax
	}
	var ve *mapping.ValidationError
	if errors.As(err, &ve) {
		if len(ve.Unknown) > 0 {
			return render.MissingDataColumn
		}
		if len(ve.Mismatched) > 0 {
			return render.DataTypeIssue
		}
	}
	return render.Classify(err.Error())
}

func (s *generationService) failBeforeRender(ctx context.Context, run *animation.GenerationRun, from []animation.RunState, cause error) (*animation.GenerationRun, error) {
	cat := codegenFailure(cause)
	summary := cat.Summary()
	ok, err := s.runs.UpdateFieldsIfState(dbctx.Context{Ctx: ctx}, run.ID, from, map[string]interface{}{
		"state":            animation.RunStateFailed,
		"failure_category": string(cat),
		"failure_summary":  summary,
		"failure_raw":      cause.Error(),
		"status_message":   summary,
		"job_kind":         animation.JobKindNone,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("invalid_state", ErrInvalidTransition)
	}
	run.State = animation.RunStateFailed
	run.FailureCategory = string(cat)
	run.FailureSummary = summary
	run.FailureRaw = cause.Error()
	run.StatusMessage = summary
	s.log.Warn("code generation failed", "run_id", run.ID, "category", cat, "error", cause)
	s.event(ctx, run, animation.RunEventFailed, summary, map[string]any{"category": cat, "stage": "codegen"})
	return run, nil
}

// queueRender stores the generated source and hands the run to the render queue.
func (s *generationService) queueRender(ctx context.Context, run *animation.GenerationRun, from []animation.RunState, code codegen.Output, extra map[string]interface{}) (*animation.GenerationRun, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"state":          animation.RunStateStarting,
		"source":         code.Source,
		"entry_point":    code.EntryPoint,
		"generative":     code.Generative,
		"template_id":    code.TemplateID,
		"job_kind":       animation.JobKindRender,
		"queued_at":      now,
		"locked_at":      nil,
		"status_message": "queued for render",
	}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := s.runs.UpdateFieldsIfState(dbctx.Context{Ctx: ctx}, run.ID, from, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("invalid_state", ErrInvalidTransition)
	}
	prev := run.State
	run.State = animation.RunStateStarting
	run.Source = code.Source
	run.EntryPoint = code.EntryPoint
	run.Generative = code.Generative
	run.TemplateID = code.TemplateID
	run.JobKind = animation.JobKindRender
	run.QueuedAt = &now
	run.StatusMessage = "queued for render"

	if prev != animation.RunStateStarting {
		s.event(ctx, run, animation.RunEventTransition, "mapping confirmed", map[string]any{"from": prev})
	}
	s.event(ctx, run, animation.RunEventProgress, "queued for render", map[string]any{"template_id": code.TemplateID, "generative": code.Generative})

	if err := s.queue.Enqueue(ctx, run); err != nil {
		s.log.Error("enqueue run failed", "run_id", run.ID, "error", err)
		return s.failBeforeRender(ctx, run, []animation.RunState{animation.RunStateStarting}, fmt.Errorf("enqueue: %w", err))
	}
	s.log.Info("run queued", "run_id", run.ID, "template_id", code.TemplateID, "generative", code.Generative)
	return run, nil
}

func (s *generationService) ConfirmMapping(ctx context.Context, runID uuid.UUID, in ConfirmInput) (*RunStatus, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.State != animation.RunStateAwaitingMapping {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run is %s", ErrInvalidTransition, run.State))
	}
	def, ok := s.registry.Get(run.TemplateID)
	if !ok {
		return nil, apierr.NotFound("template_not_found", fmt.Errorf("unknown template %q", run.TemplateID))
	}
	if run.DatasetID == nil {
		return nil, apierr.BadRequest("dataset_required", errors.New("run has no dataset"))
	}
	ds, err := s.datasets.Get(ctx, *run.DatasetID)
	if err != nil {
		return nil, err
	}
	n, _, err := s.datasets.Normalized(ctx, ds)
	if err != nil {
		return nil, err
	}

	m := mapping.Mapping(in.Mapping).Canonical()
	if err := mapping.Validate(def, m, n); err != nil {
		observability.Current().IncMappingOutcome("rejected")
		return nil, apierr.BadRequest("invalid_mapping", err)
	}
	observability.Current().IncMappingOutcome("confirmed")

	var opts codegen.Options
	if len(run.Options) > 0 {
		_ = json.Unmarshal(run.Options, &opts)
	}
	opts = mergeOptions(opts, in)
	if err := checkStyle(opts); err != nil {
		return nil, err
	}
	optsJSON, _ := json.Marshal(opts)
	mJSON, _ := json.Marshal(m)

	code, err := s.fromTemplate(def, m, n, opts)
	if err != nil {
		failed, ferr := s.failBeforeRender(ctx, run, []animation.RunState{animation.RunStateAwaitingMapping}, err)
		if ferr != nil {
			return nil, ferr
		}
		return s.status(failed), nil
	}
	run.Mapping = datatypes.JSON(mJSON)
	run.Options = datatypes.JSON(optsJSON)
	queued, err := s.queueRender(ctx, run, []animation.RunState{animation.RunStateAwaitingMapping}, code, map[string]interface{}{
		"mapping": datatypes.JSON(mJSON),
		"options": datatypes.JSON(optsJSON),
	})
	if err != nil {
		return nil, err
	}
	return s.status(queued), nil
}

func mergeOptions(o codegen.Options, in ConfirmInput) codegen.Options {
	if len(in.Labels) > 0 {
		if o.Labels == nil {
			o.Labels = map[string]string{}
		}
		for k, v := range in.Labels {
			o.Labels[mapping.CanonicalKey(k)] = v
		}
	}
	if strings.TrimSpace(in.Title) != "" {
		o.Title = strings.TrimSpace(in.Title)
	}
	if in.TopN > 0 {
		o.TopN = in.TopN
	}
	if in.Aspect != "" {
		o.Aspect = in.Aspect
	}
	if in.Quality != "" {
		o.Quality = in.Quality
	}
	if in.Style != "" {
		o.Style = in.Style
	}
	if in.Theme != "" {
		o.Theme = in.Theme
	}
	if in.Palette != "" {
		o.Palette = in.Palette
	}
	return normalizeOptions(o)
}

func (s *generationService) Run(ctx context.Context, runID uuid.UUID) (*animation.GenerationRun, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.GetForOwner(dbctx.Context{Ctx: ctx}, owner, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.NotFound("run_not_found", ErrRunNotFound)
	}
	return run, nil
}
