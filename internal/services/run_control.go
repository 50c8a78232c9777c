package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

type RunArtifacts struct {
	Source       string   `json:"source,omitempty"`
	ContactSheet string   `json:"contact_sheet,omitempty"`
	Frames       []string `json:"frames,omitempty"`
	Video        string   `json:"video,omitempty"`
	Export       string   `json:"export,omitempty"`
}

type RunFailure struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// RunStatus is the client view of a run. Raw failure output stays server side.
type RunStatus struct {
	ID            uuid.UUID            `json:"id"`
	State         animation.RunState   `json:"state"`
	Phase         string               `json:"phase,omitempty"`
	Progress      int                  `json:"progress"`
	Message       string               `json:"message,omitempty"`
	DatasetID     *uuid.UUID           `json:"dataset_id,omitempty"`
	TemplateID    string               `json:"template_id,omitempty"`
	Confidence    float64              `json:"confidence"`
	Generative    bool                 `json:"generative"`
	Retries       int                  `json:"retries"`
	Mapping       mapping.Mapping      `json:"mapping,omitempty"`
	Prompts       []mapping.AxisPrompt `json:"prompts,omitempty"`
	ExportQuality string               `json:"export_quality,omitempty"`
	Artifacts     RunArtifacts         `json:"artifacts"`
	Failure       *RunFailure          `json:"failure,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

func (s *generationService) url(key string) string {
	if key == "" || s.store == nil {
		return ""
	}
	return s.store.PublicURL(objectstore.CategoryArtifact, key)
}

func (s *generationService) status(run *animation.GenerationRun) *RunStatus {
	st := &RunStatus{
		ID:            run.ID,
		State:         run.State,
		Phase:         run.Phase,
		Progress:      run.Progress,
		Message:       run.StatusMessage,
		DatasetID:     run.DatasetID,
		TemplateID:    run.TemplateID,
		Confidence:    run.Confidence,
		Generative:    run.Generative,
		Retries:       run.RetryCount,
		ExportQuality: run.ExportQuality,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
		CompletedAt:   run.CompletedAt,
	}
	if len(run.Mapping) > 0 {
		_ = json.Unmarshal(run.Mapping, &st.Mapping)
	}
	if run.State == animation.RunStateAwaitingMapping && len(run.Negotiation) > 0 {
		var d mapping.Decision
		if err := json.Unmarshal(run.Negotiation, &d); err == nil {
			st.Prompts = d.Prompts
		}
	}
	st.Artifacts = RunArtifacts{
		Source:       s.url(run.SourceKey),
		ContactSheet: s.url(run.PreviewKey),
		Video:        s.url(run.VideoKey),
		Export:       s.url(run.ExportKey),
	}
	if len(run.FrameKeys) > 0 {
		var keys []string
		if err := json.Unmarshal(run.FrameKeys, &keys); err == nil {
			for _, k := range keys {
				st.Artifacts.Frames = append(st.Artifacts.Frames, s.url(k))
			}
		}
	}
	if run.State == animation.RunStateFailed {
		cat := render.FailureCategory(run.FailureCategory)
		if !cat.Valid() {
			cat = render.UnknownRuntime
		}
		summary := run.FailureSummary
		if summary == "" {
			summary = cat.Summary()
		}
		st.Failure = &RunFailure{Category: string(cat), Summary: summary}
	}
	return st
}

func (s *generationService) Status(ctx context.Context, runID uuid.UUID) (*RunStatus, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.status(run), nil
}

func (s *generationService) Cancel(ctx context.Context, runID uuid.UUID) (*RunStatus, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.State.Cancelable() {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run is %s", ErrInvalidTransition, run.State))
	}
	from := run.State
	updates := map[string]interface{}{
		"state":          animation.RunStateCanceled,
		"status_message": "canceled",
		"job_kind":       animation.JobKindNone,
		"locked_at":      nil,
	}
	// An export cancel keeps the completed render.
	if from == animation.RunStateExporting {
		updates["export_key"] = ""
	} else {
		updates["source_key"] = ""
		updates["preview_key"] = ""
		updates["video_key"] = ""
		updates["frame_keys"] = nil
	}
	ok, err := s.runs.UpdateFieldsIfState(dbctx.Context{Ctx: ctx}, run.ID, []animation.RunState{from}, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run changed state", ErrInvalidTransition))
	}

	run.State = animation.RunStateCanceled
	run.StatusMessage = "canceled"
	run.JobKind = animation.JobKindNone
	run.LockedAt = nil
	if from == animation.RunStateExporting {
		run.ExportKey = ""
	} else {
		run.SourceKey, run.PreviewKey, run.VideoKey, run.FrameKeys = "", "", "", nil
	}
	s.event(ctx, run, animation.RunEventCanceled, "canceled", map[string]any{"from": from})

	local := false
	if s.renders != nil {
		local = s.renders.Cancel(run.ID)
	}
	PublishCancel(ctx, s.emit, run.ID)
	if err := s.queue.Cancel(ctx, run.ID); err != nil {
		s.log.Warn("queue cancel failed", "run_id", run.ID, "error", err)
	}
	s.log.Info("run canceled", "run_id", run.ID, "from", from, "local_render", local)
	return s.status(run), nil
}

func (s *generationService) RequestExport(ctx context.Context, runID uuid.UUID, quality string) (*RunStatus, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.State != animation.RunStateCompleted {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: export needs a completed run, run is %s", ErrInvalidTransition, run.State))
	}
	if run.Source == "" {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run has no source", ErrInvalidTransition))
	}
	tier := render.ParseTier(quality)
	if quality == "" {
		tier = render.TierHigh
	}
	now := time.Now()
	ok, err := s.runs.UpdateFieldsIfState(dbctx.Context{Ctx: ctx}, run.ID, []animation.RunState{animation.RunStateCompleted}, map[string]interface{}{
		"state":          animation.RunStateExporting,
		"phase":          string(render.PhaseExport),
		"progress":       0,
		"status_message": "queued for export",
		"job_kind":       animation.JobKindExport,
		"export_quality": string(tier),
		"export_key":     "",
		"queued_at":      now,
		"locked_at":      nil,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run changed state", ErrInvalidTransition))
	}
	run.State = animation.RunStateExporting
	run.Phase = string(render.PhaseExport)
	run.Progress = 0
	run.StatusMessage = "queued for export"
	run.JobKind = animation.JobKindExport
	run.ExportQuality = string(tier)
	run.ExportKey = ""
	run.QueuedAt = &now
	s.event(ctx, run, animation.RunEventTransition, "queued for export", map[string]any{"quality": tier})

	if err := s.queue.Enqueue(ctx, run); err != nil {
		s.log.Error("enqueue export failed", "run_id", run.ID, "error", err)
		_, _ = s.runs.UpdateFieldsIfState(dbctx.Context{Ctx: ctx}, run.ID, []animation.RunState{animation.RunStateExporting}, map[string]interface{}{
			"state":            animation.RunStateFailed,
			"job_kind":         animation.JobKindNone,
			"failure_category": string(render.UnknownRuntime),
			"failure_summary":  render.UnknownRuntime.Summary(),
			"failure_raw":      err.Error(),
			"status_message":   render.UnknownRuntime.Summary(),
		})
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	return s.status(run), nil
}

func (s *generationService) Events(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*animation.GenerationRunEvent, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	return s.events.ListAfter(dbctx.Context{Ctx: ctx}, runID, afterSeq, limit)
}

func (s *generationService) SourceCode(ctx context.Context, runID uuid.UUID) (string, string, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return "", "", err
	}
	if run.Source == "" {
		return "", "", apierr.NotFound("source_not_found", fmt.Errorf("run %s has no source yet", run.ID))
	}
	name := run.TemplateID
	if name == "" {
		name = "scene"
	}
	return fmt.Sprintf("%s_%s.py", name, run.ID.String()[:8]), run.Source, nil
}
