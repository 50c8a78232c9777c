package services

import (
	"context"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type SweeperConfig struct {
	Interval time.Duration
	// MappingExpiry cancels runs left in AWAITING_MAPPING longer than this. Zero disables it.
	MappingExpiry time.Duration
	// StaleAfter fails locked runs whose heartbeat is older than this.
	StaleAfter time.Duration
	BatchSize  int
}

// RunSweeper closes out runs nobody will finish: abandoned mapping prompts and renders whose
// worker stopped heartbeating.
type RunSweeper struct {
	log      *logger.Logger
	cfg      SweeperConfig
	runs     repos.GenerationRunRepo
	notify   RunNotifier
	inFlight func(*animation.GenerationRun) bool
}

func NewRunSweeper(log *logger.Logger, cfg SweeperConfig, runs repos.GenerationRunRepo, notify RunNotifier, inFlight func(*animation.GenerationRun) bool) *RunSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if inFlight == nil {
		inFlight = func(*animation.GenerationRun) bool { return false }
	}
	return &RunSweeper{
		log:      log.With("component", "RunSweeper"),
		cfg:      cfg,
		runs:     runs,
		notify:   notify,
		inFlight: inFlight,
	}
}

func (s *RunSweeper) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep(ctx, time.Now())
			}
		}
	}()
}

// Sweep runs one pass and returns how many runs it closed.
func (s *RunSweeper) Sweep(ctx context.Context, now time.Time) int {
	return s.expireMappings(ctx, now) + s.failStale(ctx, now)
}

func (s *RunSweeper) expireMappings(ctx context.Context, now time.Time) int {
	if s.cfg.MappingExpiry <= 0 {
		return 0
	}
	dbc := dbctx.Context{Ctx: ctx}
	idle, err := s.runs.ListIdle(dbc, animation.RunStateAwaitingMapping, now.Add(-s.cfg.MappingExpiry), s.cfg.BatchSize)
	if err != nil {
		s.log.Warn("list idle runs failed", "error", err)
		return 0
	}
	n := 0
	for _, run := range idle {
		ok, err := s.runs.UpdateFieldsIfState(dbc, run.ID, []animation.RunState{animation.RunStateAwaitingMapping}, map[string]interface{}{
			"state":          animation.RunStateCanceled,
			"status_message": "mapping expired",
		})
		if err != nil {
			s.log.Warn("expire mapping failed", "run_id", run.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		n++
		run.State = animation.RunStateCanceled
		run.StatusMessage = "mapping expired"
		if s.notify != nil {
			_, _ = s.notify.Event(ctx, run, animation.RunEventCanceled, "mapping expired", map[string]any{"reason": "mapping_expired"})
		}
		s.log.Info("mapping expired", "run_id", run.ID, "idle_since", run.UpdatedAt)
	}
	return n
}

func (s *RunSweeper) failStale(ctx context.Context, now time.Time) int {
	dbc := dbctx.Context{Ctx: ctx}
	stale, err := s.runs.ListStale(dbc, now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		s.log.Warn("list stale runs failed", "error", err)
		return 0
	}
	n := 0
	for _, run := range stale {
		if s.inFlight(run) {
			continue
		}
		cat := render.UnknownRuntime
		raw := "worker heartbeat lost"
		updates := map[string]interface{}{
			"state":            animation.RunStateFailed,
			"status_message":   cat.Summary(),
			"failure_category": string(cat),
			"failure_summary":  cat.Summary(),
			"failure_raw":      raw,
			"job_kind":         animation.JobKindNone,
			"locked_at":        nil,
		}
		if run.State == animation.RunStateExporting {
			updates["export_key"] = ""
		} else {
			updates["source_key"] = ""
			updates["preview_key"] = ""
			updates["video_key"] = ""
			updates["frame_keys"] = nil
		}
		ok, err := s.runs.UpdateFieldsIfState(dbc, run.ID, []animation.RunState{run.State}, updates)
		if err != nil {
			s.log.Warn("fail stale run failed", "run_id", run.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		n++
		from := run.State
		run.State = animation.RunStateFailed
		run.FailureCategory = string(cat)
		run.FailureSummary = cat.Summary()
		if s.notify != nil {
			_, _ = s.notify.Event(ctx, run, animation.RunEventFailed, cat.Summary(), map[string]any{"category": cat, "from": from, "reason": "heartbeat_lost"})
		}
		s.log.Warn("stale run failed", "run_id", run.ID, "from", from, "heartbeat_at", run.HeartbeatAt)
	}
	return n
}
