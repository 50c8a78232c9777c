package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/jobs/runtime"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
}

type Worker struct {
	log      *logger.Logger
	cfg      Config
	repo     repos.GenerationRunRepo
	registry *runtime.Registry
	notify   services.RunNotifier
}

func NewWorker(baseLog *logger.Logger, cfg Config, repo repos.GenerationRunRepo, registry *runtime.Registry, notify services.RunNotifier) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		log:      baseLog.With("component", "RunWorker"),
		cfg:      cfg,
		repo:     repo,
		registry: registry,
		notify:   notify,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting run worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for w.claimOnce(ctx, workerID) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// claimOnce runs at most one queued run and reports whether it found one.
func (w *Worker) claimOnce(ctx context.Context, workerID int) bool {
	run, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx})
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if run == nil {
		return false
	}
	w.log.Debug("claimed run", "worker_id", workerID, "run_id", run.ID, "job_kind", run.JobKind, "attempt", run.Attempts)
	if err := w.Execute(ctx, run); err != nil {
		w.log.Warn("run execution failed", "worker_id", workerID, "run_id", run.ID, "error", err)
	}
	// A released run keeps its job kind; pause before claiming again.
	return run.JobKind == animation.JobKindNone
}

// Execute runs the handler registered for a claimed run. Panics are recorded as
// UnknownRuntime failures.
func (w *Worker) Execute(ctx context.Context, run *animation.GenerationRun) (err error) {
	jc := runtime.NewContext(ctx, run, w.repo, w.notify, w.log)

	h, ok := w.registry.Get(run.JobKind)
	if !ok {
		w.log.Warn("No handler registered for job_kind", "job_kind", run.JobKind, "run_id", run.ID)
		return jc.Fail(render.UnknownRuntime, fmt.Sprintf("no handler registered for job_kind=%q", run.JobKind))
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Run handler panic", "run_id", run.ID, "job_kind", run.JobKind, "panic", r)
			err = jc.Fail(render.UnknownRuntime, fmt.Sprintf("panic: %v", r))
		}
	}()

	if runErr := h.Run(jc); runErr != nil {
		return runErr
	}
	return nil
}
