package app

import (
	"fmt"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/jobs/pipeline/render_run"
	jobruntime "github.com/yungbote/chartmotion-backend/internal/jobs/runtime"
	"github.com/yungbote/chartmotion-backend/internal/jobs/worker"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/codegen"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/intent"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/scoring"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
	"github.com/yungbote/chartmotion-backend/internal/temporalx/runflow"
	"github.com/yungbote/chartmotion-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth       services.AuthService
	Datasets   services.DatasetService
	Generation services.GenerationService
	Notify     services.RunNotifier
	Emitter    services.SSEEmitter

	Registry   *templates.Registry
	Dispatcher *render.Dispatcher
	Sweeper    *services.RunSweeper

	// Job infra
	JobRegistry    *jobruntime.Registry
	Worker         *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(log *logger.Logger, cfg Config, reposet repos.Set, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = services.NewBusEmitter(log, clients.Bus)
	notify := services.NewRunNotifier(log, reposet.RunEvents, emitter)

	registry := templates.NewRegistry(log, cfg.TemplateCatalog)
	cache, err := dataset.NewCache(cfg.DatasetCacheSize)
	if err != nil {
		return Services{}, fmt.Errorf("init dataset cache: %w", err)
	}
	datasets := services.NewDatasetService(log, services.DatasetConfig{
		MaxBytes:       cfg.DatasetMaxBytes,
		CountTransform: cfg.CountTransform,
	}, reposet.Datasets, clients.Store, cache, registry)

	// A nil checker skips the python parse; structural checks still run.
	var checker codegen.SyntaxChecker
	if clients.Manim != nil {
		checker = clients.Manim
	}
	generator := codegen.NewGenerator(log, clients.Codegen, "", checker)

	dispatcher := render.NewDispatcher(log, cfg.Render, clients.Manim, clients.Store, generator)

	jobRegistry := jobruntime.NewRegistry()
	if err := jobRegistry.Register(
		render_run.New(log, dispatcher),
		render_run.NewExport(log, dispatcher),
	); err != nil {
		return Services{}, fmt.Errorf("register job handlers: %w", err)
	}
	log.Info("Registered job handlers", "kinds", jobRegistry.Kinds())
	runWorker := worker.NewWorker(log, worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPoll,
	}, reposet.Runs, jobRegistry, notify)

	var (
		queue          services.RunQueue = services.PollingQueue{}
		temporalRunner *temporalworker.Runner
	)
	if cfg.DispatchMode == DispatchTemporal {
		if clients.Temporal == nil {
			return Services{}, fmt.Errorf("temporal dispatch requires a temporal client")
		}
		queue = runflow.NewQueue(log, clients.Temporal, clients.TemporalConfig.TaskQueue)
		temporalRunner, err = temporalworker.NewRunner(log, clients.TemporalConfig, clients.Temporal, reposet.Runs, runWorker, cfg.WorkerConcurrency)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
	}

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.MinRecommend = cfg.ScorerMinScore
	mappingCfg := mapping.DefaultConfig()
	mappingCfg.AutoConfirm = cfg.MappingAutoConf
	intentCfg := intent.DefaultConfig()
	intentCfg.WeakThreshold = cfg.IntentThreshold

	var merger services.VideoMerger
	if clients.FFmpeg != nil {
		merger = clients.FFmpeg
	}
	generation := services.NewGenerationService(log, services.GenerationConfig{
		Scoring: scoringCfg,
		Mapping: mappingCfg,
	}, services.GenerationDeps{
		Runs:       reposet.Runs,
		Events:     reposet.RunEvents,
		Datasets:   datasets,
		Classifier: intent.New(intentCfg),
		Registry:   registry,
		Generator:  generator,
		Notify:     notify,
		Emit:       emitter,
		Queue:      queue,
		Renders:    dispatcher,
		Store:      clients.Store,
		Merger:     merger,
	})

	sweeper := services.NewRunSweeper(log, services.SweeperConfig{
		Interval:      cfg.SweepInterval,
		MappingExpiry: cfg.MappingIdleExpiry,
		StaleAfter:    cfg.RunStaleAfter,
	}, reposet.Runs, notify, func(run *animation.GenerationRun) bool {
		return dispatcher.InFlight(run.ID)
	})

	return Services{
		Auth:           services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Datasets:       datasets,
		Generation:     generation,
		Notify:         notify,
		Emitter:        emitter,
		Registry:       registry,
		Dispatcher:     dispatcher,
		Sweeper:        sweeper,
		JobRegistry:    jobRegistry,
		Worker:         runWorker,
		TemporalWorker: temporalRunner,
	}, nil
}
