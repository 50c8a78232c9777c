package app

import (
	"context"
	"fmt"
	"net"

	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/data/db"
	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	chttp "github.com/yungbote/chartmotion-backend/internal/http"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *chttp.Server
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New wires the whole service. Background loops do not run until Start.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbService, err := db.Open(log, db.ConfigFromEnv())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := dbService.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	hub := realtime.NewSSEHub(log)
	log.Info("Wiring repos...")
	reposet := repos.NewSet(theDB, log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, theDB, clients, serviceset, hub)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, handlerset, middleware, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		SSEHub:       hub,
		Metrics:      metrics,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the run executor, the sweeper, the bus forwarder and collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Clients.Bus.StartForwarder(ctx, a.forward); err != nil {
		return fmt.Errorf("start SSE forwarder: %w", err)
	}

	switch a.Cfg.DispatchMode {
	case DispatchTemporal:
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	default:
		a.Services.Worker.Start(ctx)
	}
	a.Services.Sweeper.Start(ctx)

	if err := a.Services.Registry.Watch(ctx, a.Cfg.TemplateCatalog); err != nil {
		a.Log.Warn("template catalog watch disabled", "path", a.Cfg.TemplateCatalog, "error", err)
	}

	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	if a.dbService.Driver() == "postgres" {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	}
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.RedisAddr)
	a.Metrics.StartRunStateCollector(ctx, a.Log, a.DB)
	return nil
}

// forward delivers a bus message to this instance: cancel commands reach the local
// dispatcher, everything else goes to SSE subscribers.
func (a *App) forward(msg realtime.SSEMessage) {
	if runID, ok := realtime.CancelTarget(msg); ok {
		if a.Services.Dispatcher.Cancel(runID) {
			a.Log.Info("canceled local render from bus", "run_id", runID)
		}
		return
	}
	a.SSEHub.Broadcast(msg)
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := net.JoinHostPort("", a.Cfg.Port)
	a.Log.Info("HTTP server listening", "addr", addr, "dispatch_mode", a.Cfg.DispatchMode)
	return a.Server.Run(ctx, addr, a.Cfg.ShutdownGrace)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownGrace)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
