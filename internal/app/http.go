package app

import (
	"context"

	"gorm.io/gorm"

	chttp "github.com/yungbote/chartmotion-backend/internal/http"
	httpH "github.com/yungbote/chartmotion-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chartmotion-backend/internal/http/middleware"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Datasets *httpH.DatasetHandler
	Template *httpH.TemplateHandler
	Runs     *httpH.RunHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, clients Clients, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(map[string]httpH.Check{
			"database": pingDB(db),
			"bus":      clients.Bus.Ping,
		}),
		Datasets: httpH.NewDatasetHandler(log, services.Datasets),
		Template: httpH.NewTemplateHandler(services.Registry),
		Runs:     httpH.NewRunHandler(log, services.Generation),
		Realtime: httpH.NewRealtimeHandler(log, hub, services.Generation, cfg.SSEKeepAlive),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *chttp.Server {
	serviceName := ""
	if observability.OtelEnabled() {
		serviceName = cfg.ServiceName
	}
	return chttp.NewServer(chttp.RouterConfig{
		Log:             log,
		AuthMiddleware:  middleware.Auth,
		Metrics:         metrics,
		ServiceName:     serviceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		DatasetHandler:  handlers.Datasets,
		TemplateHandler: handlers.Template,
		RunHandler:      handlers.Runs,
		RealtimeHandler: handlers.Realtime,
		HealthHandler:   handlers.Health,
	})
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
