package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chartmotion-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chartmotion-backend/internal/http/middleware"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics
	// ServiceName enables otelgin spans when set.
	ServiceName    string
	AllowedOrigins []string
	MaxBodyBytes   int64

	DatasetHandler  *httpH.DatasetHandler
	TemplateHandler *httpH.TemplateHandler
	RunHandler      *httpH.RunHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.MaxBody(cfg.MaxBodyBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Datasets
		if cfg.DatasetHandler != nil {
			api.POST("/datasets", cfg.DatasetHandler.Upload)
			api.GET("/datasets", cfg.DatasetHandler.List)
			api.GET("/datasets/:id", cfg.DatasetHandler.Get)
			api.GET("/datasets/:id/profile", cfg.DatasetHandler.Profile)
			api.GET("/datasets/:id/templates/:template_id/suggestions", cfg.DatasetHandler.Suggestions)
		}

		// Templates
		if cfg.TemplateHandler != nil {
			api.GET("/templates", cfg.TemplateHandler.List)
			api.GET("/templates/styles", cfg.TemplateHandler.Styles)
		}

		// Runs
		if cfg.RunHandler != nil {
			api.POST("/messages", cfg.RunHandler.Submit)
			api.POST("/runs/select", cfg.RunHandler.Select)
			api.POST("/runs/merge", cfg.RunHandler.Merge)
			api.GET("/runs/:id", cfg.RunHandler.Get)
			api.POST("/runs/:id/mapping", cfg.RunHandler.ConfirmMapping)
			api.POST("/runs/:id/cancel", cfg.RunHandler.Cancel)
			api.POST("/runs/:id/export", cfg.RunHandler.Export)
			api.GET("/runs/:id/source", cfg.RunHandler.Source)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/runs/:id/events", cfg.RealtimeHandler.RunEvents)
		}
	}

	return r
}
