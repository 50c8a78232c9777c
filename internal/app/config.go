package app

import (
	"strings"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type DispatchMode string

const (
	DispatchWorker   DispatchMode = "worker"
	DispatchTemporal DispatchMode = "temporal"
)

type Config struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	JWTSecretKey string
	JWTIssuer    string

	AllowedOrigins []string
	MaxBodyBytes   int64
	ShutdownGrace  time.Duration
	SSEKeepAlive   time.Duration

	// Pipeline thresholds.
	IntentThreshold  float64
	ScorerMinScore   float64
	MappingAutoConf  float64
	CountTransform   bool
	DatasetCacheSize int
	DatasetMaxBytes  int64

	Render render.Config

	CodegenBackend string
	TemplateCatalog string

	MappingIdleExpiry time.Duration
	RunStaleAfter     time.Duration
	SweepInterval     time.Duration

	DispatchMode      DispatchMode
	WorkerConcurrency int
	WorkerPoll        time.Duration

	MetricsAddr string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:         envutil.String("PORT", "8080"),
		Environment:  envutil.String("APP_ENV", "development"),
		ServiceName:  envutil.String("OTEL_SERVICE_NAME", "chartmotion-backend"),
		Version:      envutil.String("APP_VERSION", "dev"),
		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:    envutil.String("JWT_ISSUER", ""),

		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		MaxBodyBytes:   int64(envutil.Int("MAX_BODY_BYTES", 1<<20)),
		ShutdownGrace:  envutil.Seconds("SHUTDOWN_GRACE_SECONDS", 15*time.Second),
		SSEKeepAlive:   envutil.Seconds("SSE_KEEPALIVE_SECONDS", 15*time.Second),

		IntentThreshold:  envutil.Clamp(envutil.Float("INTENT_WEAK_THRESHOLD", 0.10), 0, 1),
		ScorerMinScore:   envutil.Clamp(envutil.Float("SCORER_MIN_RECOMMEND", 0.35), 0, 1),
		MappingAutoConf:  envutil.Clamp(envutil.Float("MAPPING_AUTO_CONFIRM", 0.60), 0, 1),
		CountTransform:   envutil.Bool("COUNT_TRANSFORM_ENABLED", false),
		DatasetCacheSize: envutil.Int("DATASET_CACHE_SIZE", 128),
		DatasetMaxBytes:  int64(envutil.Int("DATASET_MAX_BYTES", 50<<20)),

		Render: render.Config{
			PoolSize:          envutil.Int("RENDER_POOL_SIZE", 2),
			PoolMode:          render.PoolMode(strings.ToLower(envutil.String("RENDER_POOL_MODE", string(render.PoolQueue)))),
			PreviewTimeout:    envutil.Seconds("PREVIEW_TIMEOUT_SECONDS", 600*time.Second),
			RenderTimeout:     envutil.Seconds("RENDER_TIMEOUT_SECONDS", 1800*time.Second),
			ExportTimeout:     envutil.Seconds("EXPORT_TIMEOUT_SECONDS", 600*time.Second),
			HeartbeatInterval: envutil.Seconds("RENDER_HEARTBEAT_SECONDS", 5*time.Second),
			WorkRoot:          envutil.String("RENDER_WORK_ROOT", ""),
		},

		CodegenBackend:  strings.ToLower(envutil.String("CODEGEN_BACKEND", "openai")),
		TemplateCatalog: envutil.String("TEMPLATE_CATALOG_PATH", ""),

		MappingIdleExpiry: time.Duration(envutil.Int("MAPPING_IDLE_EXPIRY_HOURS", 0)) * time.Hour,
		RunStaleAfter:     envutil.Seconds("RUN_STALE_SECONDS", 300*time.Second),
		SweepInterval:     envutil.Seconds("RUN_SWEEP_INTERVAL_SECONDS", time.Minute),

		DispatchMode:      DispatchMode(strings.ToLower(envutil.String("DISPATCH_MODE", string(DispatchWorker)))),
		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 0),
		WorkerPoll:        envutil.Seconds("WORKER_POLL_SECONDS", time.Second),

		MetricsAddr: envutil.String("METRICS_ADDR", ""),
	}
	if cfg.WorkerConcurrency <= 0 {
		// One claimer per renderer slot.
		cfg.WorkerConcurrency = max(cfg.Render.PoolSize, 1)
	}
	if cfg.DispatchMode != DispatchTemporal {
		cfg.DispatchMode = DispatchWorker
	}
	if cfg.JWTSecretKey == "" && log != nil {
		log.Warn("JWT_SECRET_KEY is empty; /api trusts the X-Owner-Id header")
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
