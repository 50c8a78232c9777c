package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	codegenRequests *CounterVec
	codegenLatency  *HistogramVec

	stageLatency   *HistogramVec
	intentTotal    *CounterVec
	scoringOutcome *CounterVec
	mappingOutcome *CounterVec

	renderOutcomes *CounterVec
	renderLatency  *HistogramVec
	renderRetries  *Counter
	renderPoolUsed *Gauge
	heartbeats     *Counter

	runsByState *GaugeVec
	pgStats     *GaugeVec
	redisUp     *Gauge
	redisPing   *Gauge

	storageBootstrap *CounterVec
	storageMode      *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	renderBuckets := []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800}
	return &Metrics{
		apiRequests: NewCounterVec("cm_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"cm_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("cm_api_inflight_requests", "In-flight API requests."),

		codegenRequests: NewCounterVec("cm_codegen_requests_total", "Generative backend calls by backend/model/status.", []string{"backend", "model", "status"}),
		codegenLatency: NewHistogramVec(
			"cm_codegen_request_duration_seconds",
			"Generative backend latency in seconds.",
			[]string{"backend", "model"},
			[]float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		),

		stageLatency: NewHistogramVec(
			"cm_pipeline_stage_duration_seconds",
			"Synchronous pipeline stage latency (intent, normalize, score, negotiate, codegen).",
			[]string{"stage"},
			[]float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		),
		intentTotal:    NewCounterVec("cm_intent_classified_total", "Messages classified by outcome and hint.", []string{"is_animation", "hint"}),
		scoringOutcome: NewCounterVec("cm_scoring_outcome_total", "Scoring results by recommended template.", []string{"template"}),
		mappingOutcome: NewCounterVec("cm_mapping_outcome_total", "Column mapping negotiation outcomes.", []string{"outcome"}),

		renderOutcomes: NewCounterVec("cm_render_outcomes_total", "Render phase outcomes by phase/outcome/category.", []string{"phase", "outcome", "category"}),
		renderLatency:  NewHistogramVec("cm_render_duration_seconds", "Render phase wall time.", []string{"phase", "outcome"}, renderBuckets),
		renderRetries:  NewCounter("cm_render_retries_total", "Automatic regeneration attempts."),
		renderPoolUsed: NewGauge("cm_render_pool_in_use", "Render slots currently held."),
		heartbeats:     NewCounter("cm_render_heartbeats_total", "Heartbeats emitted by in-flight renders."),

		runsByState: NewGaugeVec("cm_generation_runs", "Generation runs by state.", []string{"state"}),
		pgStats:     NewGaugeVec("cm_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:     NewGauge("cm_redis_up", "Redis reachability (1/0)."),
		redisPing:   NewGauge("cm_redis_ping_seconds", "Redis ping latency in seconds."),

		storageBootstrap: NewCounterVec("cm_object_storage_bootstrap_total", "Object storage bootstrap attempts.", []string{"mode", "status", "code"}),
		storageMode:      NewGaugeVec("cm_object_storage_mode_active", "Active object storage mode (1 for the selected mode).", []string{"mode"}),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.codegenRequests, m.codegenLatency,
		m.stageLatency, m.intentTotal, m.scoringOutcome, m.mappingOutcome,
		m.renderOutcomes, m.renderLatency, m.renderRetries, m.renderPoolUsed, m.heartbeats,
		m.runsByState, m.pgStats, m.redisUp, m.redisPing,
		m.storageBootstrap, m.storageMode,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveCodegenRequest(backend, model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.codegenRequests.Inc(backend, model, status)
	m.codegenLatency.Observe(dur.Seconds(), backend, model)
}

func (m *Metrics) ObserveStage(stage string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage)
}

func (m *Metrics) IncIntent(isAnimation bool, hint string) {
	if m == nil {
		return
	}
	if hint == "" {
		hint = "none"
	}
	m.intentTotal.Inc(strconv.FormatBool(isAnimation), hint)
}

func (m *Metrics) IncScoringOutcome(recommendedTemplate string) {
	if m == nil {
		return
	}
	if recommendedTemplate == "" {
		recommendedTemplate = "none"
	}
	m.scoringOutcome.Inc(recommendedTemplate)
}

func (m *Metrics) IncMappingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mappingOutcome.Inc(outcome)
}

// ObserveRender records one finished render phase. category is "none" on success.
func (m *Metrics) ObserveRender(phase, outcome, category string, dur time.Duration) {
	if m == nil {
		return
	}
	if category == "" {
		category = "none"
	}
	m.renderOutcomes.Inc(phase, outcome, category)
	m.renderLatency.Observe(dur.Seconds(), phase, outcome)
}

func (m *Metrics) IncRenderRetry() {
	if m == nil {
		return
	}
	m.renderRetries.Inc()
}

func (m *Metrics) SetRenderPoolInUse(n int) {
	if m == nil {
		return
	}
	m.renderPoolUsed.Set(float64(n))
}

func (m *Metrics) IncHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *Metrics) ObserveObjectStorageProviderBootstrap(mode, status, code string) {
	if m == nil {
		return
	}
	m.storageBootstrap.Inc(mode, status, code)
}

func (m *Metrics) SetObjectStorageModeActive(mode string) {
	if m == nil {
		return
	}
	for _, known := range []string{"local", "gcs", "gcs_emulator", "s3"} {
		v := 0.0
		if known == mode {
			v = 1
		}
		m.storageMode.Set(v, known)
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StartRunStateCollector periodically publishes the number of generation runs per state.
func (m *Metrics) StartRunStateCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectRunStates(ctx, log, db)
			}
		}
	}()
}

func (m *Metrics) collectRunStates(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	for _, s := range animation.AllRunStates {
		m.runsByState.Set(0, string(s))
	}
	var rows []struct {
		State string
		Count int64
	}
	if err := db.WithContext(ctx).
		Model(&animation.GenerationRun{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		if log != nil {
			log.Warn("metrics: run state query failed", "error", err)
		}
		return
	}
	for _, row := range rows {
		state := strings.TrimSpace(row.State)
		if state == "" {
			state = "unknown"
		}
		m.runsByState.Set(float64(row.Count), state)
	}
}
