package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

const tracerName = "chartmotion"

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// exporterConfig is the OTEL_* environment, read once at init.
type exporterConfig struct {
	endpoint    string
	headers     map[string]string
	insecure    bool
	sampleRatio float64
}

func exporterConfigFromEnv() exporterConfig {
	return exporterConfig{
		endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		headers:     parseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
		insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		sampleRatio: envutil.Clamp(envutil.Float("OTEL_SAMPLER_RATIO", 0.1), 0, 1),
	}
}

var (
	otelOnce     sync.Once
	otelShutdown = func(context.Context) error { return nil }
)

// OtelEnabled reports whether OTEL_ENABLED turns tracing on.
func OtelEnabled() bool { return envutil.Bool("OTEL_ENABLED", false) }

// InitOTel installs the global tracer provider once. The returned shutdown flushes
// pending spans; it is a no-op when tracing is off.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !OtelEnabled() {
			return
		}
		if log == nil {
			log = logger.Nop()
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = tracerName
		}
		ecfg := exporterConfigFromEnv()

		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		))
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ecfg.sampleRatio))),
			sdktrace.WithResource(res),
		}
		exporter, err := buildTraceExporter(ctx, ecfg)
		if err != nil {
			log.Warn("otel exporter init failed; spans are sampled but not exported", "error", err)
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown

		exporterName := "stdout"
		if ecfg.endpoint != "" {
			exporterName = "otlp_http"
		}
		log.Info("otel tracing initialized", "service", serviceName, "exporter", exporterName, "endpoint", ecfg.endpoint, "sample_ratio", ecfg.sampleRatio)
	})
	return otelShutdown
}

// buildTraceExporter sends to OTLP/HTTP when an endpoint is set and to stdout otherwise.
func buildTraceExporter(ctx context.Context, cfg exporterConfig) (sdktrace.SpanExporter, error) {
	if cfg.endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.endpoint)}
	if cfg.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

// parseHeaders reads "k1=v1,k2=v2". Malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, found := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !found || k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// StartSpan starts a span on the package tracer. With tracing disabled the global
// no-op provider makes this free.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
