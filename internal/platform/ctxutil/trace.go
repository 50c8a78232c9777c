package ctxutil

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type traceDataKey struct{}

// TraceData correlates a request across logs, run events and spans.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// SpanTraceID returns the active span's trace id, or "" outside a sampled span.
func SpanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(Default(ctx))
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// LogFields returns key/value pairs identifying the request for structured logs.
func LogFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil {
		fields = append(fields, "owner_id", rd.OwnerID.String())
		if rd.SessionID != "" {
			fields = append(fields, "session_id", rd.SessionID)
		}
	}
	return fields
}

// Detach keeps trace and request data but drops cancellation, for work that must
// outlive the request that started it.
func Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
