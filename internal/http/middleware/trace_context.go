package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a request id and a trace id. Caller
// supplied ids win; the trace id otherwise follows the otelgin span when one exists.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		td := &ctxutil.TraceData{
			RequestID: firstNonEmpty(c.GetHeader(HeaderRequestID), uuid.NewString()),
			TraceID:   firstNonEmpty(c.GetHeader(HeaderTraceID), ctxutil.SpanTraceID(ctx), uuid.NewString()),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(ctx, td))

		h := c.Writer.Header()
		h.Set(HeaderTraceID, td.TraceID)
		h.Set(HeaderRequestID, td.RequestID)
		c.Next()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
