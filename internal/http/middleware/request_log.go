package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Event streams log on disconnect, so
// their duration is the life of the subscription.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		reqLog := log.With(ctxutil.LogFields(c.Request.Context())...)
		fields := []interface{}{
			"method", c.Request.Method,
			"route", routeLabel(c),
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if code := c.GetString(response.ErrorCodeKey); code != "" {
			fields = append(fields, "error_code", code)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			reqLog.Error("HTTP request", fields...)
		case status >= 400:
			reqLog.Warn("HTTP request", fields...)
		default:
			reqLog.Info("HTTP request", fields...)
		}
	}
}

// routeLabel is the matched route pattern, keeping ids out of labels and logs.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
