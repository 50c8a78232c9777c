package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name       string
		configured []string
		origin     string
		allowed    bool
	}{
		{"dev vite", nil, "http://localhost:5173", true},
		{"dev loopback", nil, "http://127.0.0.1:3000", true},
		{"configured", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"configured replaces dev", []string{"https://app.example.com"}, "http://localhost:5173", false},
		{"unknown", nil, "https://evil.example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.configured))
			r.OPTIONS("/api/messages", func(c *gin.Context) { c.Status(http.StatusNoContent) })

			got := preflight(r, tc.origin).Header().Get("Access-Control-Allow-Origin")
			if tc.allowed {
				assert.Equal(t, tc.origin, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestCORSAllowsStreamResumeHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(nil))
	r.OPTIONS("/api/messages", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Last-Event-ID")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "last-event-id")
}
