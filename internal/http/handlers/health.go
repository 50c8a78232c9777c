package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
)

// Check tests one dependency. A nil error means ready.
type Check func(ctx context.Context) error

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GET /readyz runs every check concurrently and reports each one.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		ready   = true
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		g.Go(func() error {
			status := "ok"
			if err := check(gctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				ready = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		c.Set(response.ErrorCodeKey, "not_ready")
		c.JSON(http.StatusServiceUnavailable, readiness{Status: "not_ready", Checks: results})
		return
	}
	response.RespondOK(c, readiness{Status: "ready", Checks: results})
}
