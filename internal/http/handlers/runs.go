package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

const maxMessageLen = 20000

type RunHandler struct {
	log *logger.Logger
	gen services.GenerationService
}

func NewRunHandler(log *logger.Logger, gen services.GenerationService) *RunHandler {
	return &RunHandler{log: log.With("handler", "RunHandler"), gen: gen}
}

// POST /api/messages
func (h *RunHandler) Submit(c *gin.Context) {
	var in services.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		response.RespondError(c, http.StatusBadRequest, "empty_message", errors.New("message is required"))
		return
	}
	if len(in.Message) > maxMessageLen {
		response.RespondError(c, http.StatusBadRequest, "message_too_large", fmt.Errorf("message exceeds %d characters", maxMessageLen))
		return
	}
	res, err := h.gen.Submit(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err, "submit_failed")
		return
	}
	response.RespondOK(c, res)
}

// POST /api/runs/select
func (h *RunHandler) Select(c *gin.Context) {
	var in services.SelectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(in.TemplateID) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_template_id", errors.New("template_id is required"))
		return
	}
	st, err := h.gen.SelectTemplate(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err, "select_template_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": st})
}

// POST /api/runs/merge
func (h *RunHandler) Merge(c *gin.Context) {
	var in services.MergeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(in.RunIDs) < 2 {
		response.RespondError(c, http.StatusBadRequest, "invalid_merge", errors.New("run_ids needs at least two runs"))
		return
	}
	res, err := h.gen.MergeExports(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err, "merge_failed")
		return
	}
	response.RespondCreated(c, gin.H{"merge": res})
}

// POST /api/runs/:id/mapping
func (h *RunHandler) ConfirmMapping(c *gin.Context) {
	id, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := mapping.ValidatePayload(raw); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_mapping_payload", err)
		return
	}
	var in services.ConfirmInput
	if err := json.Unmarshal(raw, &in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_mapping_payload", err)
		return
	}
	st, err := h.gen.ConfirmMapping(c.Request.Context(), id, in)
	if err != nil {
		response.RespondServiceError(c, err, "confirm_mapping_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": st})
}

// GET /api/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	st, err := h.gen.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_run_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": st})
}

// POST /api/runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	st, err := h.gen.Cancel(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "cancel_run_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": st})
}

// POST /api/runs/:id/export
func (h *RunHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	var req struct {
		Quality string `json:"quality"`
	}
	// The body is optional; the quality defaults to high.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	st, err := h.gen.RequestExport(c.Request.Context(), id, req.Quality)
	if err != nil {
		response.RespondServiceError(c, err, "export_run_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": st})
}

// GET /api/runs/:id/source
func (h *RunHandler) Source(c *gin.Context) {
	id, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	name, src, err := h.gen.SourceCode(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_source_failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/x-python; charset=utf-8", []byte(src))
}
