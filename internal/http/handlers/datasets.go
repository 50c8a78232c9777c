package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

type DatasetHandler struct {
	log      *logger.Logger
	datasets services.DatasetService
}

func NewDatasetHandler(log *logger.Logger, datasets services.DatasetService) *DatasetHandler {
	return &DatasetHandler{log: log.With("handler", "DatasetHandler"), datasets: datasets}
}

// POST /api/datasets
func (h *DatasetHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New(`multipart field "file" is required`))
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = fh.Filename
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	ds, created, err := h.datasets.Upload(c.Request.Context(), name, f)
	if err != nil {
		response.RespondServiceError(c, err, "dataset_upload_failed")
		return
	}
	if created {
		response.RespondCreated(c, gin.H{"dataset": ds, "created": true})
		return
	}
	response.RespondOK(c, gin.H{"dataset": ds, "created": false})
}

// GET /api/datasets
func (h *DatasetHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	out, err := h.datasets.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondServiceError(c, err, "list_datasets_failed")
		return
	}
	response.RespondOK(c, gin.H{"datasets": out})
}

// GET /api/datasets/:id
func (h *DatasetHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "invalid_dataset_id")
	if !ok {
		return
	}
	ds, err := h.datasets.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_dataset_failed")
		return
	}
	response.RespondOK(c, gin.H{"dataset": ds})
}

// GET /api/datasets/:id/profile
func (h *DatasetHandler) Profile(c *gin.Context) {
	id, ok := parseID(c, "invalid_dataset_id")
	if !ok {
		return
	}
	p, err := h.datasets.Profile(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "profile_dataset_failed")
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// GET /api/datasets/:id/templates/:template_id/suggestions
func (h *DatasetHandler) Suggestions(c *gin.Context) {
	id, ok := parseID(c, "invalid_dataset_id")
	if !ok {
		return
	}
	s, err := h.datasets.Suggest(c.Request.Context(), id, c.Param("template_id"))
	if err != nil {
		response.RespondServiceError(c, err, "suggest_mapping_failed")
		return
	}
	response.RespondOK(c, gin.H{"suggestion": s})
}

func parseID(c *gin.Context, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
