package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
)

type TemplateHandler struct {
	registry *templates.Registry
}

func NewTemplateHandler(registry *templates.Registry) *TemplateHandler {
	return &TemplateHandler{registry: registry}
}

// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"templates": h.registry.List()})
}

// GET /api/templates/styles
func (h *TemplateHandler) Styles(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"themes":          templates.Themes(),
		"palettes":        templates.Palettes(),
		"default_theme":   templates.DefaultTheme,
		"default_palette": templates.DefaultPalette,
	})
}
