package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/response"
	"github.com/quirehq/quire/internal/service"
)

type TemplateHandler struct {
	templates *service.TemplateService
}

func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type templateRequest struct {
	Name         string                  `json:"name"`
	OutputType   string                  `json:"output_type"`
	SystemPrompt string                  `json:"system_prompt"`
	Sections     []model.TemplateSection `json:"sections"`
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	tpl, err := h.templates.Create(c.Request.Context(), &model.OutputTemplate{
		Name:         req.Name,
		OutputType:   req.OutputType,
		SystemPrompt: req.SystemPrompt,
		Sections:     req.Sections,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tpl)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tpl)
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, templates)
}

func (h *TemplateHandler) Update(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	tpl, err := h.templates.Update(c.Request.Context(), &model.OutputTemplate{
		ID:           c.Param("id"),
		Name:         req.Name,
		OutputType:   req.OutputType,
		SystemPrompt: req.SystemPrompt,
		Sections:     req.Sections,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tpl)
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
