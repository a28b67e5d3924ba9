package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/response"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/service"
)

type OutputHandler struct {
	outputs *service.OutputService
}

func NewOutputHandler(outputs *service.OutputService) *OutputHandler {
	return &OutputHandler{outputs: outputs}
}

type indexRequest struct {
	SourceIDs []string `json:"source_ids"`
	ChunkSize int      `json:"chunk_size"`
	Overlap   int      `json:"overlap"`
	Force     bool     `json:"force"`
}

func (h *OutputHandler) Index(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "invalid request")
		return
	}
	report, err := h.outputs.Index(c.Request.Context(), c.Param("id"), service.IndexOptions{
		SourceIDs: req.SourceIDs,
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
		Force:     req.Force,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}

type searchRequest struct {
	Query        string  `json:"query"`
	Limit        int     `json:"limit"`
	MinRelevance float64 `json:"min_relevance"`
}

func (h *OutputHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	results, err := h.outputs.Search(c.Request.Context(), c.Param("id"), req.Query, req.Limit, req.MinRelevance)
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []model.RetrievalResult{}
	}
	response.Success(c, results)
}

type generateRequest struct {
	OutputType   string   `json:"output_type"`
	Title        string   `json:"title"`
	SourceIDs    []string `json:"source_ids"`
	TemplateID   string   `json:"template_id"`
	CustomPrompt string   `json:"custom_prompt"`
	Tone         string   `json:"tone"`
	TargetLength string   `json:"target_length"`
	MaxSources   *int     `json:"max_sources"`
	Temperature  float32  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
}

func (h *OutputHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	// Absent max_sources means "use the default", which is distinct from an
	// explicit zero.
	maxSources := -1
	if req.MaxSources != nil {
		maxSources = *req.MaxSources
	}
	out, err := h.outputs.Generate(c.Request.Context(), model.GenerationRequest{
		NotebookID:   c.Param("id"),
		OutputType:   req.OutputType,
		Title:        req.Title,
		SourceIDs:    req.SourceIDs,
		TemplateID:   req.TemplateID,
		CustomPrompt: req.CustomPrompt,
		Tone:         req.Tone,
		TargetLength: req.TargetLength,
		MaxSources:   maxSources,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

type regenerateRequest struct {
	TemplateID   *string  `json:"template_id"`
	CustomPrompt *string  `json:"custom_prompt"`
	Tone         *string  `json:"tone"`
	TargetLength *string  `json:"target_length"`
	MaxSources   *int     `json:"max_sources"`
	Temperature  *float32 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
	SourceIDs    []string `json:"source_ids"`
}

func (h *OutputHandler) Regenerate(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "invalid request")
		return
	}
	out, err := h.outputs.Regenerate(c.Request.Context(), c.Param("id"), c.Param("output_id"), &rag.RegenerateOverrides{
		TemplateID:   req.TemplateID,
		CustomPrompt: req.CustomPrompt,
		Tone:         req.Tone,
		TargetLength: req.TargetLength,
		MaxSources:   req.MaxSources,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SourceIDs:    req.SourceIDs,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *OutputHandler) Get(c *gin.Context) {
	out, err := h.outputs.Get(c.Request.Context(), c.Param("id"), c.Param("output_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *OutputHandler) List(c *gin.Context) {
	outputs, err := h.outputs.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, outputs)
}

func (h *OutputHandler) Delete(c *gin.Context) {
	if err := h.outputs.Delete(c.Request.Context(), c.Param("id"), c.Param("output_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
