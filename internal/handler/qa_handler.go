package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/quirehq/quire/internal/pkg/response"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/service"
)

type QaHandler struct {
	outputs *service.OutputService
}

func NewQaHandler(outputs *service.OutputService) *QaHandler {
	return &QaHandler{outputs: outputs}
}

type askRequest struct {
	Question    string  `json:"question"`
	MaxSources  int     `json:"max_sources"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func (h *QaHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	answer, err := h.outputs.Ask(c.Request.Context(), rag.AskRequest{
		NotebookID:  c.Param("id"),
		Question:    req.Question,
		MaxSources:  req.MaxSources,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}
