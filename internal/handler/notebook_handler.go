package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/quirehq/quire/internal/pkg/response"
	"github.com/quirehq/quire/internal/service"
)

type NotebookHandler struct {
	notebooks *service.NotebookService
}

func NewNotebookHandler(notebooks *service.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

type notebookRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *NotebookHandler) Create(c *gin.Context) {
	var req notebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	nb, err := h.notebooks.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nb)
}

func (h *NotebookHandler) Get(c *gin.Context) {
	nb, err := h.notebooks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nb)
}

func (h *NotebookHandler) List(c *gin.Context) {
	notebooks, err := h.notebooks.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notebooks)
}

func (h *NotebookHandler) Update(c *gin.Context) {
	var req notebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	nb, err := h.notebooks.Update(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nb)
}

func (h *NotebookHandler) Delete(c *gin.Context) {
	if err := h.notebooks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
