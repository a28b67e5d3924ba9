package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/response"
	"github.com/quirehq/quire/internal/service"
)

// maxUploadBytes bounds file source uploads.
const maxUploadBytes = 32 << 20

type SourceHandler struct {
	sources *service.SourceService
}

func NewSourceHandler(sources *service.SourceService) *SourceHandler {
	return &SourceHandler{sources: sources}
}

type addSourceRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Create accepts JSON for text and url sources and multipart form data for
// file sources (fields: name, content, file).
func (h *SourceHandler) Create(c *gin.Context) {
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.createFromUpload(c)
		return
	}
	var req addSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Type == "" {
		req.Type = model.SourceTypeText
	}
	if req.Type == model.SourceTypeFile {
		badRequest(c, "file sources require a multipart upload")
		return
	}
	src, err := h.sources.Add(c.Request.Context(), service.AddSourceRequest{
		NotebookID: c.Param("id"),
		Name:       req.Name,
		Type:       req.Type,
		Content:    req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) createFromUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		badRequest(c, "file too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Close()

	content := c.PostForm("content")
	if content == "" {
		// No extracted text supplied; index the raw bytes as text.
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			handleError(c, err)
			return
		}
		content = string(data)
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			handleError(c, err)
			return
		}
	}
	name := c.PostForm("name")
	if name == "" {
		name = fileHeader.Filename
	}
	src, err := h.sources.Add(c.Request.Context(), service.AddSourceRequest{
		NotebookID: c.Param("id"),
		Name:       name,
		Type:       model.SourceTypeFile,
		Content:    content,
		File:       file,
		FileSize:   fileHeader.Size,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, err := h.sources.Get(c.Request.Context(), c.Param("id"), c.Param("source_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sources)
}

func (h *SourceHandler) Download(c *gin.Context) {
	reader, err := h.sources.OpenFile(c.Request.Context(), c.Param("id"), c.Param("source_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer reader.Close()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	_, _ = io.Copy(c.Writer, reader)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.sources.Delete(c.Request.Context(), c.Param("id"), c.Param("source_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
