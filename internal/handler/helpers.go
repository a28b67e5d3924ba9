package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/pkg/errcode"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case apperr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case apperr.IsConflict(err):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case apperr.IsEmptyContext(err):
		response.Error(c, http.StatusUnprocessableEntity, errcode.ErrEmptyContext, err.Error())
	case errors.Is(err, apperr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case errors.Is(err, apperr.ErrTemplateValidation):
		response.Error(c, http.StatusBadRequest, errcode.ErrTemplateValidation, err.Error())
	case errors.Is(err, apperr.ErrIndexing):
		response.Error(c, http.StatusBadGateway, errcode.ErrIndexing, "indexing failed")
	case errors.Is(err, apperr.ErrRetrieval):
		response.Error(c, http.StatusBadGateway, errcode.ErrRetrieval, "retrieval failed")
	case errors.Is(err, apperr.ErrGeneration):
		response.Error(c, http.StatusBadGateway, errcode.ErrGeneration, "generation failed")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, message)
}
