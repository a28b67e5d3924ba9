package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Notebooks *NotebookHandler
	Sources   *SourceHandler
	Outputs   *OutputHandler
	Qa        *QaHandler
	Templates *TemplateHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/notebooks", deps.Notebooks.Create)
	api.GET("/notebooks", deps.Notebooks.List)
	api.GET("/notebooks/:id", deps.Notebooks.Get)
	api.PUT("/notebooks/:id", deps.Notebooks.Update)
	api.DELETE("/notebooks/:id", deps.Notebooks.Delete)

	api.POST("/notebooks/:id/sources", deps.Sources.Create)
	api.GET("/notebooks/:id/sources", deps.Sources.List)
	api.GET("/notebooks/:id/sources/:source_id", deps.Sources.Get)
	api.GET("/notebooks/:id/sources/:source_id/file", deps.Sources.Download)
	api.DELETE("/notebooks/:id/sources/:source_id", deps.Sources.Delete)

	api.POST("/notebooks/:id/index", deps.Outputs.Index)
	api.POST("/notebooks/:id/search", deps.Outputs.Search)
	api.POST("/notebooks/:id/qa", deps.Qa.Ask)

	api.POST("/notebooks/:id/outputs", deps.Outputs.Generate)
	api.GET("/notebooks/:id/outputs", deps.Outputs.List)
	api.GET("/notebooks/:id/outputs/:output_id", deps.Outputs.Get)
	api.POST("/notebooks/:id/outputs/:output_id/regenerate", deps.Outputs.Regenerate)
	api.DELETE("/notebooks/:id/outputs/:output_id", deps.Outputs.Delete)

	api.POST("/templates", deps.Templates.Create)
	api.GET("/templates", deps.Templates.List)
	api.GET("/templates/:id", deps.Templates.Get)
	api.PUT("/templates/:id", deps.Templates.Update)
	api.DELETE("/templates/:id", deps.Templates.Delete)
}
