package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neurobench/neurobench/internal/api/handlers"
	"github.com/neurobench/neurobench/internal/daemon"
)

func SetupRoutes(d *daemon.Daemon) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	h := handlers.NewHandlers(d)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/status", h.Status)

		datasets := v1.Group("/datasets")
		{
			datasets.GET("", h.ListDatasets)
			datasets.GET("/:code", h.GetDataset)
			datasets.POST("/:code/download", h.DownloadDataset)
			datasets.DELETE("/:code", h.EvictDataset)
		}

		pipelines := v1.Group("/pipelines")
		{
			pipelines.GET("", h.ListPipelines)
			pipelines.GET("/:name", h.GetPipeline)
		}

		v1.GET("/results", h.GetResults)
		v1.GET("/results/summary", h.GetSummary)

		runs := v1.Group("/runs")
		{
			runs.GET("", h.ListRuns)
			runs.POST("", h.SubmitRun)
			runs.GET("/:id", h.GetRun)
			runs.DELETE("/:id", h.CancelRun)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/shutdown", h.Shutdown)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})

	return router
}
