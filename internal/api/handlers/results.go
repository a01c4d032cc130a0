package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neurobench/neurobench/internal/analysis"
	"github.com/neurobench/neurobench/internal/results"
)

// GetResults returns benchmark rows for one evaluation context, optionally
// filtered by dataset, pipeline and subject
func (h *Handlers) GetResults(c *gin.Context) {
	context := c.Query("context")
	if context == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "context query parameter is required",
		})
		return
	}

	store, err := h.daemon.StoreFor(context)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to open results store: %v", err),
		})
		return
	}

	filter := results.Filter{
		Dataset:  c.Query("dataset"),
		Pipeline: c.Query("pipeline"),
	}
	if raw := c.Query("subject"); raw != "" {
		subject, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("invalid subject: %s", raw),
			})
			return
		}
		filter.Subject = subject
	}

	rows := store.Results(filter)
	c.JSON(http.StatusOK, gin.H{
		"context": context,
		"results": rows,
		"count":   len(rows),
	})
}

// GetSummary returns per-pipeline aggregate scores for one evaluation context
func (h *Handlers) GetSummary(c *gin.Context) {
	context := c.Query("context")
	if context == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "context query parameter is required",
		})
		return
	}

	store, err := h.daemon.StoreFor(context)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to open results store: %v", err),
		})
		return
	}

	rows := store.Results(results.Filter{Dataset: c.Query("dataset")})
	summaries := analysis.Summarize(rows)

	c.JSON(http.StatusOK, gin.H{
		"context": context,
		"summary": summaries,
		"count":   len(summaries),
	})
}
