package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPipelines returns every loaded pipeline definition
func (h *Handlers) ListPipelines(c *gin.Context) {
	defs := h.daemon.GetPipelines().All()

	var out []gin.H
	for _, def := range defs {
		digest, _ := def.Digest()
		out = append(out, gin.H{
			"name":      def.Name,
			"paradigms": def.Paradigms,
			"steps":     len(def.Steps),
			"digest":    digest,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelines": out,
		"count":     len(out),
	})
}

// GetPipeline returns one pipeline definition in full
func (h *Handlers) GetPipeline(c *gin.Context) {
	name := c.Param("name")

	def, err := h.daemon.GetPipelines().Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("pipeline %s not found", name),
		})
		return
	}

	digest, _ := def.Digest()
	c.JSON(http.StatusOK, gin.H{
		"name":       def.Name,
		"paradigms":  def.Paradigms,
		"pipeline":   def.Steps,
		"param_grid": def.ParamGrid,
		"digest":     digest,
	})
}
