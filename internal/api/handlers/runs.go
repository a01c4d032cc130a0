package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neurobench/neurobench/internal/benchmark"
	"github.com/neurobench/neurobench/internal/evaluation"
	"github.com/neurobench/neurobench/internal/paradigm"
)

// ListRuns returns all known benchmark runs, newest first
func (h *Handlers) ListRuns(c *gin.Context) {
	runs := h.daemon.GetRunManager().All()

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"count":  len(runs),
		"active": h.daemon.GetRunManager().ActiveCount(),
	})
}

// SubmitRun queues a benchmark run described by a JSON spec
func (h *Handlers) SubmitRun(c *gin.Context) {
	var spec benchmark.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid run spec: %v", err),
		})
		return
	}

	// Reject bad specs up front; the run itself executes in the background.
	p, err := benchmark.NewParadigm(spec.Paradigm, paradigm.Config{})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := evaluation.New(spec.Evaluation, evaluation.Options{
		Paradigm:      p,
		Folds:         spec.Folds,
		LearningCurve: spec.Curve,
	}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run := h.daemon.GetRunManager().Submit(&spec)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "run submitted",
		"run":     run,
	})
}

// GetRun returns the state of one run
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, ok := h.daemon.GetRunManager().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("run %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run})
}

// CancelRun cancels a pending or running benchmark run
func (h *Handlers) CancelRun(c *gin.Context) {
	id := c.Param("id")

	if err := h.daemon.GetRunManager().Cancel(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "run cancelled",
		"run_id":  id,
	})
}
