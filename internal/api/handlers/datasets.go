package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListDatasets returns every registered dataset's metadata
func (h *Handlers) ListDatasets(c *gin.Context) {
	registry := h.daemon.GetDatasets()

	var infos []gin.H
	for _, d := range registry.All() {
		info := d.Info()
		infos = append(infos, gin.H{
			"code":       info.Code,
			"paradigm":   info.Paradigm,
			"n_subjects": info.NSubjects,
			"n_sessions": info.NSessions,
			"events":     info.Events,
			"remote":     len(info.Archives) > 0,
			"total_size": info.TotalSize(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"datasets": infos,
		"count":    len(infos),
	})
}

// GetDataset returns full metadata for one dataset
func (h *Handlers) GetDataset(c *gin.Context) {
	code := c.Param("code")

	d, err := h.daemon.GetDatasets().Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("dataset %s not found", code),
		})
		return
	}

	info := d.Info()
	cached := 0
	store := h.daemon.GetDatasetStore()
	for _, a := range info.Archives {
		if store.HasSubject(info.Code, a.Subject) {
			cached++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"info":            info,
		"subjects":        d.Subjects(),
		"cached_subjects": cached,
	})
}

// DownloadDataset fetches every subject archive of a remote dataset into
// the local cache
func (h *Handlers) DownloadDataset(c *gin.Context) {
	code := c.Param("code")

	d, err := h.daemon.GetDatasets().Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("dataset %s not found", code),
		})
		return
	}

	info := d.Info()
	if len(info.Archives) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("dataset %s has no downloadable archives", code),
		})
		return
	}

	store := h.daemon.GetDatasetStore()
	fetched := 0
	for _, a := range info.Archives {
		if _, err := store.EnsureSubject(c.Request.Context(), info, a.Subject); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": fmt.Sprintf("failed to fetch subject %d: %v", a.Subject, err),
			})
			return
		}
		fetched++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "dataset downloaded",
		"dataset":  code,
		"subjects": fetched,
	})
}

// EvictDataset removes a dataset's cached archives
func (h *Handlers) EvictDataset(c *gin.Context) {
	code := c.Param("code")

	if _, err := h.daemon.GetDatasets().Get(code); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("dataset %s not found", code),
		})
		return
	}

	if err := h.daemon.GetDatasetStore().Evict(code); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to evict dataset: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "dataset evicted",
		"dataset": code,
	})
}
