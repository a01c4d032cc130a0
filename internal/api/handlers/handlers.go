package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/neurobench/neurobench/internal/daemon"
)

// Handlers bundles the HTTP endpoints with the daemon they drive.
type Handlers struct {
	daemon *daemon.Daemon
}

func NewHandlers(d *daemon.Daemon) *Handlers {
	return &Handlers{daemon: d}
}

// Health is the liveness probe the CLI polls to detect a running daemon.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Status reports daemon process and registry counters.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.daemon.GetStatus())
}

// Shutdown acknowledges the request and asks the daemon to stop. Teardown
// runs in the daemon's own wait loop, which drains in-flight requests
// before the server exits.
func (h *Handlers) Shutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "daemon shutting down",
	})
	h.daemon.RequestStop()
}
