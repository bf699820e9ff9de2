package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListEndpoints returns the current presence snapshot. Diagnostic surface
// only; signaling itself stays on the websocket.
func (h *Handler) ListEndpoints(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"endpoints": h.Relay.Snapshot(),
	})
}
