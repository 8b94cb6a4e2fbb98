package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mgp-travel/tourchat/internal/common"
	"github.com/mgp-travel/tourchat/web"
)

// Index serves the embedded chat page.
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.ChatPage)
}

// Favicon answers 204 so browser requests don't pollute the logs with 404s.
func (h *Handler) Favicon(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Status reports liveness, the number of sessions seen, and usage counters.
func (h *Handler) Status(c *gin.Context) {
	usage, err := h.Usage.Snapshot(c.Request.Context())
	if err != nil {
		h.Log.Warn("usage snapshot failed", "err", err)
	}

	common.OK(c, gin.H{
		"status":   "running",
		"sessions": h.Sessions.Len(),
		"usage":    usage,
	})
}
