package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mgp-travel/tourchat/internal/common"
	"github.com/mgp-travel/tourchat/internal/httpapi/handlers"
	"github.com/mgp-travel/tourchat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/", h.Index)
	r.GET("/favicon.ico", h.Favicon)

	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.POST("/chat/stream", h.ChatStream)
	api.POST("/chat/async", h.ChatAsync)
	api.GET("/jobs/:job_id", h.GetJob)
	api.GET("/history", h.History)
	api.POST("/reset", h.Reset)
	api.GET("/status", h.Status)

	return r
}
