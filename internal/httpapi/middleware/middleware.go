package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDKey = "request_id"

// RequestID tags every request with a short id, echoed back in X-Request-Id
// so clients can quote it when reporting problems.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		c.Set(RequestIDKey, rid)
		c.Writer.Header().Set("X-Request-Id", rid)
		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "-"
}

// AccessLog logs request start and end with duration and request id.
func AccessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := RequestIDFrom(c)
		log.Info("-> request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"rid", rid,
			"ip", c.ClientIP(),
		)

		c.Next()

		log.Info("<- request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"rid", rid,
		)
	}
}

// Recovery converts panics into JSON 500s for API paths instead of killing
// the connection with gin's default HTML page.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				rid := RequestIDFrom(c)
				log.Error("panic recovered", "rid", rid, "path", c.Request.URL.Path, "panic", r)
				if strings.HasPrefix(c.Request.URL.Path, "/api/") {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error":      "internal server error",
						"request_id": rid,
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
