package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// WebhookPath is where the chat platform posts updates
const WebhookPath = "/webhook"

// NewRouter registers the routes of h on a new engine
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", h.Health)
	router.POST(WebhookPath, h.Webhook)

	api := router.Group("/api")
	{
		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks/:id/cancel", h.CancelTask)
	}
	return router
}

// requestLogger logs each request at debug level, failures at warning level
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"elapsed", time.Since(start),
		}
		if status >= 500 {
			logger.Warn("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}
