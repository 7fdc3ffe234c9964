package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin.Engine for the spec §6 HTTP surface. metrics may
// be nil, in which case GET /metrics reports 503 the way the teacher's own
// monitoring.Service.ExporterHandler does when monitoring is disabled.
func NewRouter(h *Handler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", metricsHandler(metrics))

	v1 := r.Group("/api/v1")
	v1.POST("/chat", h.Chat)
	v1.POST("/chat/stream", h.ChatStream)
	v1.GET("/conversations", h.ListConversations)
	v1.GET("/conversations/:thread_id", h.GetConversation)
	v1.DELETE("/conversations/:thread_id", h.DeleteConversation)

	return r
}

func metricsHandler(metrics http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.String(http.StatusServiceUnavailable, "monitoring not configured")
			return
		}
		metrics.ServeHTTP(c.Writer, c.Request)
	}
}
