package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smilemakc/playbookflow/internal/logging"
)

// NewRouter builds the gin.Engine exposing every RPC operation plus the
// /ws event stream. gin.New() with an explicit middleware chain rather
// than gin.Default()'s built-ins, so logging goes through the same
// structured logger as the rest of the daemon.
func NewRouter(srv *Server, auth *AuthMiddleware, logger *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recoveryMiddleware(logger), requestLoggingMiddleware(logger))

	h := NewHandlers(srv)

	r.GET("/healthz", h.HandleHealth)
	r.GET("/ws", srv.hub.ServeWS)

	rpc := r.Group("/rpc", auth.RequireBearerToken())
	rpc.POST("/load_workflow", h.HandleLoadWorkflow)
	rpc.POST("/run", h.HandleRun)
	rpc.POST("/stop", h.HandleStop)
	rpc.GET("/status", h.HandleStatus)
	rpc.GET("/graph", h.HandleGraph)
	rpc.GET("/graph/render", h.HandleDrawGraph)
	rpc.GET("/input_data", h.HandleInputData)
	rpc.GET("/nodes/:id", h.HandleNodeDetails)
	rpc.GET("/nodes/:id/stdout", h.HandleTailStdout)
	rpc.POST("/restart_node", h.HandleRestartNode)
	rpc.POST("/skip_node", h.HandleSkipNode)
	rpc.POST("/request_shutdown", h.HandleRequestShutdown)

	return r
}

// recoveryMiddleware catches a panicking handler, logs it, and replies 500
// instead of crashing the daemon out from under a running workflow.
func recoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

// requestLoggingMiddleware propagates a request id via header and emits a
// structured log line carrying method, status, and duration.
func requestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		c.Next()
		logger.Info("request handled",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
