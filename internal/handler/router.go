package handler

import (
	"time"

	"docchat/internal/config"
	"docchat/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter mounts the document service routes.
func NewRouter(h *DocumentHandler, corsCfg config.CORSConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(requestLogger())
	router.Use(gin.Recovery())

	if len(corsCfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     corsCfg.AllowedOrigins,
			AllowMethods:     corsCfg.AllowedMethods,
			AllowHeaders:     corsCfg.AllowedHeaders,
			AllowCredentials: corsCfg.AllowCredentials,
			MaxAge:           time.Duration(corsCfg.MaxAge) * time.Second,
		}))
	}

	router.GET("/health", h.Health)
	router.POST("/upload", h.Upload)
	router.POST("/chat", h.Chat)

	api := router.Group("/api")
	{
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:session_id", h.GetSession)
		api.DELETE("/sessions/:session_id", h.DeleteSession)
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"request_id": c.GetHeader("X-Request-ID"),
		}).Debug("request served")
	}
}
