package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Public endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)
	r.GET("/news", handler.GetNewsList)
	r.GET("/news/:id", handler.GetNewsItem)

	// Admin endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/news", handler.APIListNews)
			api.PATCH("/news/:id/status", handler.APIUpdateNewsStatus)

			api.GET("/schedules", handler.APIListSchedules)
			api.POST("/schedules", handler.APICreateSchedule)
			api.GET("/schedules/:id", handler.APIGetSchedule)
			api.PUT("/schedules/:id", handler.APIUpdateSchedule)
			api.DELETE("/schedules/:id", handler.APIDeleteSchedule)
			api.POST("/schedules/:id/enable", handler.APIEnableSchedule)
			api.POST("/schedules/:id/disable", handler.APIDisableSchedule)
			api.POST("/schedules/:id/run", handler.APIRunSchedule)

			api.GET("/operations", handler.APIListOperations)
			api.GET("/sources", handler.APIListSources)
		}
		slog.Info("Admin API endpoints enabled with authentication")
	} else {
		slog.Warn("Admin API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"stats":  "/stats",
			"news":   "/news",
			"item":   "/news/<id>",
		}

		if apiAccessKey != "" {
			endpoints["admin_news"] = "/api/news (requires X-API-Key header)"
			endpoints["schedules"] = "/api/schedules (requires X-API-Key header)"
			endpoints["operations"] = "/api/operations (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Haberwire",
			"description": "News aggregation service with wire and RSS ingestion, deduplication, and AI enrichment",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
