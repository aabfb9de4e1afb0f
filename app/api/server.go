package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/rss-rules/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured. gatherer
// backs the /metrics endpoint.
func NewServer(handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
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
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, gatherer)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, gatherer prometheus.Gatherer) {
	// Registration
	r.POST("/addchannel", handler.AddChannel)
	r.POST("/deletechannel/:name", handler.DeleteChannel)

	channels := r.Group("/channels")
	{
		channels.GET("", handler.ListChannels)
		channels.GET("/:name", handler.GetChannel)
		channels.DELETE("/:name", handler.DeleteChannel)
		channels.GET("/:name/items", handler.GetItems)
		channels.GET("/:name/rss", handler.GetRSS)
		channels.POST("/:name/refresh", handler.RefreshChannel)
	}

	r.GET("/ws", handler.ItemsSocket)

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Rules",
			"version":     cfg.GetVersion(),
			"description": "RSS feeds for any page, extracted with regular expression patterns",
			"endpoints": map[string]string{
				"register": "/addchannel (POST, form-encoded)",
				"channels": "/channels",
				"channel":  "/channels/<name>",
				"items":    "/channels/<name>/items?offset=&limit=&filter=",
				"rss":      "/channels/<name>/rss",
				"refresh":  "/channels/<name>/refresh (POST)",
				"delete":   "/channels/<name> (DELETE) or /deletechannel/<name> (POST)",
				"socket":   "/ws",
				"health":   "/health",
				"metrics":  "/metrics",
			},
			"documentation": "https://github.com/lysyi3m/rss-rules",
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
