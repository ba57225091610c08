package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"FeedSentiment/pkg/logger"
)

// ServerOptions configure the background HTTP surface.
type ServerOptions struct {
	APIKey         string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewServer creates the gin engine with all routes configured.
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	access := gin.LoggerConfig{
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
		SkipPaths: []string{"/health"},
	}
	if opts.Logger != nil {
		access.Output = logger.NewAt("http", opts.Logger, slog.LevelInfo).Writer()
	}
	r.Use(gin.LoggerWithConfig(access))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(opts.AllowedOrigins))

	setupRoutes(r, handler, opts.APIKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiKey string) {
	r.GET("/health", handler.Health)
	r.GET("/stats", handler.Stats)

	protected := r.Group("/")
	if apiKey != "" {
		protected.Use(authMiddleware(apiKey))
	}
	protected.POST("/analyze", handler.Analyze)
	protected.GET("/history", handler.History)
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := map[string]struct{}{}
	for _, origin := range allowed {
		origins[strings.TrimRight(origin, "/")] = struct{}{}
	}
	_, wildcard := origins["*"]

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0 || wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := origins[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware accepts the key in X-API-Key or as a Bearer token.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				provided = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}
		if provided != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		c.Next()
	}
}
