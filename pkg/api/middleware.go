package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/api/types"
)

// quietRoutes are polled by supervisors and logged at debug level.
var quietRoutes = map[string]bool{
	"/health":        true,
	"/api/v1/health": true,
}

func useMiddleware(r *gin.Engine) {
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	r.Use(readOnly())
}

// readOnly rejects every method that could change state.
func readOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			c.Header("Allow", "GET, HEAD, OPTIONS")
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, types.ErrorResponse{
				Error:   "method not allowed",
				Message: "the lock API is read-only",
			})
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}

		log.WithLevel(requestLevel(c.FullPath(), c.Writer.Status())).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func requestLevel(route string, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case quietRoutes[route]:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
