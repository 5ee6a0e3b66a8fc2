package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/doorlock/pkg/api/handlers"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine *gin.Engine
	source handlers.StatusSource
	keys   handlers.PublicKeySource
}

// NewRouter creates a new API router. The API is read-only: the lock is
// only ever moved by authenticated commands on the control channel.
func NewRouter(source handlers.StatusSource, keys handlers.PublicKeySource) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	useMiddleware(engine)

	router := &Router{
		engine: engine,
		source: source,
		keys:   keys,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.source)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		statusHandler := handlers.NewStatusHandler(r.source, r.keys)
		v1.GET("/status", statusHandler.GetStatus)
		v1.GET("/public-key", statusHandler.GetPublicKey)
	}
}

// Handler returns the engine as an http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}
