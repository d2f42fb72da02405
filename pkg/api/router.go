package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/byhat/loracore/pkg/api/handlers"
	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
	"github.com/byhat/loracore/pkg/schema"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine     *gin.Engine
	link       link.Link
	subscriber link.EventSubscriber
	validator  *schema.Validator
	database   *db.DB
}

// NewRouter creates a new API router
func NewRouter(lnk link.Link, subscriber link.EventSubscriber, validator *schema.Validator, database *db.DB) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:     engine,
		link:       lnk,
		subscriber: subscriber,
		validator:  validator,
		database:   database,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(301, "/swagger/index.html")
	})

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.link)
	r.engine.GET("/health", healthHandler.Health)

	// Prometheus metrics (collectors are registered by the binary)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		// Health
		v1.GET("/health", healthHandler.Health)

		// Serial port lifecycle
		portHandler := handlers.NewPortHandler(r.link)
		port := v1.Group("/port")
		{
			port.GET("", portHandler.Status)
			port.GET("/stats", portHandler.Stats)
			port.POST("/open", portHandler.Open)
			port.POST("/close", portHandler.Close)
		}

		// Packets
		packetsHandler := handlers.NewPacketsHandler(r.link, r.subscriber)
		packets := v1.Group("/packets")
		{
			packets.POST("", packetsHandler.Send)
			packets.GET("/events", packetsHandler.Events)
		}

		// Transfer log
		transfersHandler := handlers.NewTransfersHandler(r.database)
		transfers := v1.Group("/transfers")
		{
			transfers.GET("", transfersHandler.List)
			transfers.GET("/:id", transfersHandler.Get)
		}

		// Link configuration
		configHandler := handlers.NewConfigHandler(r.database, r.validator)
		config := v1.Group("/config")
		{
			config.GET("", configHandler.Get)
			config.PUT("", configHandler.Put)
		}
	}
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
