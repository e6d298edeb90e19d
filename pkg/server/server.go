// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/config"
	"github.com/cinelex/rightsgraph/pkg/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	client rightsgraph.RightsGraph
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, client rightsgraph.RightsGraph) *Server {
	return &Server{
		config: cfg,
		client: client,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	// Set gin mode
	gin.SetMode(s.config.Server.Mode)

	// Create router
	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.client)
	catalogHandler := handlers.NewCatalogHandler(s.client)
	rightsHandler := handlers.NewRightsHandler(s.client)
	ingestHandler := handlers.NewIngestHandler(s.client)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Catalog routes
		v1.POST("/search", catalogHandler.Search)
		v1.GET("/nodes", catalogHandler.ListNodes)
		v1.GET("/nodes/:id", catalogHandler.GetNode)
		v1.GET("/lookup", catalogHandler.LookupExternalID)

		// Rights routes
		edges := v1.Group("/edges")
		{
			edges.POST("", rightsHandler.PutEdge)
			edges.GET("", rightsHandler.ListEdges)
			edges.GET("/:id", rightsHandler.GetEdge)
			edges.POST("/:id/revise", rightsHandler.ReviseEdge)
			edges.POST("/:id/close", rightsHandler.CloseEdge)
		}

		// Ingest routes
		ingest := v1.Group("/ingest")
		{
			ingest.POST("/file", ingestHandler.IngestFile)
			ingest.POST("/resolve", ingestHandler.Resolve)
		}
	}
}

// Router returns the configured router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	fmt.Printf("Starting server on %s\n", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println("Stopping server...")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
