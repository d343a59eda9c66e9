// Package api provides the REST API server for geo-sequencer
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/GiesN/geo-sequencer/pkg/config"
	"github.com/GiesN/geo-sequencer/pkg/geo"
	"github.com/GiesN/geo-sequencer/pkg/sequencer"
)

// @title Geo Sequencer API
// @version 1.0
// @description Read-only monitoring API for the geo-sequencer engine
// @host localhost:8080
// @BasePath /api/v1

// Engine is the read-only view of a running scheduler the API exposes.
type Engine interface {
	Stats() sequencer.Snapshot
	State() sequencer.State
}

// Server serves engine state over HTTP.
type Server struct {
	engine Engine
	cfg    *config.Config
	source string
}

// NewServer builds a Server monitoring engine. sourceName labels the
// active coordinate source in responses.
func NewServer(engine Engine, cfg *config.Config, sourceName string) *Server {
	return &Server{engine: engine, cfg: cfg, source: sourceName}
}

// Router builds the gin handler tree.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/stats", s.getStats)
		v1.GET("/config", s.getConfig)
		v1.GET("/scales", listScales)
		v1.GET("/subdivisions", listSubdivisions)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// Run starts the server on the given port.
func (s *Server) Run(port int) error {
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status and engine state
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "geo-sequencer",
		"state":   s.engine.State().String(),
	})
}

// getStats godoc
// @Summary Engine statistics
// @Description Returns a snapshot of the engine counters
// @Tags monitoring
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/stats [get]
func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":  s.engine.State().String(),
		"source": s.source,
		"stats":  s.engine.Stats(),
	})
}

// getConfig godoc
// @Summary Active configuration
// @Description Returns the configuration the engine was started with
// @Tags monitoring
// @Produce json
// @Success 200 {object} config.Config
// @Router /api/v1/config [get]
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg)
}

// listScales godoc
// @Summary List supported scales
// @Description Returns the musical scales available for coordinate mapping
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/scales [get]
func listScales(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scales": geo.ScaleNames(),
	})
}

// listSubdivisions godoc
// @Summary List supported subdivisions
// @Description Returns the tempo grid subdivisions the engine accepts
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/subdivisions [get]
func listSubdivisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"subdivisions": sequencer.Subdivisions(),
	})
}
