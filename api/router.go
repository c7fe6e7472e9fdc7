package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/api/handler"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
func NewRouter(mgr *jobs.Manager, sessions handler.SessionCounter, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	api := r.Group("/api")

	api.GET("/health", handler.Health(mgr, sessions, startTime))

	// Scrape jobs
	api.POST("/scrape", handler.Scrape(mgr))
	api.GET("/jobs/:id", handler.GetJob(mgr))
	api.GET("/jobs/:id/businesses", handler.GetJobBusinesses(mgr))

	return r
}
