package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/phoneprice/api/handler"
	"github.com/use-agent/phoneprice/api/middleware"
	"github.com/use-agent/phoneprice/config"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Phones   handler.PhoneService
	Notifier handler.Notifier
	Health   handler.HealthInfo
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background work started by middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(deps.Health, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/phones/parse", handler.ParsePhones(deps.Phones, deps.Notifier, cfg.Batch.MaxModels))
	protected.GET("/phones/:model", handler.GetPhone(deps.Phones))

	return r
}
