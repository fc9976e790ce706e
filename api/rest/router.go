package rest

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	AdminKey       string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the inspection and control routes. db may be nil, in
// which case the run journal routes are not mounted.
func NewRouter(ctx context.Context, cfg RouterConfig, arena Arena, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(
		middleware.TraceID(),
		middleware.Logger(logger, "/health", "/api/arena"),
		middleware.Recovery(logger),
		middleware.RateLimit(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	)

	arenaH := NewArenaHandler(arena, logger)
	r.GET("/health", arenaH.Health)

	api := r.Group("/api")
	api.GET("/arena", arenaH.Snapshot)
	api.GET("/arena/entities/:id", arenaH.Entity)

	if db != nil {
		runsH := NewRunsHandler(db, logger)
		api.GET("/runs", runsH.List)
		api.GET("/runs/:session/:run/events", runsH.Events)
	}

	admin := api.Group("/admin", AdminAuth(cfg.AdminKey))
	admin.POST("/entities/:id/damage", arenaH.Damage)
	admin.POST("/entities/:id/teleport", arenaH.Teleport)
	admin.POST("/interact", arenaH.Interact)
	return r
}
