package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/combatcore/api/rest"
	"github.com/kasuganosora/combatcore/bus"
	"github.com/kasuganosora/combatcore/config"
	dbadapter "github.com/kasuganosora/combatcore/db"
	"github.com/kasuganosora/combatcore/game/world"
	"github.com/kasuganosora/combatcore/journal"
	"github.com/kasuganosora/combatcore/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	var cfg *config.Config
	var err error
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Game.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Game.Duration)
		defer cancel()
	}

	// ---- Arena ----
	arena, err := world.New(cfg.Arena, cfg.Combat, world.Options{Logger: logger})
	if err != nil {
		log.Fatalf("arena: %v", err)
	}
	logger.Info("arena initialized",
		zap.Int("enemies", len(cfg.Arena.Enemies)),
		zap.Int("pickups", len(cfg.Arena.Pickups)))

	// ---- Database / Journal ----
	var db *gorm.DB
	db, err = dbadapter.Open(cfg.Database)
	switch {
	case errors.Is(err, dbadapter.ErrDisabled):
		db = nil
		logger.Info("journal disabled")
	case err != nil:
		log.Fatalf("db: %v", err)
	default:
		if err := model.AutoMigrate(db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		jr := journal.Attach(db, arena, journal.Options{Logger: logger.Named("journal")})
		defer jr.Stop(context.Background())
		logger.Info("journal initialized", zap.String("mode", cfg.Database.Mode), zap.String("session", jr.SessionID()))
	}

	// ---- Bus ----
	ps, err := bus.New(cfg.Bus)
	if err != nil {
		log.Fatalf("bus: %v", err)
	}
	defer ps.Close()
	fwd := bus.Attach(ps, arena, cfg.Bus.ChannelPrefix, logger.Named("bus"))
	defer fwd.Stop()

	// ---- HTTP ----
	if !cfg.Server.Disabled {
		if cfg.Server.AdminKey == "" {
			logger.Warn("server.admin_key is not set; admin endpoints are disabled")
		}
		r := apirest.NewRouter(ctx, apirest.RouterConfig{
			AdminKey:       cfg.Server.AdminKey,
			RateLimitRPS:   cfg.Security.RateLimitRPS,
			RateLimitBurst: cfg.Security.RateLimitBurst,
		}, arena, db, logger)
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
		go func() {
			logger.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server", zap.Error(err))
				stop()
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	logger.Info("simulation running", zap.Duration("tick", cfg.Game.TickInterval()))
	arena.Run(ctx, cfg.Game.TickInterval())
	s := arena.Snapshot()
	logger.Info("simulation stopped", zap.Int("run", s.Run), zap.Int64("time_ms", s.TimeMS))
}
