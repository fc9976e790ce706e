package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/world"
	"go.uber.org/zap"
)

// Arena is the slice of *world.World the handlers need.
type Arena interface {
	Snapshot() world.Snapshot
	Entity(id string) (world.View, error)
	Teleport(id string, pos geom.Vec3) error
	Damage(id string, amount float64) error
	Interact() bool
}

// ArenaHandler exposes the running arena for inspection and control.
type ArenaHandler struct {
	arena  Arena
	logger *zap.Logger
}

// NewArenaHandler creates an ArenaHandler.
func NewArenaHandler(arena Arena, logger *zap.Logger) *ArenaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArenaHandler{arena: arena, logger: logger}
}

// Health reports liveness with the current run.
// GET /health
func (h *ArenaHandler) Health(c *gin.Context) {
	s := h.arena.Snapshot()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time_ms": s.TimeMS, "run": s.Run})
}

// Snapshot returns every entity.
// GET /api/arena
func (h *ArenaHandler) Snapshot(c *gin.Context) {
	s := h.arena.Snapshot()
	if kind := c.Query("kind"); kind != "" {
		kept := s.Entities[:0]
		for _, e := range s.Entities {
			if string(e.Kind) == kind {
				kept = append(kept, e)
			}
		}
		s.Entities = kept
	}
	c.JSON(http.StatusOK, s)
}

// Entity returns one entity.
// GET /api/arena/entities/:id
func (h *ArenaHandler) Entity(c *gin.Context) {
	v, err := h.arena.Entity(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type damageRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// Damage hurts an entity.
// POST /api/admin/entities/:id/damage {"amount": 10}
func (h *ArenaHandler) Damage(c *gin.Context) {
	var req damageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.arena.Damage(id, req.Amount); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("admin damage", zap.String("entity", id), zap.Float64("amount", req.Amount))
	h.Entity(c)
}

// Teleport moves an entity.
// POST /api/admin/entities/:id/teleport {"x":1,"y":0,"z":2}
func (h *ArenaHandler) Teleport(c *gin.Context) {
	var pos geom.Vec3
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.arena.Teleport(id, pos); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("admin teleport", zap.String("entity", id), zap.Any("position", pos))
	h.Entity(c)
}

// Interact uses whatever the player currently focuses.
// POST /api/admin/interact
func (h *ArenaHandler) Interact(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"used": h.arena.Interact()})
}

func (h *ArenaHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, world.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, health.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("arena request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
