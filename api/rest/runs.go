package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/combatcore/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPage = 500

// RunsHandler serves the journal of past runs.
type RunsHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(db *gorm.DB, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{db: db, logger: logger}
}

func pageLimit(c *gin.Context, def int) int {
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= maxPage {
		return l
	}
	return def
}

// List returns the most recent run summaries.
// GET /api/runs?session=...&limit=20
func (h *RunsHandler) List(c *gin.Context) {
	q := h.db.Order("id DESC").Limit(pageLimit(c, 20))
	if s := c.Query("session"); s != "" {
		q = q.Where("session_id = ?", s)
	}
	var runs []model.RunSummary
	if err := q.Find(&runs).Error; err != nil {
		h.logger.Error("list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Events returns the notifications of one run in order.
// GET /api/runs/:session/:run/events?event=death&limit=100
func (h *RunsHandler) Events(c *gin.Context) {
	run, err := strconv.Atoi(c.Param("run"))
	if err != nil || run <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run"})
		return
	}
	q := h.db.Where("session_id = ? AND run = ?", c.Param("session"), run).
		Order("id").
		Limit(pageLimit(c, 100))
	if ev := c.Query("event"); ev != "" {
		q = q.Where("event = ?", ev)
	}
	var events []model.CombatEvent
	if err := q.Find(&events).Error; err != nil {
		h.logger.Error("list run events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
