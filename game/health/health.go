// Package health implements hit-point pools for damageable entities.
package health

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kasuganosora/combatcore/game/notify"
	"go.uber.org/zap"
)

// Notification names emitted on a pool's hub.
const (
	EventHealthChanged = "health_changed"
	EventDeath         = "death"
)

var (
	// ErrInvalidAmount is returned for negative, NaN or infinite amounts.
	ErrInvalidAmount = errors.New("health: amount must be finite and non-negative")
	// ErrInvalidMax is returned when a pool is configured with max <= 0.
	ErrInvalidMax = errors.New("health: max hit points must be positive")
)

// Lifecycle performs the death consequences owned by the surrounding world.
type Lifecycle interface {
	// Despawn removes the entity after delay, letting death effects play.
	Despawn(id string, delay time.Duration)
	// EndRun presents game-over feedback and resets the run after delay.
	EndRun(delay time.Duration)
}

// Config describes one pool.
type Config struct {
	MaxHitPoints float64       `mapstructure:"max_hit_points"`
	Primary      bool          `mapstructure:"primary"`
	RemovalDelay time.Duration `mapstructure:"removal_delay"`
	RestartDelay time.Duration `mapstructure:"restart_delay"`
}

// Pool holds the hit points of one entity.
type Pool struct {
	id        string
	cfg       Config
	current   float64
	dead      bool
	hub       *notify.Hub
	lifecycle Lifecycle
	logger    *zap.Logger

	mu sync.Mutex
}

// New creates a full pool for entity id. lifecycle may be nil, in which case
// death is only signalled through notifications.
func New(id string, cfg Config, lifecycle Lifecycle, logger *zap.Logger) (*Pool, error) {
	if !(cfg.MaxHitPoints > 0) || math.IsInf(cfg.MaxHitPoints, 0) {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidMax, cfg.MaxHitPoints)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		id:        id,
		cfg:       cfg,
		current:   cfg.MaxHitPoints,
		hub:       notify.NewHub(id),
		lifecycle: lifecycle,
		logger:    logger.Named("health"),
	}, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Hooks returns the pool's notification hub.
func (p *Pool) Hooks() *notify.Hub { return p.hub }

// ID returns the owning entity ID.
func (p *Pool) ID() string { return p.id }

// ApplyDamage reduces hit points. Damage on a dead pool is a silent no-op.
func (p *Pool) ApplyDamage(amount float64) error {
	if !validAmount(amount) {
		return fmt.Errorf("%w: damage %v", ErrInvalidAmount, amount)
	}
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return nil
	}
	before := p.current
	p.current = clamp(p.current-amount, 0, p.cfg.MaxHitPoints)
	after := p.current
	frac := after / p.cfg.MaxHitPoints
	died := after == 0
	if died {
		p.dead = true
	}
	p.mu.Unlock()

	p.logger.Debug("took damage",
		zap.String("entity", p.id),
		zap.Float64("amount", amount),
		zap.Float64("before", before),
		zap.Float64("after", after))

	p.hub.Emit(EventHealthChanged, frac)
	if died {
		p.die()
	}
	return nil
}

// ApplyHeal restores hit points. A dead pool stays dead.
func (p *Pool) ApplyHeal(amount float64) error {
	if !validAmount(amount) {
		return fmt.Errorf("%w: heal %v", ErrInvalidAmount, amount)
	}
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return nil
	}
	p.current = clamp(p.current+amount, 0, p.cfg.MaxHitPoints)
	frac := p.current / p.cfg.MaxHitPoints
	p.mu.Unlock()

	p.logger.Debug("healed", zap.String("entity", p.id), zap.Float64("amount", amount))
	p.hub.Emit(EventHealthChanged, frac)
	return nil
}

func (p *Pool) die() {
	p.logger.Info("died", zap.String("entity", p.id), zap.Bool("primary", p.cfg.Primary))
	p.hub.Emit(EventDeath, 0)
	if p.lifecycle == nil {
		return
	}
	if p.cfg.Primary {
		p.lifecycle.EndRun(p.cfg.RestartDelay)
		return
	}
	p.lifecycle.Despawn(p.id, p.cfg.RemovalDelay)
}

// Current returns the current hit points.
func (p *Pool) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Max returns the configured maximum.
func (p *Pool) Max() float64 { return p.cfg.MaxHitPoints }

// Fraction returns current/max in [0,1].
func (p *Pool) Fraction() float64 {
	return p.Current() / p.cfg.MaxHitPoints
}

// IsDead reports whether the pool has reached 0.
func (p *Pool) IsDead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead
}

// IsPrimary reports whether this pool belongs to the player-equivalent actor.
func (p *Pool) IsPrimary() bool { return p.cfg.Primary }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
