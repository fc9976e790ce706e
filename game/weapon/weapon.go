// Package weapon spawns projectiles toward a point under cooldown and spread rules.
package weapon

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kasuganosora/combatcore/game/clock"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/kasuganosora/combatcore/game/projectile"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const EventShotFired = "shot_fired"

// MaxSpreadDegrees bounds the configurable spread angle.
const MaxSpreadDegrees = 30

var (
	// ErrCooldown is returned for a fire request before the cooldown expires.
	// It is an expected rejection, not a failure.
	ErrCooldown = errors.New("weapon: cooling down")
	// ErrNoTemplate is returned when no projectile template is configured.
	ErrNoTemplate = errors.New("weapon: no projectile template")
	// ErrNoTarget is returned by FireAtEntity with a nil target.
	ErrNoTarget      = errors.New("weapon: no target")
	ErrInvalidConfig = errors.New("weapon: invalid config")
)

// Arsenal creates projectile instances in the world and removes them later.
type Arsenal interface {
	Spawn(tpl projectile.Template, shooterTag string, origin, dir geom.Vec3) (*projectile.Projectile, error)
	Despawn(id string, delay time.Duration)
}

// Mount is the shoot point (gun barrel, hand) of the owner.
type Mount interface {
	Muzzle() geom.Vec3
	Facing() geom.Vec3
}

// Positioned is anything that can be aimed at.
type Positioned interface {
	Position() geom.Vec3
}

// Config is the tunable part of an emitter.
type Config struct {
	Cooldown      time.Duration `mapstructure:"cooldown"`
	SpreadDegrees float64       `mapstructure:"spread_angle"`
	Force         float64       `mapstructure:"force"`
	ForceMode     string        `mapstructure:"force_mode"`
	Lifetime      time.Duration `mapstructure:"lifetime"`
	HeightOffset  float64       `mapstructure:"target_height_offset"`
}

// Validate checks the configured ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("%w: cooldown %v < 0", ErrInvalidConfig, c.Cooldown))
	}
	if c.SpreadDegrees < 0 || c.SpreadDegrees > MaxSpreadDegrees || math.IsNaN(c.SpreadDegrees) {
		errs = append(errs, fmt.Errorf("%w: spread_angle %v not in [0,%d]", ErrInvalidConfig, c.SpreadDegrees, MaxSpreadDegrees))
	}
	if c.Force < 0 || math.IsNaN(c.Force) || math.IsInf(c.Force, 0) {
		errs = append(errs, fmt.Errorf("%w: force %v", ErrInvalidConfig, c.Force))
	}
	if c.Lifetime < 0 {
		errs = append(errs, fmt.Errorf("%w: lifetime %v < 0", ErrInvalidConfig, c.Lifetime))
	}
	if math.IsNaN(c.HeightOffset) || math.IsInf(c.HeightOffset, 0) {
		errs = append(errs, fmt.Errorf("%w: target_height_offset %v", ErrInvalidConfig, c.HeightOffset))
	}
	if _, err := projectile.ParseForceMode(c.ForceMode); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// Options wires an emitter to its owner and the world.
type Options struct {
	OwnerID  string
	OwnerTag string
	// Template is nil when the owner has no projectile prefab assigned.
	Template *projectile.Template
	Mount    Mount
	Arsenal  Arsenal
	Clock    clock.Clock
	Rand     *rand.Rand
	Target   Positioned
	Logger   *zap.Logger
}

// Emitter fires projectiles for one owner.
type Emitter struct {
	cfg         Config
	mode        projectile.ForceMode
	ownerTag    string
	tpl         *projectile.Template
	mount       Mount
	arsenal     Arsenal
	clock       clock.Clock
	rng         *rand.Rand
	target      Positioned
	nextAllowed time.Duration
	firing      bool
	hub         *notify.Hub
	logger      *zap.Logger
	reportOnce  rate.Sometimes
}

// New validates cfg and builds an emitter. Mount, Arsenal and Clock are
// required.
func New(cfg Config, opts Options) (*Emitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Mount == nil || opts.Arsenal == nil || opts.Clock == nil {
		return nil, fmt.Errorf("%w: mount, arsenal and clock are required", ErrInvalidConfig)
	}
	if opts.Template != nil {
		if err := opts.Template.Validate(); err != nil {
			return nil, err
		}
	}
	mode, _ := projectile.ParseForceMode(cfg.ForceMode)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Emitter{
		cfg:        cfg,
		mode:       mode,
		ownerTag:   opts.OwnerTag,
		tpl:        opts.Template,
		mount:      opts.Mount,
		arsenal:    opts.Arsenal,
		clock:      opts.Clock,
		rng:        rng,
		target:     opts.Target,
		hub:        notify.NewHub(opts.OwnerID),
		logger:     logger.Named("weapon").With(zap.String("owner", opts.OwnerID)),
		reportOnce: rate.Sometimes{First: 1},
	}, nil
}

// Hooks returns the emitter's notification hub.
func (e *Emitter) Hooks() *notify.Hub { return e.hub }

// FireAt spawns one projectile toward point.
func (e *Emitter) FireAt(point geom.Vec3) error {
	if e.tpl == nil {
		e.reportOnce.Do(func() {
			e.logger.Warn("projectile template is not configured; ranged attacks disabled")
		})
		return ErrNoTemplate
	}
	now := e.clock.Now()
	if now < e.nextAllowed {
		return ErrCooldown
	}

	origin := e.mount.Muzzle()
	dir := point.Sub(origin).Normalize()
	if dir.IsZero() {
		dir = e.mount.Facing().Normalize()
	}
	if e.cfg.SpreadDegrees > 0 {
		dir = e.applySpread(dir)
	}

	p, err := e.arsenal.Spawn(*e.tpl, e.ownerTag, origin, dir)
	if err != nil {
		return fmt.Errorf("weapon: spawn projectile: %w", err)
	}
	if body := p.Body(); body != nil {
		body.AddForce(dir.Scale(e.cfg.Force), e.mode)
	}
	if e.cfg.Lifetime > 0 {
		e.arsenal.Despawn(p.ID(), e.cfg.Lifetime)
	}
	e.nextAllowed = now + e.cfg.Cooldown

	e.logger.Debug("shot fired",
		zap.String("projectile", p.ID()),
		zap.Float64("dir_x", dir.X), zap.Float64("dir_y", dir.Y), zap.Float64("dir_z", dir.Z))
	e.hub.Emit(EventShotFired, 0)
	return nil
}

// FireAtEntity aims at the target's position raised by the height offset.
func (e *Emitter) FireAtEntity(target Positioned) error {
	if target == nil {
		return ErrNoTarget
	}
	return e.FireAt(target.Position().Add(geom.Up.Scale(e.cfg.HeightOffset)))
}

func (e *Emitter) applySpread(dir geom.Vec3) geom.Vec3 {
	s := e.cfg.SpreadDegrees
	pitch := (e.rng.Float64()*2 - 1) * s
	yaw := (e.rng.Float64()*2 - 1) * s
	return geom.RotateYawPitch(dir, yaw, pitch).Normalize()
}

// CanFire reports whether a fire request would be accepted now.
func (e *Emitter) CanFire() bool {
	return e.tpl != nil && e.clock.Now() >= e.nextAllowed
}

// NextAllowed returns the earliest time the next shot is accepted.
func (e *Emitter) NextAllowed() time.Duration { return e.nextAllowed }

// SetTarget changes the default target used by Tick.
func (e *Emitter) SetTarget(t Positioned) { e.target = t }

func (e *Emitter) HasTarget() bool { return e.target != nil }

// StartFiring makes Tick fire at the target whenever the cooldown allows.
func (e *Emitter) StartFiring() { e.firing = true }

func (e *Emitter) StopFiring() { e.firing = false }

func (e *Emitter) Firing() bool { return e.firing }

// Tick fires at the current target while continuous fire is on.
func (e *Emitter) Tick() {
	if !e.firing || e.target == nil {
		return
	}
	if err := e.FireAtEntity(e.target); err != nil && !errors.Is(err, ErrCooldown) && !errors.Is(err, ErrNoTemplate) {
		e.logger.Warn("continuous fire failed", zap.Error(err))
	}
}
