// Package projectile resolves first-contact damage for short-lived shots.
package projectile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"go.uber.org/zap"
)

var ErrInvalidTemplate = errors.New("projectile: invalid template")

// ForceMode selects how a launch force is applied by the physics body.
type ForceMode int

const (
	ForceImpulse    ForceMode = iota // instantaneous velocity change
	ForceContinuous                  // constant thrust for the body's life
)

func (m ForceMode) String() string {
	if m == ForceContinuous {
		return "continuous"
	}
	return "impulse"
}

// ParseForceMode accepts "impulse" and "continuous"/"force".
func ParseForceMode(s string) (ForceMode, error) {
	switch s {
	case "", "impulse":
		return ForceImpulse, nil
	case "continuous", "force":
		return ForceContinuous, nil
	}
	return ForceImpulse, fmt.Errorf("projectile: unknown force mode %q", s)
}

// Body is the rigid body owned by the external physics solver.
type Body interface {
	AddForce(f geom.Vec3, mode ForceMode)
	// Freeze turns off physics response (kinematic).
	Freeze()
	DisableCollider()
	HideVisual()
}

// Trail is a trailing visual effect attached to a projectile.
type Trail interface {
	ID() string
	Detach()
	StopEmission()
	// RemainingLifetime is how long already-emitted particles keep playing.
	RemainingLifetime() time.Duration
}

// Stage removes objects and spawns impact effects on behalf of projectiles.
type Stage interface {
	Despawn(id string, delay time.Duration)
	// SpawnImpact creates an impact effect and returns its ID.
	SpawnImpact(point, normal geom.Vec3) string
}

// Hittable is whatever a projectile can touch.
type Hittable interface {
	Tag() string
	// Health returns nil when the object cannot take damage.
	Health() *health.Pool
}

// Contact is one collision event from the physics solver.
type Contact struct {
	Other  Hittable
	Point  geom.Vec3
	Normal geom.Vec3
}

// Template is the configured projectile prefab.
type Template struct {
	Damage         float64       `mapstructure:"damage"`
	ImpactEffect   bool          `mapstructure:"impact_effect"`
	EffectLifetime time.Duration `mapstructure:"effect_lifetime"`
	GraceDelay     time.Duration `mapstructure:"grace_delay"`
	TrailSlack     time.Duration `mapstructure:"trail_slack"`
	Radius         float64       `mapstructure:"radius"`
	Mass           float64       `mapstructure:"mass"`
}

// Validate rejects negative or non-finite damage and negative delays.
func (t Template) Validate() error {
	if t.Damage < 0 || math.IsNaN(t.Damage) || math.IsInf(t.Damage, 0) {
		return fmt.Errorf("%w: damage %v", ErrInvalidTemplate, t.Damage)
	}
	if t.EffectLifetime < 0 || t.GraceDelay < 0 || t.TrailSlack < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidTemplate)
	}
	return nil
}

// Projectile is one live shot.
type Projectile struct {
	id         string
	shooterTag string
	tpl        Template
	body       Body
	stage      Stage
	trails     []Trail
	resolved   bool
	logger     *zap.Logger
}

// New creates a projectile. body and stage may be nil for headless use.
func New(id string, tpl Template, shooterTag string, body Body, stage Stage, logger *zap.Logger) (*Projectile, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projectile{
		id:         id,
		shooterTag: shooterTag,
		tpl:        tpl,
		body:       body,
		stage:      stage,
		logger:     logger.Named("projectile"),
	}, nil
}

func (p *Projectile) ID() string         { return p.id }
func (p *Projectile) ShooterTag() string { return p.shooterTag }
func (p *Projectile) Damage() float64    { return p.tpl.Damage }
func (p *Projectile) Body() Body         { return p.body }
func (p *Projectile) Template() Template { return p.tpl }

// Resolved reports whether a valid contact has been consumed.
func (p *Projectile) Resolved() bool { return p.resolved }

// SetShooterTag overrides the identity used for self-hit exclusion.
func (p *Projectile) SetShooterTag(tag string) { p.shooterTag = tag }

// AttachTrail registers a trailing effect to be faded out on impact.
func (p *Projectile) AttachTrail(t Trail) { p.trails = append(p.trails, t) }

// OnContact resolves a collision. It returns true only for the single contact
// that consumed the projectile. Contacts with the shooter's own tag are
// ignored and leave the projectile armed.
func (p *Projectile) OnContact(c Contact) bool {
	if p.resolved {
		return false
	}
	p.resolved = true

	if p.shooterTag != "" && c.Other != nil && c.Other.Tag() == p.shooterTag {
		p.logger.Debug("ignoring shooter contact", zap.String("projectile", p.id), zap.String("tag", p.shooterTag))
		p.resolved = false
		return false
	}

	p.fadeTrails()
	p.spawnImpact(c)
	p.applyDamage(c.Other)
	p.disable()
	return true
}

func (p *Projectile) fadeTrails() {
	for _, t := range p.trails {
		t.Detach()
		t.StopEmission()
		if p.stage != nil {
			p.stage.Despawn(t.ID(), t.RemainingLifetime()+p.tpl.TrailSlack)
		}
	}
	p.trails = nil
}

func (p *Projectile) spawnImpact(c Contact) {
	if !p.tpl.ImpactEffect || p.stage == nil {
		return
	}
	if fx := p.stage.SpawnImpact(c.Point, c.Normal); fx != "" {
		p.stage.Despawn(fx, p.tpl.EffectLifetime)
	}
}

func (p *Projectile) applyDamage(other Hittable) {
	if other == nil {
		return
	}
	pool := other.Health()
	if pool == nil {
		p.logger.Debug("contact without health", zap.String("projectile", p.id), zap.String("tag", other.Tag()))
		return
	}
	if err := pool.ApplyDamage(p.tpl.Damage); err != nil {
		p.logger.Warn("damage rejected", zap.String("projectile", p.id), zap.Error(err))
		return
	}
	p.logger.Debug("hit", zap.String("projectile", p.id), zap.String("target", pool.ID()), zap.Float64("damage", p.tpl.Damage))
}

func (p *Projectile) disable() {
	if p.body != nil {
		p.body.HideVisual()
		p.body.DisableCollider()
		p.body.Freeze()
	}
	if p.stage != nil {
		p.stage.Despawn(p.id, p.tpl.GraceDelay)
	}
}
