package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/projectile"
	"github.com/kasuganosora/combatcore/game/sight"
	"github.com/kasuganosora/combatcore/game/weapon"
)

var ErrInvalidArena = errors.New("world: invalid arena")

// PlayerSpec places the primary actor.
type PlayerSpec struct {
	Name     string    `mapstructure:"name"`
	Position geom.Vec3 `mapstructure:"position"`
	Yaw      float64   `mapstructure:"yaw"`
	// Sentry makes the player auto-fire at the nearest living enemy.
	Sentry bool `mapstructure:"sentry"`
	// AutoInteract uses the focused interactable as soon as it can.
	AutoInteract bool `mapstructure:"auto_interact"`
}

// EnemySpec places one enemy agent.
type EnemySpec struct {
	Name     string    `mapstructure:"name"`
	Position geom.Vec3 `mapstructure:"position"`
	Yaw      float64   `mapstructure:"yaw"`
	Ranged   bool      `mapstructure:"ranged"`
}

// PickupSpec places a heal item.
type PickupSpec struct {
	Name     string    `mapstructure:"name"`
	Position geom.Vec3 `mapstructure:"position"`
	Heal     float64   `mapstructure:"heal"`
}

// ArenaConfig describes the level layout.
type ArenaConfig struct {
	Min       geom.Vec3     `mapstructure:"min"`
	Max       geom.Vec3     `mapstructure:"max"`
	CellSize  float64       `mapstructure:"cell_size"`
	Clearance float64       `mapstructure:"clearance"`
	Obstacles []geom.AABB   `mapstructure:"obstacles"`
	Player    PlayerSpec    `mapstructure:"player"`
	Enemies   []EnemySpec   `mapstructure:"enemies"`
	Pickups   []PickupSpec  `mapstructure:"pickups"`
	Seed      int64         `mapstructure:"seed"`
	Trail     time.Duration `mapstructure:"trail_lifetime"`
}

// CombatConfig is the tuning shared by every entity of a kind.
type CombatConfig struct {
	Agent         ai.Config           `mapstructure:"agent"`
	Sight         sight.Config        `mapstructure:"sight"`
	Weapon        weapon.Config       `mapstructure:"weapon"`
	Projectile    projectile.Template `mapstructure:"projectile"`
	PlayerHealth  health.Config       `mapstructure:"player_health"`
	EnemyHealth   health.Config       `mapstructure:"enemy_health"`
	BodyRadius    float64             `mapstructure:"body_radius"`
	BodyHeight    float64             `mapstructure:"body_height"`
	StoppingDist  float64             `mapstructure:"stopping_distance"`
	InteractRange float64             `mapstructure:"interact_range"`
}

// DefaultCombat returns the stock tuning.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		Agent: ai.DefaultConfig(),
		Sight: sight.Config{DetectionRange: 10, FieldOfViewDegrees: 110},
		Weapon: weapon.Config{
			Cooldown:     time.Second,
			Force:        15,
			ForceMode:    "impulse",
			Lifetime:     5 * time.Second,
			HeightOffset: 1,
		},
		Projectile: projectile.Template{
			Damage:         20,
			ImpactEffect:   true,
			EffectLifetime: 2 * time.Second,
			GraceDelay:     200 * time.Millisecond,
			TrailSlack:     500 * time.Millisecond,
			Radius:         0.1,
			Mass:           1,
		},
		PlayerHealth: health.Config{
			MaxHitPoints: 100,
			Primary:      true,
			RemovalDelay: 500 * time.Millisecond,
			RestartDelay: 3 * time.Second,
		},
		EnemyHealth: health.Config{
			MaxHitPoints: 100,
			RemovalDelay: 500 * time.Millisecond,
			RestartDelay: 3 * time.Second,
		},
		BodyRadius:    0.5,
		BodyHeight:    2,
		StoppingDist:  0.1,
		InteractRange: 3,
	}
}

// Validate checks the combat tuning of every component.
func (c CombatConfig) Validate() error {
	errs := []error{c.Agent.Validate(), c.Sight.Validate(), c.Weapon.Validate(), c.Projectile.Validate()}
	if !(c.PlayerHealth.MaxHitPoints > 0) || !(c.EnemyHealth.MaxHitPoints > 0) {
		errs = append(errs, fmt.Errorf("%w: max hit points must be positive", health.ErrInvalidMax))
	}
	if c.BodyRadius < 0 || !(c.BodyHeight > 0) || c.StoppingDist < 0 || c.InteractRange < 0 {
		errs = append(errs, fmt.Errorf("%w: body dimensions", ErrInvalidArena))
	}
	return errors.Join(errs...)
}

// Validate checks the layout.
func (a ArenaConfig) Validate() error {
	var errs []error
	if a.Max.X <= a.Min.X || a.Max.Z <= a.Min.Z {
		errs = append(errs, fmt.Errorf("%w: empty bounds", ErrInvalidArena))
	}
	if !(a.CellSize > 0) {
		errs = append(errs, fmt.Errorf("%w: cell_size %v", ErrInvalidArena, a.CellSize))
	}
	inside := func(p geom.Vec3) bool {
		return p.X >= a.Min.X && p.X <= a.Max.X && p.Z >= a.Min.Z && p.Z <= a.Max.Z
	}
	if !inside(a.Player.Position) {
		errs = append(errs, fmt.Errorf("%w: player outside bounds", ErrInvalidArena))
	}
	for i, e := range a.Enemies {
		if !inside(e.Position) {
			errs = append(errs, fmt.Errorf("%w: enemy %d outside bounds", ErrInvalidArena, i))
		}
	}
	for i, p := range a.Pickups {
		if p.Heal < 0 {
			errs = append(errs, fmt.Errorf("%w: pickup %d heal %v", ErrInvalidArena, i, p.Heal))
		}
	}
	return errors.Join(errs...)
}
