// Package ai drives enemy agents through idle, wander, chase and attack.
package ai

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kasuganosora/combatcore/game/clock"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/kasuganosora/combatcore/game/sight"
	"github.com/kasuganosora/combatcore/game/weapon"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrInvalidConfig = errors.New("ai: invalid config")

// Navigator moves the agent over walkable ground.
type Navigator interface {
	SetDestination(p geom.Vec3) bool
	PathPending() bool
	RemainingDistance() float64
	StoppingDistance() float64
	Speed() float64
	SetSpeed(v float64)
	Stopped() bool
	SetStopped(v bool)
	Velocity() geom.Vec3
	SamplePosition(p geom.Vec3, maxDist float64) (geom.Vec3, bool)
}

// Animator receives presentation parameters.
type Animator interface {
	SetTrigger(name string)
	SetFloat(name string, v float64)
	SetBool(name string, v bool)
}

// Body is the agent's own transform. Yaw is in radians, 0 facing +Z.
type Body interface {
	Position() geom.Vec3
	Yaw() float64
	SetYaw(yaw float64)
}

// Target is the entity the agent hunts.
type Target interface {
	Position() geom.Vec3
	Health() *health.Pool
}

// Sensor decides whether the target can be seen.
type Sensor interface {
	Evaluate(self sight.Pose, target geom.Vec3) bool
}

// Ranged is an optional weapon used instead of the melee hit.
type Ranged interface {
	FireAtEntity(target weapon.Positioned) error
}

// Config holds the behavior tuning of one agent.
type Config struct {
	WanderRadius         float64       `mapstructure:"wander_radius"`
	WanderTimer          time.Duration `mapstructure:"wander_timer"`
	IdleTime             time.Duration `mapstructure:"idle_time"`
	ChaseSpeed           float64       `mapstructure:"chase_speed"`
	WanderSpeedFactor    float64       `mapstructure:"wander_speed_factor"`
	LoseTargetTime       time.Duration `mapstructure:"lose_target_time"`
	AttackRange          float64       `mapstructure:"attack_range"`
	AttackCooldown       time.Duration `mapstructure:"attack_cooldown"`
	Damage               float64       `mapstructure:"attack_damage"`
	HysteresisFactor     float64       `mapstructure:"attack_hysteresis"`
	TurnRate             float64       `mapstructure:"turn_rate"`
	WanderSampleAttempts int           `mapstructure:"wander_sample_attempts"`
}

// DefaultConfig returns the stock enemy tuning.
func DefaultConfig() Config {
	return Config{
		WanderRadius:         10,
		WanderTimer:          5 * time.Second,
		IdleTime:             2 * time.Second,
		ChaseSpeed:           3.5,
		WanderSpeedFactor:    0.5,
		LoseTargetTime:       5 * time.Second,
		AttackRange:          2,
		AttackCooldown:       2 * time.Second,
		Damage:               10,
		HysteresisFactor:     1.5,
		TurnRate:             5,
		WanderSampleAttempts: 8,
	}
}

func nonNegative(v float64) bool { return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }

// Validate checks the configured ranges.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, field string, v any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s = %v", ErrInvalidConfig, field, v))
		}
	}
	check(nonNegative(c.WanderRadius), "wander_radius", c.WanderRadius)
	check(c.WanderTimer >= 0, "wander_timer", c.WanderTimer)
	check(c.IdleTime >= 0, "idle_time", c.IdleTime)
	check(nonNegative(c.ChaseSpeed), "chase_speed", c.ChaseSpeed)
	check(nonNegative(c.WanderSpeedFactor), "wander_speed_factor", c.WanderSpeedFactor)
	check(c.LoseTargetTime >= 0, "lose_target_time", c.LoseTargetTime)
	check(nonNegative(c.AttackRange), "attack_range", c.AttackRange)
	check(c.AttackCooldown >= 0, "attack_cooldown", c.AttackCooldown)
	check(nonNegative(c.Damage), "attack_damage", c.Damage)
	check(nonNegative(c.HysteresisFactor) && c.HysteresisFactor >= 1, "attack_hysteresis", c.HysteresisFactor)
	check(nonNegative(c.TurnRate), "turn_rate", c.TurnRate)
	check(c.WanderSampleAttempts > 0, "wander_sample_attempts", c.WanderSampleAttempts)
	return errors.Join(errs...)
}

// Options wires an agent to its collaborators. Body and Clock are
// required; the rest degrade gracefully when nil.
type Options struct {
	ID       string
	Body     Body
	Nav      Navigator
	Animator Animator
	Sensor   Sensor
	Target   Target
	Weapon   Ranged
	Clock    clock.Clock
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// Agent is the behavior state machine of one enemy.
type Agent struct {
	cfg    Config
	id     string
	body   Body
	nav    Navigator
	anim   Animator
	sensor Sensor
	target Target
	weapon Ranged
	clock  clock.Clock
	rng    *rand.Rand
	hub    *notify.Hub
	logger *zap.Logger

	state          State
	stateTimer     time.Duration
	lastAttackTime time.Duration
	lastSeenTime   time.Duration
	lastKnown      geom.Vec3
	everDetected   bool
	visible        bool

	navReport    rate.Sometimes
	targetReport rate.Sometimes
}

// New builds an agent in the Idle state.
func New(cfg Config, opts Options) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Body == nil || opts.Clock == nil {
		return nil, fmt.Errorf("%w: body and clock are required", ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	now := opts.Clock.Now()
	a := &Agent{
		cfg:            cfg,
		id:             opts.ID,
		body:           opts.Body,
		nav:            opts.Nav,
		anim:           opts.Animator,
		sensor:         opts.Sensor,
		target:         opts.Target,
		weapon:         opts.Weapon,
		clock:          opts.Clock,
		rng:            rng,
		hub:            notify.NewHub(opts.ID),
		logger:         logger.Named("ai").With(zap.String("agent", opts.ID)),
		state:          StateIdle,
		stateTimer:     cfg.IdleTime,
		lastAttackTime: now,
		lastSeenTime:   now,
		navReport:      rate.Sometimes{First: 1},
		targetReport:   rate.Sometimes{First: 1},
	}
	if a.nav != nil {
		a.nav.SetStopped(true)
	}
	return a, nil
}

// Hooks returns the agent's notification hub.
func (a *Agent) Hooks() *notify.Hub { return a.hub }

func (a *Agent) ID() string { return a.id }

func (a *Agent) State() State { return a.state }

// StateTimer returns the remaining idle or wander wait.
func (a *Agent) StateTimer() time.Duration { return a.stateTimer }

// Visible reports the perception result of the last tick.
func (a *Agent) Visible() bool { return a.visible }

// HasDetectedTarget reports whether the target was ever seen.
func (a *Agent) HasDetectedTarget() bool { return a.everDetected }

// LastKnownTargetPosition is where the target was last seen.
func (a *Agent) LastKnownTargetPosition() geom.Vec3 { return a.lastKnown }

func (a *Agent) LastSeenTime() time.Duration { return a.lastSeenTime }

func (a *Agent) LastAttackTime() time.Duration { return a.lastAttackTime }

func (a *Agent) Config() Config { return a.cfg }

// SetTarget replaces the hunted entity. A nil target is never visible.
func (a *Agent) SetTarget(t Target) { a.target = t }

// Tick advances the state machine by dt of simulation time.
func (a *Agent) Tick(dt time.Duration) {
	now := a.clock.Now()
	pos := a.body.Position()
	a.visible = a.perceive(now, pos)

	switch a.state {
	case StateIdle:
		a.handleIdle(dt)
	case StateWandering:
		a.handleWandering(dt, pos)
	case StateChasing:
		a.handleChasing(now, pos)
	case StateAttacking:
		a.handleAttacking(now, dt, pos)
	}

	a.updateAnimator()
}

func (a *Agent) hasTarget() bool {
	if a.target == nil {
		a.targetReport.Do(func() {
			a.logger.Warn("no target assigned; agent will only idle and wander")
		})
		return false
	}
	if pool := a.target.Health(); pool != nil && pool.IsDead() {
		return false
	}
	return true
}

func (a *Agent) perceive(now time.Duration, pos geom.Vec3) bool {
	if !a.hasTarget() || a.sensor == nil {
		return false
	}
	tp := a.target.Position()
	pose := sight.Pose{Position: pos, Forward: geom.ForwardFromYaw(a.body.Yaw())}
	if !a.sensor.Evaluate(pose, tp) {
		return false
	}
	if !a.everDetected {
		a.everDetected = true
		a.logger.Debug("target detected")
		a.hub.Emit(EventTargetDetected, 0)
	}
	a.lastSeenTime = now
	a.lastKnown = tp
	return true
}

// targetDistance is the Euclidean distance to a live target, +Inf without one.
func (a *Agent) targetDistance(pos geom.Vec3) float64 {
	if !a.hasTarget() {
		return math.Inf(1)
	}
	return geom.Distance(pos, a.target.Position())
}

func (a *Agent) navigator() Navigator {
	if a.nav == nil {
		a.navReport.Do(func() {
			a.logger.Warn("no navigator assigned; movement disabled")
		})
	}
	return a.nav
}

func (a *Agent) handleIdle(dt time.Duration) {
	a.stateTimer -= dt
	if a.stateTimer <= 0 {
		a.changeState(StateWandering)
	}
}

func (a *Agent) handleWandering(dt time.Duration, pos geom.Vec3) {
	if a.visible {
		a.changeState(StateChasing)
		return
	}
	nav := a.navigator()
	if nav == nil {
		return
	}
	if !nav.PathPending() && nav.RemainingDistance() <= nav.StoppingDistance() {
		a.stateTimer -= dt
		if a.stateTimer <= 0 {
			a.wander(nav, pos)
			a.stateTimer = a.cfg.WanderTimer
		}
	}
}

func (a *Agent) handleChasing(now time.Duration, pos geom.Vec3) {
	d := a.targetDistance(pos)
	if d <= a.cfg.AttackRange {
		a.changeState(StateAttacking)
		return
	}
	nav := a.navigator()
	if a.visible {
		if nav != nil {
			nav.SetDestination(a.target.Position())
		}
		return
	}
	if nav != nil {
		nav.SetDestination(a.lastKnown)
	}
	if now-a.lastSeenTime > a.cfg.LoseTargetTime {
		a.logger.Debug("target lost", zap.Duration("unseen", now-a.lastSeenTime))
		a.hub.Emit(EventTargetLost, 0)
		a.changeState(StateWandering)
	}
}

func (a *Agent) handleAttacking(now, dt time.Duration, pos geom.Vec3) {
	d := a.targetDistance(pos)
	if nav := a.navigator(); nav != nil {
		nav.SetDestination(pos)
	}
	if !math.IsInf(d, 1) {
		a.faceTarget(dt, pos)
	}
	if d > a.cfg.AttackRange*a.cfg.HysteresisFactor {
		a.changeState(StateChasing)
		return
	}
	if now >= a.lastAttackTime+a.cfg.AttackCooldown && a.attack(d) {
		a.lastAttackTime = now
	}
}

// faceTarget turns toward the target on the horizontal plane.
func (a *Agent) faceTarget(dt time.Duration, pos geom.Vec3) {
	dir := a.target.Position().Sub(pos).Horizontal()
	if dir.IsZero() {
		return
	}
	a.body.SetYaw(geom.TurnTowards(a.body.Yaw(), geom.YawOf(dir), dt.Seconds()*a.cfg.TurnRate))
}

// attack reports whether an attack happened. A ranged agent only counts
// shots its weapon accepted from within attack range; a melee swing always
// counts, and hits when the target is in range.
func (a *Agent) attack(d float64) bool {
	if a.weapon != nil {
		if d > a.cfg.AttackRange {
			return false
		}
		if err := a.weapon.FireAtEntity(a.target); err != nil {
			if !errors.Is(err, weapon.ErrCooldown) {
				a.logger.Debug("ranged attack rejected", zap.Error(err))
			}
			return false
		}
		a.announceAttack()
		return true
	}
	a.announceAttack()
	if d > a.cfg.AttackRange {
		return true
	}
	pool := a.target.Health()
	if pool == nil {
		return true
	}
	if err := pool.ApplyDamage(a.cfg.Damage); err != nil {
		a.logger.Warn("melee damage rejected", zap.Error(err))
		return true
	}
	a.logger.Debug("melee hit", zap.String("target", pool.ID()), zap.Float64("damage", a.cfg.Damage))
	return true
}

func (a *Agent) announceAttack() {
	a.hub.Emit(EventAttack, 0)
	if a.anim != nil {
		a.anim.SetTrigger(TriggerAttack)
	}
}

// wander sends the agent to a random walkable point within the wander
// radius, or to its own position when none is found.
func (a *Agent) wander(nav Navigator, pos geom.Vec3) {
	dest := pos
	for i := 0; i < a.cfg.WanderSampleAttempts; i++ {
		candidate := pos.Add(geom.RandomInUnitSphere(a.rng).Scale(a.cfg.WanderRadius))
		if hit, ok := nav.SamplePosition(candidate, a.cfg.WanderRadius); ok {
			dest = hit
			break
		}
	}
	nav.SetDestination(dest)
}

// changeState runs exit then entry actions. Re-entering the current state
// does nothing.
func (a *Agent) changeState(next State) {
	if next == a.state {
		return
	}
	prev := a.state
	a.state = next
	a.logger.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", next))

	if prev == StateChasing {
		a.hub.Emit(EventStopChasing, 0)
	}

	nav := a.navigator()
	switch next {
	case StateIdle:
		if nav != nil {
			nav.SetStopped(true)
		}
		a.stateTimer = a.cfg.IdleTime
		a.hub.Emit(EventIdle, 0)
	case StateWandering:
		if nav != nil {
			nav.SetStopped(false)
			nav.SetSpeed(a.cfg.ChaseSpeed * a.cfg.WanderSpeedFactor)
			a.wander(nav, a.body.Position())
		}
		a.stateTimer = a.cfg.WanderTimer
		a.hub.Emit(EventStartWandering, 0)
	case StateChasing:
		if nav != nil {
			nav.SetStopped(false)
			nav.SetSpeed(a.cfg.ChaseSpeed)
		}
		a.hub.Emit(EventStartChasing, 0)
	case StateAttacking:
		if nav != nil {
			nav.SetStopped(true)
		}
		a.hub.Emit(EventStartAttacking, 0)
	}
}

func (a *Agent) updateAnimator() {
	if a.anim == nil {
		return
	}
	speed := 0.0
	if a.nav != nil {
		speed = a.nav.Velocity().Len()
	}
	a.anim.SetFloat(ParamSpeed, speed)
	a.anim.SetBool(ParamChasing, a.state == StateChasing)
	a.anim.SetBool(ParamAttacking, a.state == StateAttacking)
}
