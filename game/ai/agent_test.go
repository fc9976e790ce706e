package ai

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/kasuganosora/combatcore/game/clock"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/kasuganosora/combatcore/game/sight"
	"github.com/kasuganosora/combatcore/game/weapon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ---- fakes ----

type fakeNav struct {
	dests     []geom.Vec3
	stopped   bool
	speed     float64
	remaining float64
	noSample  bool
	velocity  geom.Vec3
}

func (n *fakeNav) SetDestination(p geom.Vec3) bool {
	n.dests = append(n.dests, p)
	return true
}
func (n *fakeNav) PathPending() bool          { return false }
func (n *fakeNav) RemainingDistance() float64 { return n.remaining }
func (n *fakeNav) StoppingDistance() float64  { return 0.1 }
func (n *fakeNav) Speed() float64             { return n.speed }
func (n *fakeNav) SetSpeed(v float64)         { n.speed = v }
func (n *fakeNav) Stopped() bool              { return n.stopped }
func (n *fakeNav) SetStopped(v bool)          { n.stopped = v }
func (n *fakeNav) Velocity() geom.Vec3        { return n.velocity }
func (n *fakeNav) SamplePosition(p geom.Vec3, _ float64) (geom.Vec3, bool) {
	if n.noSample {
		return geom.Zero, false
	}
	return p, true
}

type fakeAnimator struct {
	triggers map[string]int
	floats   map[string]float64
	bools    map[string]bool
}

func newAnimator() *fakeAnimator {
	return &fakeAnimator{triggers: map[string]int{}, floats: map[string]float64{}, bools: map[string]bool{}}
}

func (f *fakeAnimator) SetTrigger(name string)          { f.triggers[name]++ }
func (f *fakeAnimator) SetFloat(name string, v float64) { f.floats[name] = v }
func (f *fakeAnimator) SetBool(name string, v bool)     { f.bools[name] = v }

type body struct {
	pos geom.Vec3
	yaw float64
}

func (b *body) Position() geom.Vec3 { return b.pos }
func (b *body) Yaw() float64        { return b.yaw }
func (b *body) SetYaw(y float64)    { b.yaw = y }

type player struct {
	pos  geom.Vec3
	pool *health.Pool
}

func (p *player) Position() geom.Vec3  { return p.pos }
func (p *player) Health() *health.Pool { return p.pool }

type fakeGun struct {
	shots    int
	attempts int
	err      error
}

func (g *fakeGun) FireAtEntity(weapon.Positioned) error {
	g.attempts++
	if g.err != nil {
		return g.err
	}
	g.shots++
	return nil
}

// ---- harness ----

type harness struct {
	clock  *clock.Sim
	nav    *fakeNav
	anim   *fakeAnimator
	body   *body
	player *player
	agent  *Agent
	events []string
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleTime = 0
	return cfg
}

func newHarness(t *testing.T, cfg Config, targetAt geom.Vec3, fov float64) *harness {
	t.Helper()
	pool, err := health.New("player", health.Config{MaxHitPoints: 100, Primary: true}, nil, nil)
	require.NoError(t, err)
	sensor, err := sight.New(sight.Config{DetectionRange: 10, FieldOfViewDegrees: fov}, nil)
	require.NoError(t, err)

	h := &harness{
		clock:  clock.NewSim(0),
		nav:    &fakeNav{},
		anim:   newAnimator(),
		body:   &body{},
		player: &player{pos: targetAt, pool: pool},
	}
	h.agent, err = New(cfg, Options{
		ID:       "enemy-1",
		Body:     h.body,
		Nav:      h.nav,
		Animator: h.anim,
		Sensor:   sensor,
		Target:   h.player,
		Clock:    h.clock,
		Rand:     rand.New(rand.NewSource(7)),
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	h.agent.Hooks().On(notify.Wildcard, "recorder", 0, func(e notify.Event) {
		h.events = append(h.events, e.Name)
	})
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(100 * time.Millisecond)
		h.agent.Tick(100 * time.Millisecond)
	}
}

func (h *harness) count(event string) int {
	n := 0
	for _, e := range h.events {
		if e == event {
			n++
		}
	}
	return n
}

// ---- tests ----

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.AttackRange = -1
	cfg.HysteresisFactor = 0.5
	cfg.WanderSampleAttempts = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "attack_range")
	assert.Contains(t, err.Error(), "attack_hysteresis")
	assert.Contains(t, err.Error(), "wander_sample_attempts")

	_, err = New(DefaultConfig(), Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAgent_IdleThenWander(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg, geom.V(0, 0, 50), 110)
	assert.Equal(t, StateIdle, h.agent.State())
	assert.Equal(t, 2*time.Second, h.agent.StateTimer())
	assert.True(t, h.nav.stopped)
	assert.Empty(t, h.events, "no notification at spawn")

	h.tick(19)
	assert.Equal(t, StateIdle, h.agent.State())

	h.tick(1)
	assert.Equal(t, StateWandering, h.agent.State())
	assert.Equal(t, []string{EventStartWandering}, h.events)
	assert.False(t, h.nav.stopped)
	assert.InDelta(t, 1.75, h.nav.speed, 1e-9)
	require.Len(t, h.nav.dests, 1)
	assert.LessOrEqual(t, h.nav.dests[0].Len(), cfg.WanderRadius)
	assert.Equal(t, cfg.WanderTimer, h.agent.StateTimer())
}

func TestAgent_WanderRepicksAfterArrival(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 50), 110)
	h.tick(1)
	require.Equal(t, StateWandering, h.agent.State())
	require.Len(t, h.nav.dests, 1)

	// still travelling: the timer does not run
	h.nav.remaining = 4
	h.tick(100)
	assert.Len(t, h.nav.dests, 1)

	h.nav.remaining = 0
	h.tick(49)
	assert.Len(t, h.nav.dests, 1)
	h.tick(1)
	assert.Len(t, h.nav.dests, 2)
	assert.Equal(t, 1, h.count(EventStartWandering))
}

func TestAgent_WanderFallsBackToOwnPosition(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 50), 110)
	h.body.pos = geom.V(3, 0, 4)
	h.nav.noSample = true
	h.tick(1)
	require.Len(t, h.nav.dests, 1)
	assert.Equal(t, geom.V(3, 0, 4), h.nav.dests[0])
}

func TestAgent_OutOfRangeNeverLeavesIdleOrWander(t *testing.T) {
	h := newHarness(t, DefaultConfig(), geom.V(0, 0, 12), 110)
	for i := 0; i < 600; i++ {
		h.tick(1)
		s := h.agent.State()
		require.True(t, s == StateIdle || s == StateWandering, "state %s at tick %d", s, i)
	}
	assert.False(t, h.agent.HasDetectedTarget())
	assert.Zero(t, h.count(EventTargetDetected))
	assert.Zero(t, h.count(EventStartChasing))
}

func TestAgent_DetectAndChase(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 5), 110)

	h.tick(1) // idle -> wandering, target already seen
	assert.Equal(t, StateWandering, h.agent.State())
	assert.True(t, h.agent.HasDetectedTarget())

	h.tick(1)
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, 3.5, h.nav.speed)
	assert.False(t, h.nav.stopped)

	h.tick(10)
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, geom.V(0, 0, 5), h.nav.dests[len(h.nav.dests)-1])
	assert.Equal(t, geom.V(0, 0, 5), h.agent.LastKnownTargetPosition())
	assert.Equal(t, 1, h.count(EventTargetDetected))
	assert.Equal(t, 1, h.count(EventStartChasing), "no duplicate entry notifications")
	assert.True(t, h.anim.bools[ParamChasing])
	assert.Equal(t, []string{EventTargetDetected, EventStartWandering, EventStartChasing}, h.events)
}

func TestAgent_TargetLostAfterTimeout(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 5), 110)
	h.tick(2)
	require.Equal(t, StateChasing, h.agent.State())
	seen := h.agent.LastSeenTime()
	assert.Equal(t, 200*time.Millisecond, seen)

	h.player.pos = geom.V(0, 0, 20)
	h.tick(50) // t = 5.2s, unseen for exactly 5s
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, geom.V(0, 0, 5), h.nav.dests[len(h.nav.dests)-1], "heads to last known position")

	h.tick(1)
	assert.Equal(t, StateWandering, h.agent.State())
	n := len(h.events)
	assert.Equal(t, []string{EventTargetLost, EventStopChasing, EventStartWandering}, h.events[n-3:])

	// seeing the target again does not re-announce detection
	h.player.pos = geom.V(0, 0, 5)
	h.tick(1)
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, 1, h.count(EventTargetDetected))
}

func TestAgent_MeleeAttackOnCooldown(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 1.5), 110)
	h.tick(3)
	require.Equal(t, StateAttacking, h.agent.State())
	assert.True(t, h.nav.stopped)
	assert.Equal(t, 1, h.count(EventStopChasing))
	assert.Equal(t, 1, h.count(EventStartAttacking))

	h.tick(16) // t = 1.9s
	assert.Zero(t, h.count(EventAttack))
	assert.Equal(t, 100.0, h.player.pool.Current())

	h.tick(1) // t = 2.0s
	assert.Equal(t, 1, h.count(EventAttack))
	assert.Equal(t, 90.0, h.player.pool.Current())
	assert.Equal(t, 1, h.anim.triggers[TriggerAttack])
	assert.Equal(t, 2*time.Second, h.agent.LastAttackTime())

	h.tick(30) // t = 5.0s
	assert.Equal(t, 2, h.count(EventAttack))
	assert.Equal(t, 80.0, h.player.pool.Current())
	assert.Equal(t, h.body.pos, h.nav.dests[len(h.nav.dests)-1], "holds position while attacking")
	assert.True(t, h.anim.bools[ParamAttacking])
	assert.False(t, h.anim.bools[ParamChasing])
}

func TestAgent_AttackHysteresis(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 1.5), 110)
	h.tick(3)
	require.Equal(t, StateAttacking, h.agent.State())

	h.player.pos = geom.V(0, 0, 2.4)
	h.tick(50)
	assert.Equal(t, StateAttacking, h.agent.State())
	assert.Positive(t, h.count(EventAttack))
	assert.Equal(t, 100.0, h.player.pool.Current(), "swings outside attack range do not connect")

	h.player.pos = geom.V(0, 0, 3)
	h.tick(1)
	assert.Equal(t, StateAttacking, h.agent.State())

	h.player.pos = geom.V(0, 0, 3.01)
	h.tick(1)
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, 2, h.count(EventStartChasing))
	assert.Equal(t, 1, h.count(EventStopChasing))
}

func TestAgent_TurnsTowardTargetOnHorizontalPlane(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(1.5, 1, 0), 360)
	h.tick(3)
	require.Equal(t, StateAttacking, h.agent.State(), "3D distance is within range")
	assert.Zero(t, h.body.yaw)

	h.tick(1)
	assert.InDelta(t, math.Pi/4, h.body.yaw, 1e-9, "turns gradually")

	h.tick(30)
	assert.InDelta(t, math.Pi/2, h.body.yaw, 1e-6)
}

func TestAgent_RangedAttackFiresWeapon(t *testing.T) {
	gun := &fakeGun{}
	sensor, err := sight.New(sight.Config{DetectionRange: 10, FieldOfViewDegrees: 110}, nil)
	require.NoError(t, err)
	pool, err := health.New("player", health.Config{MaxHitPoints: 100}, nil, nil)
	require.NoError(t, err)
	c := clock.NewSim(0)
	cfg := testConfig()
	cfg.AttackRange = 8

	a, err := New(cfg, Options{
		ID:     "archer",
		Body:   &body{},
		Nav:    &fakeNav{},
		Sensor: sensor,
		Target: &player{pos: geom.V(0, 0, 6), pool: pool},
		Weapon: gun,
		Clock:  c,
	})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		c.Advance(100 * time.Millisecond)
		a.Tick(100 * time.Millisecond)
	}
	assert.Equal(t, StateAttacking, a.State())
	assert.Equal(t, 1, gun.shots)
	assert.Equal(t, 100.0, pool.Current())
}

func newArcher(t *testing.T, gun *fakeGun, targetAt geom.Vec3) (*Agent, *player, *clock.Sim, *[]string) {
	t.Helper()
	sensor, err := sight.New(sight.Config{DetectionRange: 10, FieldOfViewDegrees: 110}, nil)
	require.NoError(t, err)
	pool, err := health.New("player", health.Config{MaxHitPoints: 100}, nil, nil)
	require.NoError(t, err)
	c := clock.NewSim(0)
	cfg := testConfig()
	cfg.AttackRange = 4
	target := &player{pos: targetAt, pool: pool}
	a, err := New(cfg, Options{
		ID:     "archer",
		Body:   &body{},
		Nav:    &fakeNav{},
		Sensor: sensor,
		Target: target,
		Weapon: gun,
		Clock:  c,
	})
	require.NoError(t, err)
	var events []string
	a.Hooks().On(EventAttack, "recorder", 0, func(e notify.Event) { events = append(events, e.Name) })
	return a, target, c, &events
}

func TestAgent_RangedHoldsFireInHysteresisBand(t *testing.T) {
	gun := &fakeGun{}
	a, target, c, events := newArcher(t, gun, geom.V(0, 0, 3))
	step := func(n int) {
		for i := 0; i < n; i++ {
			c.Advance(100 * time.Millisecond)
			a.Tick(100 * time.Millisecond)
		}
	}
	step(3)
	require.Equal(t, StateAttacking, a.State())

	// 5 is beyond attack range 4 but inside 4 x 1.5
	target.pos = geom.V(0, 0, 5)
	step(30)
	assert.Equal(t, StateAttacking, a.State())
	assert.Zero(t, gun.attempts)
	assert.Empty(t, *events)
	assert.Equal(t, time.Duration(0), a.LastAttackTime())

	target.pos = geom.V(0, 0, 3)
	step(1)
	assert.Equal(t, 1, gun.shots)
	assert.Equal(t, []string{EventAttack}, *events)
	assert.Equal(t, c.Now(), a.LastAttackTime())
}

func TestAgent_RangedRejectedShotIsNotAnAttack(t *testing.T) {
	gun := &fakeGun{err: weapon.ErrCooldown}
	a, _, c, events := newArcher(t, gun, geom.V(0, 0, 3))
	for i := 0; i < 25; i++ {
		c.Advance(100 * time.Millisecond)
		a.Tick(100 * time.Millisecond)
	}
	require.Equal(t, StateAttacking, a.State())
	assert.Positive(t, gun.attempts)
	assert.Empty(t, *events)
	assert.Equal(t, time.Duration(0), a.LastAttackTime())

	gun.err = nil
	c.Advance(100 * time.Millisecond)
	a.Tick(100 * time.Millisecond)
	assert.Equal(t, 1, gun.shots)
	assert.Equal(t, []string{EventAttack}, *events)
	assert.Equal(t, c.Now(), a.LastAttackTime())
}

func TestAgent_IdleIgnoresVisibleTargetUntilTimerExpires(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(t, cfg, geom.V(0, 0, 1.5), 110)

	h.tick(10)
	assert.Equal(t, StateIdle, h.agent.State())
	assert.True(t, h.agent.Visible())
	assert.Equal(t, []string{EventTargetDetected}, h.events)

	h.tick(9)
	assert.Equal(t, StateIdle, h.agent.State())
	assert.Zero(t, h.count(EventStartChasing))
	assert.Zero(t, h.count(EventStartAttacking))

	h.tick(1)
	assert.Equal(t, StateWandering, h.agent.State())
	assert.Equal(t, []string{EventTargetDetected, EventStartWandering}, h.events)

	h.tick(1)
	assert.Equal(t, StateChasing, h.agent.State())
	assert.Equal(t, []string{EventTargetDetected, EventStartWandering, EventStartChasing}, h.events)
}

func TestAgent_DeadTargetIsForgotten(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 1.5), 110)
	h.tick(3)
	require.Equal(t, StateAttacking, h.agent.State())

	require.NoError(t, h.player.pool.ApplyDamage(1000))
	h.tick(1)
	assert.Equal(t, StateChasing, h.agent.State())

	h.tick(60)
	assert.Equal(t, StateWandering, h.agent.State())
	assert.Equal(t, 1, h.count(EventTargetLost))

	h.tick(100)
	assert.Equal(t, StateWandering, h.agent.State())
}

func TestAgent_MissingCollaborators(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := clock.NewSim(0)
	a, err := New(testConfig(), Options{
		ID:       "lonely",
		Body:     &body{},
		Animator: newAnimator(),
		Clock:    c,
		Logger:   zap.New(core),
	})
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		c.Advance(100 * time.Millisecond)
		a.Tick(100 * time.Millisecond)
		s := a.State()
		require.True(t, s == StateIdle || s == StateWandering)
	}
	assert.Equal(t, StateWandering, a.State())
	assert.False(t, a.Visible())
	assert.Equal(t, 1, logs.FilterMessage("no navigator assigned; movement disabled").Len())
	assert.Equal(t, 1, logs.FilterMessage("no target assigned; agent will only idle and wander").Len())
}

func TestAgent_AnimatorSpeed(t *testing.T) {
	h := newHarness(t, testConfig(), geom.V(0, 0, 50), 110)
	h.nav.velocity = geom.V(3, 0, 4)
	h.tick(1)
	assert.Equal(t, 5.0, h.anim.floats[ParamSpeed])
	assert.False(t, h.anim.bools[ParamAttacking])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "attacking", StateAttacking.String())
	assert.Equal(t, "unknown", State(42).String())
}
