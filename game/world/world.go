// Package world runs an arena: entities, their combat components and the
// fixed per-tick update order.
package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/clock"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/nav"
	"github.com/kasuganosora/combatcore/game/notify"
	"github.com/kasuganosora/combatcore/game/projectile"
	"github.com/kasuganosora/combatcore/game/sight"
	"github.com/kasuganosora/combatcore/game/weapon"
	"github.com/kasuganosora/combatcore/scheduler"
	"go.uber.org/zap"
)

// World notifications.
const (
	EventDespawned = "despawned"
	EventGameOver  = "game_over"
	EventRunReset  = "run_reset"
)

const resetTask = "run_reset"

var ErrNotFound = errors.New("world: entity not found")

// Options carries optional collaborators.
type Options struct {
	Clock  *clock.Sim
	Logger *zap.Logger
	// NewID generates entity IDs. Defaults to random UUIDs.
	NewID func() string
}

type observer struct {
	name string
	fn   notify.Handler
}

// World owns every entity of one arena. All mutation happens inside Tick
// (or Run), which holds the world lock; callbacks fired from components run
// under that lock and must not call back into locking World methods.
type World struct {
	mu sync.Mutex

	arena     ArenaConfig
	combat    CombatConfig
	clock     *clock.Sim
	sched     *scheduler.Scheduler
	grid      *nav.Grid
	obstacles []geom.AABB
	hub       *notify.Hub
	logger    *zap.Logger
	newID     func() string

	entities   map[string]*Entity
	order      []string
	player     *Entity
	interactor *Interactor
	observers  []observer
	run        int
	gameOver   bool
}

// New validates the configuration and spawns the first run.
func New(arena ArenaConfig, combat CombatConfig, opts Options) (*World, error) {
	if err := errors.Join(arena.Validate(), combat.Validate()); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	grid, err := nav.NewGrid(arena.Min, arena.Max, arena.CellSize, arena.Clearance, arena.Obstacles)
	if err != nil {
		return nil, err
	}
	c := opts.Clock
	if c == nil {
		c = clock.NewSim(0)
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	w := &World{
		arena:      arena,
		combat:     combat,
		clock:      c,
		sched:      scheduler.New(logger.Named("scheduler")),
		grid:       grid,
		obstacles:  arena.Obstacles,
		hub:        notify.NewHub("world"),
		logger:     logger.Named("world"),
		newID:      newID,
		entities:   make(map[string]*Entity),
		interactor: NewInteractor(combat.InteractRange),
	}
	w.sched.Advance(c.Now())
	if err := w.populate(); err != nil {
		return nil, err
	}
	return w, nil
}

// populate spawns the configured player, enemies and pickups.
func (w *World) populate() error {
	w.run++
	w.gameOver = false

	player, err := w.spawnPlayer(w.arena.Player)
	if err != nil {
		return fmt.Errorf("world: spawn player: %w", err)
	}
	w.player = player
	for i, spec := range w.arena.Enemies {
		if _, err := w.spawnEnemy(i, spec); err != nil {
			return fmt.Errorf("world: spawn enemy %d: %w", i, err)
		}
	}
	for i, spec := range w.arena.Pickups {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("pickup-%d", i)
		}
		id := w.newID()
		w.add(&Entity{
			ID:     id,
			Name:   name,
			Kind:   KindPickup,
			pos:    spec.Position,
			pickup: NewPickup(id, name, spec.Position, spec.Heal, player.pool),
		})
	}
	w.logger.Info("run started", zap.Int("run", w.run), zap.Int("enemies", len(w.arena.Enemies)))
	return nil
}

func (w *World) body(e *Entity) {
	e.radius = w.combat.BodyRadius
	e.height = w.combat.BodyHeight
}

func (w *World) spawnPlayer(spec PlayerSpec) (*Entity, error) {
	e := &Entity{ID: w.newID(), Name: spec.Name, Kind: KindPlayer, tag: TagPlayer, pos: spec.Position, yaw: spec.Yaw}
	if e.Name == "" {
		e.Name = "player"
	}
	w.body(e)
	pool, err := health.New(e.ID, w.combat.PlayerHealth, w, w.logger)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	if spec.Sentry {
		e.sentry = true
		e.gun, err = w.newGun(e, w.arena.Seed-1)
		if err != nil {
			return nil, err
		}
	}
	w.add(e)
	return e, nil
}

func (w *World) spawnEnemy(i int, spec EnemySpec) (*Entity, error) {
	e := &Entity{ID: w.newID(), Name: spec.Name, Kind: KindEnemy, tag: TagEnemy, pos: spec.Position, yaw: spec.Yaw}
	if e.Name == "" {
		e.Name = fmt.Sprintf("enemy-%d", i)
	}
	w.body(e)
	seed := w.arena.Seed + int64(i)

	pool, err := health.New(e.ID, w.combat.EnemyHealth, w, w.logger)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	sensor, err := sight.New(w.combat.Sight, w)
	if err != nil {
		return nil, err
	}
	e.nav = nav.NewAgent(w.grid, spec.Position, w.combat.Agent.ChaseSpeed, w.combat.StoppingDist)
	e.anim = newAnimState()

	opts := ai.Options{
		ID:       e.ID,
		Body:     e,
		Nav:      e.nav,
		Animator: e.anim,
		Sensor:   sensor,
		Clock:    w.clock,
		Rand:     rand.New(rand.NewSource(seed)),
		Logger:   w.logger,
	}
	if w.player != nil {
		opts.Target = w.player
	}
	if spec.Ranged {
		e.gun, err = w.newGun(e, seed)
		if err != nil {
			return nil, err
		}
		opts.Weapon = e.gun
	}
	e.agent, err = ai.New(w.combat.Agent, opts)
	if err != nil {
		return nil, err
	}
	w.add(e)
	return e, nil
}

func (w *World) newGun(owner *Entity, seed int64) (*weapon.Emitter, error) {
	tpl := w.combat.Projectile
	return weapon.New(w.combat.Weapon, weapon.Options{
		OwnerID:  owner.ID,
		OwnerTag: owner.tag,
		Template: &tpl,
		Mount:    owner,
		Arsenal:  w,
		Clock:    w.clock,
		Rand:     rand.New(rand.NewSource(seed)),
		Logger:   w.logger,
	})
}

func hubsOf(e *Entity) []*notify.Hub {
	var hubs []*notify.Hub
	if e.pool != nil {
		hubs = append(hubs, e.pool.Hooks())
	}
	if e.agent != nil {
		hubs = append(hubs, e.agent.Hooks())
	}
	if e.gun != nil {
		hubs = append(hubs, e.gun.Hooks())
	}
	if e.pickup != nil {
		hubs = append(hubs, e.pickup.Hooks())
	}
	return hubs
}

func (w *World) add(e *Entity) {
	w.entities[e.ID] = e
	w.order = append(w.order, e.ID)
	for _, h := range hubsOf(e) {
		for _, o := range w.observers {
			h.Forward(o.name, o.fn)
		}
	}
}

func (w *World) remove(id string) {
	e, ok := w.entities[id]
	if !ok {
		return
	}
	delete(w.entities, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i:i], w.order[i+1:]...)
			break
		}
	}
	for _, t := range e.trails {
		if t.attached {
			w.remove(t.id)
		}
	}
	if e.Kind == KindPlayer || e.Kind == KindEnemy {
		w.logger.Debug("despawned", zap.String("entity", id), zap.String("name", e.Name))
		w.hub.Emit(EventDespawned, 0)
	}
}

// ---- component callbacks (called under the world lock) ----

// Despawn removes an entity after delay of simulation time. A later call
// for the same entity replaces the earlier one.
func (w *World) Despawn(id string, delay time.Duration) {
	w.sched.AddDelay("despawn:"+id, delay, func() { w.remove(id) })
}

// EndRun announces game over and resets the arena after delay.
func (w *World) EndRun(delay time.Duration) {
	if w.gameOver {
		return
	}
	w.gameOver = true
	w.logger.Info("game over", zap.Int("run", w.run), zap.Duration("restart_in", delay))
	w.hub.Emit(EventGameOver, delay.Seconds())
	w.sched.AddDelay(resetTask, delay, w.reset)
}

// reset rebuilds the arena from configuration, like reloading the level.
func (w *World) reset() {
	w.sched.Clear()
	w.entities = make(map[string]*Entity)
	w.order = nil
	w.player = nil
	w.interactor.Reset()
	if err := w.populate(); err != nil {
		w.logger.Error("run reset failed", zap.Error(err))
		return
	}
	w.hub.Emit(EventRunReset, float64(w.run))
}

// Spawn creates a projectile entity for an emitter.
func (w *World) Spawn(tpl projectile.Template, shooterTag string, origin, dir geom.Vec3) (*projectile.Projectile, error) {
	id := w.newID()
	body := newKinematic(origin, tpl.Mass)
	p, err := projectile.New(id, tpl, shooterTag, body, w, w.logger)
	if err != nil {
		return nil, err
	}
	e := &Entity{ID: id, Name: "projectile", Kind: KindProjectile, tag: shooterTag, pos: origin, yaw: geom.YawOf(dir), proj: p, body: body}
	if w.arena.Trail > 0 {
		tr := &trail{id: w.newID(), lifetime: w.arena.Trail, attached: true, emitting: true}
		p.AttachTrail(tr)
		e.trails = append(e.trails, tr)
		w.add(&Entity{ID: tr.id, Name: "trail", Kind: KindEffect, pos: origin})
	}
	w.add(e)
	return p, nil
}

// SpawnImpact places an impact effect and returns its ID.
func (w *World) SpawnImpact(point, normal geom.Vec3) string {
	id := w.newID()
	w.add(&Entity{ID: id, Name: "impact", Kind: KindEffect, pos: point, yaw: geom.YawOf(normal)})
	return id
}

// Blocked tests line of sight at half body height against the obstacles.
func (w *World) Blocked(from, to geom.Vec3) bool {
	lift := geom.Up.Scale(w.combat.BodyHeight / 2)
	for _, o := range w.obstacles {
		if ok, t := o.SegmentHit(from.Add(lift), to.Add(lift)); ok && t < 1 {
			return true
		}
	}
	return false
}

// ---- simulation ----

// Tick advances the arena by dt: clock, scheduler, agents, weapons,
// navigation, projectiles, then interaction.
func (w *World) Tick(dt time.Duration) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Advance(dt)
	w.sched.Advance(now)

	for _, e := range w.live(KindEnemy) {
		if e.alive() {
			e.agent.Tick(dt)
		}
	}
	if p := w.player; p != nil && p.sentry {
		w.aimSentry(p)
	}
	for _, id := range w.snapshotOrder() {
		if e := w.entities[id]; e != nil && e.gun != nil && e.alive() {
			e.gun.Tick()
		}
	}
	for _, e := range w.live(KindEnemy) {
		if e.alive() {
			e.pos = e.nav.Step(dt)
			if v := e.nav.Velocity().Horizontal(); !v.IsZero() {
				e.yaw = geom.YawOf(v)
			}
		} else {
			e.nav.SetStopped(true)
		}
	}
	for _, e := range w.live(KindProjectile) {
		w.stepProjectile(e, dt)
	}
	w.updateInteraction()
}

func (w *World) snapshotOrder() []string {
	return append([]string(nil), w.order...)
}

// live returns the current entities of kind k in spawn order.
func (w *World) live(k Kind) []*Entity {
	var out []*Entity
	for _, id := range w.snapshotOrder() {
		if e := w.entities[id]; e != nil && e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// aimSentry points the player's gun at the nearest visible living enemy.
func (w *World) aimSentry(p *Entity) {
	if !p.alive() {
		p.gun.StopFiring()
		return
	}
	var best *Entity
	bestDist := w.combat.Sight.DetectionRange * w.combat.Sight.DetectionRange
	for _, e := range w.live(KindEnemy) {
		if !e.alive() {
			continue
		}
		d := geom.DistanceSq(p.pos, e.pos)
		if d <= bestDist && !w.Blocked(p.pos, e.pos) {
			best, bestDist = e, d
		}
	}
	if best == nil {
		p.gun.StopFiring()
		p.gun.SetTarget(nil)
		return
	}
	if dir := best.pos.Sub(p.pos).Horizontal(); !dir.IsZero() {
		p.SetYaw(geom.YawOf(dir))
	}
	p.gun.SetTarget(best)
	p.gun.StartFiring()
}

func (w *World) stepProjectile(e *Entity, dt time.Duration) {
	if !e.body.collider {
		return
	}
	from, to := e.body.step(dt)
	e.pos = to
	for _, h := range w.sweep(from, to, e.proj.Template().Radius) {
		if e.proj.OnContact(projectile.Contact{Other: h.other, Point: h.point, Normal: h.normal}) {
			e.pos = h.point
			e.body.pos = h.point
			break
		}
	}
	for _, t := range e.trails {
		if t.attached {
			if te := w.entities[t.id]; te != nil {
				te.pos = e.pos
			}
		}
	}
	if !e.proj.Resolved() && !w.grid.InBounds(w.cellOf(e.pos)) {
		w.remove(e.ID)
	}
}

func (w *World) cellOf(p geom.Vec3) nav.Cell {
	c, _ := w.grid.CellOf(p)
	return c
}

func (w *World) updateInteraction() {
	p := w.player
	if p == nil || !p.alive() {
		return
	}
	var candidates []Interactable
	for _, e := range w.live(KindPickup) {
		candidates = append(candidates, e.pickup)
	}
	w.interactor.Update(p.pos, candidates)
	if w.arena.Player.AutoInteract {
		w.interactor.Use()
	}
}

// Run ticks the world every interval until ctx is cancelled.
func (w *World) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Tick(interval)
		case <-ctx.Done():
			return
		}
	}
}

// ---- inspection and control ----

// Observe forwards every notification of every current and future entity,
// and of the world itself, to fn under the listener name.
func (w *World) Observe(name string, fn notify.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, observer{name: name, fn: fn})
	w.hub.Forward(name, fn)
	for _, id := range w.order {
		for _, h := range hubsOf(w.entities[id]) {
			h.Forward(name, fn)
		}
	}
}

// Unobserve removes a listener registered with Observe.
func (w *World) Unobserve(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.observers[:0]
	for _, o := range w.observers {
		if o.name != name {
			kept = append(kept, o)
		}
	}
	w.observers = kept
	w.hub.OffAll(name)
	for _, id := range w.order {
		for _, h := range hubsOf(w.entities[id]) {
			h.OffAll(name)
		}
	}
}

// Hooks returns the world's own notification hub.
func (w *World) Hooks() *notify.Hub { return w.hub }

// Now returns the simulation time.
func (w *World) Now() time.Duration { return w.clock.Now() }

// Snapshot is the read-only state of the arena.
type Snapshot struct {
	TimeMS   int64  `json:"time_ms"`
	Run      int    `json:"run"`
	GameOver bool   `json:"game_over"`
	Entities []View `json:"entities"`
}

func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		TimeMS:   w.clock.Now().Milliseconds(),
		Run:      w.run,
		GameOver: w.gameOver,
		Entities: make([]View, 0, len(w.order)),
	}
	for _, id := range w.order {
		s.Entities = append(s.Entities, w.entities[id].view())
	}
	return s
}

// Entity returns the view of one entity.
func (w *World) Entity(id string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.view(), nil
}

// Player returns the view of the primary actor.
func (w *World) Player() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.player == nil {
		return View{}
	}
	return w.player.view()
}

// Teleport moves an entity, dropping any navigation path.
func (w *World) Teleport(id string, pos geom.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.pos = pos
	if e.nav != nil {
		e.nav.Warp(pos)
	}
	return nil
}

// Damage applies damage to an entity's health pool from outside the
// simulation (admin tools, tests).
func (w *World) Damage(id string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok || e.pool == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.pool.ApplyDamage(amount)
}

// Interact uses whatever the player currently focuses.
func (w *World) Interact() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interactor.Use()
}
