package world

import (
	"github.com/kasuganosora/combatcore/game/ai"
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/nav"
	"github.com/kasuganosora/combatcore/game/projectile"
	"github.com/kasuganosora/combatcore/game/weapon"
)

// Kind classifies arena entities.
type Kind string

const (
	KindPlayer     Kind = "player"
	KindEnemy      Kind = "enemy"
	KindProjectile Kind = "projectile"
	KindEffect     Kind = "effect"
	KindPickup     Kind = "pickup"
)

// Identity tags used for self-hit exclusion.
const (
	TagPlayer      = "Player"
	TagEnemy       = "Enemy"
	TagEnvironment = "Environment"
)

// Entity is one object in the arena. Only the fields matching its Kind are
// set.
type Entity struct {
	ID   string
	Name string
	Kind Kind

	tag    string
	pos    geom.Vec3
	yaw    float64
	radius float64
	height float64

	pool   *health.Pool
	agent  *ai.Agent
	nav    *nav.Agent
	gun    *weapon.Emitter
	anim   *animState
	sentry bool

	proj   *projectile.Projectile
	body   *kinematic
	trails []*trail

	pickup *Pickup
}

// Position is the entity's feet.
func (e *Entity) Position() geom.Vec3 { return e.pos }

func (e *Entity) Yaw() float64 { return e.yaw }

func (e *Entity) SetYaw(yaw float64) { e.yaw = geom.WrapAngle(yaw) }

func (e *Entity) Tag() string { return e.tag }

// Health is nil for entities that cannot be damaged.
func (e *Entity) Health() *health.Pool { return e.pool }

// Facing is the horizontal forward vector.
func (e *Entity) Facing() geom.Vec3 { return geom.ForwardFromYaw(e.yaw) }

// Muzzle is the shoot point at three quarters of body height.
func (e *Entity) Muzzle() geom.Vec3 {
	return e.pos.Add(geom.Up.Scale(e.height * 0.75)).Add(e.Facing().Scale(e.radius))
}

// center is the middle of the entity's hit sphere.
func (e *Entity) center() geom.Vec3 { return e.pos.Add(geom.Up.Scale(e.height / 2)) }

func (e *Entity) hitRadius() float64 { return e.height / 2 }

func (e *Entity) alive() bool { return e.pool == nil || !e.pool.IsDead() }

// View is the read-only state of an entity.
type View struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Kind     Kind      `json:"kind"`
	Tag      string    `json:"tag,omitempty"`
	Position geom.Vec3 `json:"position"`
	Yaw      float64   `json:"yaw"`
	HP       float64   `json:"hp,omitempty"`
	MaxHP    float64   `json:"max_hp,omitempty"`
	Dead     bool      `json:"dead,omitempty"`
	State    string    `json:"state,omitempty"`
	Visible  bool      `json:"target_visible,omitempty"`
	Speed    float64   `json:"speed,omitempty"`
	Firing   bool      `json:"firing,omitempty"`
}

func (e *Entity) view() View {
	v := View{
		ID:       e.ID,
		Name:     e.Name,
		Kind:     e.Kind,
		Tag:      e.tag,
		Position: e.pos,
		Yaw:      e.yaw,
	}
	if e.pool != nil {
		v.HP = e.pool.Current()
		v.MaxHP = e.pool.Max()
		v.Dead = e.pool.IsDead()
	}
	if e.agent != nil {
		v.State = e.agent.State().String()
		v.Visible = e.agent.Visible()
	}
	if e.anim != nil {
		v.Speed = e.anim.floats[ai.ParamSpeed]
	}
	if e.gun != nil {
		v.Firing = e.gun.Firing()
	}
	return v
}

// animState keeps the last animator parameters of an agent so they can be
// inspected.
type animState struct {
	floats   map[string]float64
	bools    map[string]bool
	triggers map[string]int
}

func newAnimState() *animState {
	return &animState{floats: map[string]float64{}, bools: map[string]bool{}, triggers: map[string]int{}}
}

func (a *animState) SetTrigger(name string)          { a.triggers[name]++ }
func (a *animState) SetFloat(name string, v float64) { a.floats[name] = v }
func (a *animState) SetBool(name string, v bool)     { a.bools[name] = v }
