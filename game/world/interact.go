package world

import (
	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/notify"
)

// Pickup notifications.
const (
	EventFocusGained = "focus_gained"
	EventFocusLost   = "focus_lost"
	EventInteracted  = "interacted"
)

// Interactable is something the player can focus and use.
type Interactable interface {
	DisplayName() string
	Position() geom.Vec3
	CanInteract() bool
	Interact()
	OnFocusGained()
	OnFocusLost()
}

// Pickup heals a pool once and then disables itself.
type Pickup struct {
	id      string
	name    string
	pos     geom.Vec3
	heal    float64
	pool    *health.Pool
	enabled bool
	focused bool
	hub     *notify.Hub
}

// NewPickup creates an enabled heal item bound to pool.
func NewPickup(id, name string, pos geom.Vec3, heal float64, pool *health.Pool) *Pickup {
	return &Pickup{id: id, name: name, pos: pos, heal: heal, pool: pool, enabled: true, hub: notify.NewHub(id)}
}

func (p *Pickup) Hooks() *notify.Hub { return p.hub }

func (p *Pickup) DisplayName() string { return p.name }

func (p *Pickup) Position() geom.Vec3 { return p.pos }

// CanInteract is false once used, or while the bound pool is dead.
func (p *Pickup) CanInteract() bool {
	return p.enabled && p.pool != nil && !p.pool.IsDead()
}

func (p *Pickup) Interact() {
	if !p.CanInteract() {
		return
	}
	if err := p.pool.ApplyHeal(p.heal); err != nil {
		return
	}
	p.enabled = false
	p.hub.Emit(EventInteracted, p.heal)
}

func (p *Pickup) OnFocusGained() {
	p.focused = true
	p.hub.Emit(EventFocusGained, 0)
}

func (p *Pickup) OnFocusLost() {
	p.focused = false
	p.hub.Emit(EventFocusLost, 0)
}

func (p *Pickup) Focused() bool { return p.focused }

// Interactor tracks which interactable the player is looking at.
type Interactor struct {
	radius  float64
	focused Interactable
}

func NewInteractor(radius float64) *Interactor { return &Interactor{radius: radius} }

// Update focuses the nearest usable candidate within radius.
func (in *Interactor) Update(pos geom.Vec3, candidates []Interactable) {
	var nearest Interactable
	best := in.radius * in.radius
	for _, c := range candidates {
		if !c.CanInteract() {
			continue
		}
		if d := geom.DistanceSq(pos, c.Position()); d <= best {
			best, nearest = d, c
		}
	}
	if nearest == in.focused {
		return
	}
	if in.focused != nil {
		in.focused.OnFocusLost()
	}
	in.focused = nearest
	if nearest != nil {
		nearest.OnFocusGained()
	}
}

func (in *Interactor) Focused() Interactable { return in.focused }

// Use interacts with the focused item. It reports whether anything happened.
func (in *Interactor) Use() bool {
	if in.focused == nil || !in.focused.CanInteract() {
		return false
	}
	in.focused.Interact()
	return true
}

// Reset drops focus without notifying.
func (in *Interactor) Reset() { in.focused = nil }
