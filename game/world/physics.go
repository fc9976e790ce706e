package world

import (
	"math"
	"sort"
	"time"

	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/kasuganosora/combatcore/game/health"
	"github.com/kasuganosora/combatcore/game/projectile"
)

// kinematic is the stand-in rigid body of a projectile.
type kinematic struct {
	pos      geom.Vec3
	vel      geom.Vec3
	force    geom.Vec3
	mass     float64
	frozen   bool
	collider bool
	visible  bool
}

func newKinematic(pos geom.Vec3, mass float64) *kinematic {
	if !(mass > 0) {
		mass = 1
	}
	return &kinematic{pos: pos, mass: mass, collider: true, visible: true}
}

// AddForce changes velocity at once for an impulse, or keeps pushing every
// step for a continuous force.
func (k *kinematic) AddForce(f geom.Vec3, mode projectile.ForceMode) {
	if k.frozen {
		return
	}
	switch mode {
	case projectile.ForceContinuous:
		k.force = k.force.Add(f)
	default:
		k.vel = k.vel.Add(f.Scale(1 / k.mass))
	}
}

func (k *kinematic) Freeze() {
	k.frozen = true
	k.vel = geom.Zero
	k.force = geom.Zero
}

func (k *kinematic) DisableCollider() { k.collider = false }

func (k *kinematic) HideVisual() { k.visible = false }

// step integrates one tick and returns the swept segment.
func (k *kinematic) step(dt time.Duration) (from, to geom.Vec3) {
	from = k.pos
	if k.frozen {
		return from, from
	}
	s := dt.Seconds()
	k.vel = k.vel.Add(k.force.Scale(s / k.mass))
	k.pos = k.pos.Add(k.vel.Scale(s))
	return from, k.pos
}

// trail is a particle trail following a projectile.
type trail struct {
	id       string
	lifetime time.Duration
	attached bool
	emitting bool
}

func (t *trail) ID() string { return t.id }

func (t *trail) Detach() { t.attached = false }

func (t *trail) StopEmission() { t.emitting = false }

func (t *trail) RemainingLifetime() time.Duration { return t.lifetime }

// scenery is a static collider without health.
type scenery struct{ tag string }

func (s scenery) Tag() string { return s.tag }

func (scenery) Health() *health.Pool { return nil }

type hit struct {
	t      float64
	other  projectile.Hittable
	point  geom.Vec3
	normal geom.Vec3
}

// segmentSphere returns the entry fraction of the segment into the sphere.
// A segment starting inside reports 0.
func segmentSphere(from, to, center geom.Vec3, r float64) (bool, float64) {
	d := to.Sub(from)
	f := from.Sub(center)
	c := f.Dot(f) - r*r
	if c <= 0 {
		return true, 0
	}
	a := d.Dot(d)
	if a < 1e-18 {
		return false, 0
	}
	b := 2 * f.Dot(d)
	disc := b*b - 4*a*c
	if disc < 0 {
		return false, 0
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > 1 {
		return false, 0
	}
	return true, t
}

// sweep lists everything the segment touches, nearest first.
func (w *World) sweep(from, to geom.Vec3, radius float64) []hit {
	var hits []hit
	dir := to.Sub(from).Normalize()
	for _, id := range w.order {
		e := w.entities[id]
		if e.Kind != KindPlayer && e.Kind != KindEnemy {
			continue
		}
		c := e.center()
		if ok, t := segmentSphere(from, to, c, e.hitRadius()+radius); ok {
			p := from.Add(to.Sub(from).Scale(t))
			n := p.Sub(c).Normalize()
			if n.IsZero() {
				n = dir.Scale(-1)
			}
			hits = append(hits, hit{t: t, other: e, point: p, normal: n})
		}
	}
	for _, o := range w.obstacles {
		grown := geom.AABB{
			Min: o.Min.Sub(geom.V(radius, radius, radius)),
			Max: o.Max.Add(geom.V(radius, radius, radius)),
		}
		if ok, t := grown.SegmentHit(from, to); ok {
			p := from.Add(to.Sub(from).Scale(t))
			hits = append(hits, hit{t: t, other: scenery{TagEnvironment}, point: p, normal: boxNormal(o, p)})
		}
	}
	if from.Y >= 0 && to.Y < 0 {
		t := from.Y / (from.Y - to.Y)
		p := from.Add(to.Sub(from).Scale(t))
		p.Y = 0
		hits = append(hits, hit{t: t, other: scenery{TagEnvironment}, point: p, normal: geom.Up})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	return hits
}

// boxNormal picks the face of b nearest to p.
func boxNormal(b geom.AABB, p geom.Vec3) geom.Vec3 {
	best := math.Inf(1)
	n := geom.Up
	faces := []struct {
		d float64
		n geom.Vec3
	}{
		{math.Abs(p.X - b.Min.X), geom.V(-1, 0, 0)},
		{math.Abs(p.X - b.Max.X), geom.V(1, 0, 0)},
		{math.Abs(p.Y - b.Min.Y), geom.V(0, -1, 0)},
		{math.Abs(p.Y - b.Max.Y), geom.V(0, 1, 0)},
		{math.Abs(p.Z - b.Min.Z), geom.V(0, 0, -1)},
		{math.Abs(p.Z - b.Max.Z), geom.V(0, 0, 1)},
	}
	for _, f := range faces {
		if f.d < best {
			best, n = f.d, f.n
		}
	}
	return n
}
