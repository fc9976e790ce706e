package nav

import (
	"math"
	"time"

	"github.com/kasuganosora/combatcore/game/geom"
)

// Agent steers one entity along grid paths. It satisfies the navigation
// contract the behavior controller expects.
type Agent struct {
	grid     *Grid
	pos      geom.Vec3
	speed    float64
	stopping float64
	stopped  bool

	hasPath  bool
	path     []geom.Vec3
	velocity geom.Vec3
}

// NewAgent places an agent at pos.
func NewAgent(grid *Grid, pos geom.Vec3, speed, stoppingDistance float64) *Agent {
	return &Agent{grid: grid, pos: pos, speed: speed, stopping: stoppingDistance}
}

// SetDestination plans a path to p. It returns false, keeping the previous
// path, when p cannot be reached.
func (a *Agent) SetDestination(p geom.Vec3) bool {
	dest, ok := a.grid.Sample(p, a.grid.cellSize)
	if !ok {
		return false
	}
	from, ok := a.grid.CellOf(a.pos)
	if !ok {
		return false
	}
	to, _ := a.grid.CellOf(dest)
	cells := AStar(a.grid, from, to)
	if cells == nil {
		return false
	}
	path := make([]geom.Vec3, 0, len(cells)+1)
	for i, c := range cells {
		if i == len(cells)-1 {
			break
		}
		w := a.grid.Center(c)
		w.Y = a.pos.Y
		path = append(path, w)
	}
	dest.Y = a.pos.Y
	path = append(path, dest)
	a.path = path
	a.hasPath = true
	return true
}

// PathPending is always false: paths are planned synchronously.
func (a *Agent) PathPending() bool { return false }

// RemainingDistance is the path length left to the destination, 0 when
// there is none.
func (a *Agent) RemainingDistance() float64 {
	if !a.hasPath {
		return 0
	}
	total, prev := 0.0, a.pos
	for _, w := range a.path {
		total += geom.Distance(prev, w)
		prev = w
	}
	return total
}

func (a *Agent) StoppingDistance() float64 { return a.stopping }

func (a *Agent) Speed() float64 { return a.speed }

func (a *Agent) SetSpeed(v float64) { a.speed = math.Max(0, v) }

func (a *Agent) Stopped() bool { return a.stopped }

func (a *Agent) SetStopped(v bool) {
	a.stopped = v
	if v {
		a.velocity = geom.Zero
	}
}

func (a *Agent) Velocity() geom.Vec3 { return a.velocity }

// SamplePosition snaps p to the nearest walkable point within maxDist.
func (a *Agent) SamplePosition(p geom.Vec3, maxDist float64) (geom.Vec3, bool) {
	return a.grid.Sample(p, maxDist)
}

func (a *Agent) Position() geom.Vec3 { return a.pos }

// Warp teleports the agent and drops its path.
func (a *Agent) Warp(p geom.Vec3) {
	a.pos = p
	a.path = nil
	a.hasPath = false
	a.velocity = geom.Zero
}

// Step advances the agent along its path and returns the new position.
func (a *Agent) Step(dt time.Duration) geom.Vec3 {
	a.velocity = geom.Zero
	if a.stopped || !a.hasPath || dt <= 0 {
		return a.pos
	}
	if a.RemainingDistance() <= a.stopping {
		a.path = nil
		a.hasPath = false
		return a.pos
	}
	start := a.pos
	budget := a.speed * dt.Seconds()
	for budget > 0 && len(a.path) > 0 {
		w := a.path[0]
		d := geom.Distance(a.pos, w)
		if d <= budget {
			a.pos = w
			budget -= d
			a.path = a.path[1:]
			continue
		}
		a.pos = a.pos.Add(w.Sub(a.pos).Scale(budget / d))
		budget = 0
	}
	if len(a.path) == 0 {
		a.hasPath = false
	}
	a.velocity = a.pos.Sub(start).Scale(1 / dt.Seconds())
	return a.pos
}
