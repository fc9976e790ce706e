// Package nav provides grid navigation on the arena floor (XZ plane).
package nav

import (
	"errors"
	"fmt"
	"math"

	"github.com/kasuganosora/combatcore/game/geom"
)

var ErrInvalidGrid = errors.New("nav: invalid grid")

// Cell is a grid coordinate on the XZ plane.
type Cell struct {
	X, Z int
}

// Grid is a passability map built from axis-aligned obstacles.
type Grid struct {
	min      geom.Vec3
	cellSize float64
	width    int
	depth    int
	blocked  []bool
}

// NewGrid covers the XZ rectangle [min,max] with square cells. A cell is
// blocked when its centre, grown by clearance, overlaps an obstacle.
func NewGrid(min, max geom.Vec3, cellSize, clearance float64, obstacles []geom.AABB) (*Grid, error) {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidGrid, cellSize)
	}
	if max.X <= min.X || max.Z <= min.Z {
		return nil, fmt.Errorf("%w: empty bounds", ErrInvalidGrid)
	}
	g := &Grid{
		min:      geom.Vec3{X: min.X, Z: min.Z},
		cellSize: cellSize,
		width:    int(math.Ceil((max.X - min.X) / cellSize)),
		depth:    int(math.Ceil((max.Z - min.Z) / cellSize)),
	}
	g.blocked = make([]bool, g.width*g.depth)
	for z := 0; z < g.depth; z++ {
		for x := 0; x < g.width; x++ {
			c := g.Center(Cell{x, z})
			for _, o := range obstacles {
				grown := geom.AABB{
					Min: o.Min.Sub(geom.V(clearance, 0, clearance)),
					Max: o.Max.Add(geom.V(clearance, 0, clearance)),
				}
				if grown.ContainsXZ(c) {
					g.blocked[z*g.width+x] = true
					break
				}
			}
		}
	}
	return g, nil
}

func (g *Grid) Width() int { return g.width }

func (g *Grid) Depth() int { return g.depth }

func (g *Grid) CellSize() float64 { return g.cellSize }

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Z >= 0 && c.X < g.width && c.Z < g.depth
}

// Walkable reports whether c is on the grid and not blocked.
func (g *Grid) Walkable(c Cell) bool {
	return g.InBounds(c) && !g.blocked[c.Z*g.width+c.X]
}

// CellOf returns the cell containing p and whether it is on the grid.
func (g *Grid) CellOf(p geom.Vec3) (Cell, bool) {
	c := Cell{
		X: int(math.Floor((p.X - g.min.X) / g.cellSize)),
		Z: int(math.Floor((p.Z - g.min.Z) / g.cellSize)),
	}
	return c, g.InBounds(c)
}

// Center returns the world position of the middle of c at Y=0.
func (g *Grid) Center(c Cell) geom.Vec3 {
	return geom.Vec3{
		X: g.min.X + (float64(c.X)+0.5)*g.cellSize,
		Z: g.min.Z + (float64(c.Z)+0.5)*g.cellSize,
	}
}

// Sample finds the walkable point closest to p within maxDist on the XZ
// plane. A walkable p is returned unchanged (keeping its height).
func (g *Grid) Sample(p geom.Vec3, maxDist float64) (geom.Vec3, bool) {
	if !p.IsFinite() {
		return geom.Zero, false
	}
	origin, _ := g.CellOf(p)
	if g.Walkable(origin) {
		return p, true
	}
	reach := int(math.Ceil(maxDist/g.cellSize)) + 1
	best, found := geom.Zero, false
	bestDist := maxDist * maxDist
	for dz := -reach; dz <= reach; dz++ {
		for dx := -reach; dx <= reach; dx++ {
			c := Cell{origin.X + dx, origin.Z + dz}
			if !g.Walkable(c) {
				continue
			}
			centre := g.Center(c)
			centre.Y = p.Y
			if d := geom.DistanceSq(p.Horizontal(), centre.Horizontal()); d <= bestDist {
				best, bestDist, found = centre, d, true
			}
		}
	}
	return best, found
}
