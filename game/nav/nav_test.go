package nav

import (
	"testing"
	"time"

	"github.com/kasuganosora/combatcore/game/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wallGrid(t *testing.T) *Grid {
	t.Helper()
	// 10x10 floor with a wall across x=5 except the top row.
	wall := geom.AABB{Min: geom.V(5, 0, 0), Max: geom.V(6, 2, 9)}
	g, err := NewGrid(geom.V(0, 0, 0), geom.V(10, 0, 10), 1, 0, []geom.AABB{wall})
	require.NoError(t, err)
	return g
}

func TestNewGrid_Invalid(t *testing.T) {
	_, err := NewGrid(geom.Zero, geom.V(10, 0, 10), 0, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = NewGrid(geom.V(5, 0, 5), geom.V(5, 0, 10), 1, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestGrid_Blocked(t *testing.T) {
	g := wallGrid(t)
	assert.Equal(t, 10, g.Width())
	assert.Equal(t, 10, g.Depth())
	assert.False(t, g.Walkable(Cell{5, 3}))
	assert.True(t, g.Walkable(Cell{5, 9}))
	assert.True(t, g.Walkable(Cell{4, 3}))
	assert.False(t, g.Walkable(Cell{-1, 0}))
}

func TestAStar_DetoursAroundWall(t *testing.T) {
	g := wallGrid(t)
	path := AStar(g, Cell{2, 2}, Cell{8, 2})
	require.NotNil(t, path)
	assert.Equal(t, Cell{8, 2}, path[len(path)-1])
	for _, c := range path {
		assert.True(t, g.Walkable(c))
	}
	// straight line would be 6 steps; the gap is at z=9
	assert.Equal(t, 6+2*7, len(path))
}

func TestAStar_NoPath(t *testing.T) {
	box := []geom.AABB{
		{Min: geom.V(0, 0, 3), Max: geom.V(10, 1, 4)},
	}
	g, err := NewGrid(geom.Zero, geom.V(10, 0, 10), 1, 0, box)
	require.NoError(t, err)
	assert.Nil(t, AStar(g, Cell{1, 1}, Cell{1, 8}))
	assert.Equal(t, []Cell{}, AStar(g, Cell{1, 1}, Cell{1, 1}))
}

func TestGrid_Sample(t *testing.T) {
	g := wallGrid(t)
	p, ok := g.Sample(geom.V(2.2, 0, 2.7), 1)
	require.True(t, ok)
	assert.Equal(t, geom.V(2.2, 0, 2.7), p)

	p, ok = g.Sample(geom.V(5.4, 0, 3.5), 1)
	require.True(t, ok)
	assert.Equal(t, geom.V(4.5, 0, 3.5), p)

	_, ok = g.Sample(geom.V(50, 0, 50), 1)
	assert.False(t, ok)
}

func TestAgent_StepReachesDestination(t *testing.T) {
	g := wallGrid(t)
	a := NewAgent(g, geom.V(1.5, 0, 1.5), 2, 0.1)
	require.True(t, a.SetDestination(geom.V(3.5, 0, 1.5)))
	assert.False(t, a.PathPending())
	assert.InDelta(t, 2, a.RemainingDistance(), 1e-9)

	a.Step(500 * time.Millisecond)
	assert.InDelta(t, 2.5, a.Position().X, 1e-9)
	assert.InDelta(t, 2, a.Velocity().Len(), 1e-9)

	a.Step(time.Second)
	assert.InDelta(t, 3.5, a.Position().X, 1e-9)
	assert.InDelta(t, 0, a.RemainingDistance(), 1e-9)
}

func TestAgent_StoppedDoesNotMove(t *testing.T) {
	g := wallGrid(t)
	a := NewAgent(g, geom.V(1.5, 0, 1.5), 2, 0)
	require.True(t, a.SetDestination(geom.V(1.5, 0, 4.5)))
	a.SetStopped(true)
	a.Step(time.Second)
	assert.Equal(t, geom.V(1.5, 0, 1.5), a.Position())
	assert.True(t, a.Velocity().IsZero())

	a.SetStopped(false)
	a.Step(time.Second)
	assert.InDelta(t, 3.5, a.Position().Z, 1e-9)
}

func TestAgent_UnreachableKeepsPath(t *testing.T) {
	g := wallGrid(t)
	a := NewAgent(g, geom.V(1.5, 0, 1.5), 2, 0)
	require.True(t, a.SetDestination(geom.V(1.5, 0, 3.5)))
	assert.False(t, a.SetDestination(geom.V(40, 0, 40)))
	assert.InDelta(t, 2, a.RemainingDistance(), 1e-9)

	a.Warp(geom.V(8.5, 0, 8.5))
	assert.Zero(t, a.RemainingDistance())
}
