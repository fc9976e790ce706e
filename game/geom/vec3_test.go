package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAngleDeg(t *testing.T) {
	assert.InDelta(t, 90, AngleDeg(V(1, 0, 0), V(0, 0, 1)), 1e-9)
	assert.InDelta(t, 180, AngleDeg(V(1, 0, 0), V(-2, 0, 0)), 1e-9)
	assert.Equal(t, 0.0, AngleDeg(Zero, V(1, 0, 0)))
}

func TestYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, -1.2, math.Pi / 2} {
		f := ForwardFromYaw(yaw)
		assert.InDelta(t, yaw, YawOf(f), 1e-9)
	}
	assert.InDelta(t, 0, YawOf(Forward), 1e-9)
}

func TestRotateYawPitch_ZeroIsIdentity(t *testing.T) {
	v := V(0.3, 0.2, 0.9).Normalize()
	r := RotateYawPitch(v, 0, 0)
	assert.InDelta(t, v.X, r.X, 1e-12)
	assert.InDelta(t, v.Y, r.Y, 1e-12)
	assert.InDelta(t, v.Z, r.Z, 1e-12)
}

func TestRotateYawPitch_Yaw90(t *testing.T) {
	r := RotateYawPitch(Forward, 90, 0)
	assert.InDelta(t, 1, r.X, 1e-9)
	assert.InDelta(t, 0, r.Z, 1e-9)
	assert.InDelta(t, 1, r.Len(), 1e-9)
}

func TestTurnTowards_ShortArc(t *testing.T) {
	cur := math.Pi - 0.1
	target := -math.Pi + 0.1
	half := TurnTowards(cur, target, 0.5)
	// the short way crosses +-pi rather than sweeping through 0
	assert.InDelta(t, math.Pi, math.Abs(half), 1e-9)
	assert.InDelta(t, target, TurnTowards(cur, target, 1), 1e-9)
	assert.InDelta(t, cur, TurnTowards(cur, target, 0), 1e-9)
}

func TestRandomInUnitSphere(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, RandomInUnitSphere(rng).Len(), 1.0)
	}
}

func TestAABB_SegmentHit(t *testing.T) {
	b := Box(V(5, 0, 0), V(1, 1, 1))
	hit, frac := b.SegmentHit(V(0, 0, 0), V(10, 0, 0))
	assert.True(t, hit)
	assert.InDelta(t, 0.4, frac, 1e-9)

	hit, _ = b.SegmentHit(V(0, 5, 0), V(10, 5, 0))
	assert.False(t, hit)

	hit, _ = b.SegmentHit(V(0, 0, 0), V(3, 0, 0))
	assert.False(t, hit, "segment stops short of the box")
}

func TestAABB_ClosestPoint(t *testing.T) {
	b := Box(Zero, V(1, 1, 1))
	assert.Equal(t, V(1, 0, 0), b.ClosestPoint(V(3, 0, 0)))
	assert.True(t, b.ContainsXZ(V(0.5, 9, -0.5)))
}
