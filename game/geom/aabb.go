package geom

import "math"

// AABB is an axis-aligned box.
type AABB struct {
	Min Vec3 `json:"min" mapstructure:"min"`
	Max Vec3 `json:"max" mapstructure:"max"`
}

// Box builds an AABB from a centre and half extents.
func Box(center, half Vec3) AABB {
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsXZ ignores the vertical axis.
func (b AABB) ContainsXZ(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ClosestPoint returns the point of the box nearest to p.
func (b AABB) ClosestPoint(p Vec3) Vec3 {
	return Vec3{
		X: math.Max(b.Min.X, math.Min(p.X, b.Max.X)),
		Y: math.Max(b.Min.Y, math.Min(p.Y, b.Max.Y)),
		Z: math.Max(b.Min.Z, math.Min(p.Z, b.Max.Z)),
	}
}

// SegmentHit reports whether the segment from->to crosses the box and the
// fraction along the segment at which it enters (slab test).
func (b AABB) SegmentHit(from, to Vec3) (bool, float64) {
	d := to.Sub(from)
	tmin, tmax := 0.0, 1.0
	o := [3]float64{from.X, from.Y, from.Z}
	dir := [3]float64{d.X, d.Y, d.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return false, 0
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (lo[i] - o[i]) * inv
		t2 := (hi[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false, 0
		}
	}
	return true, tmin
}
