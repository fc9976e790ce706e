// Package geom holds the small amount of 3D math the simulation needs.
// Y is up; yaw 0 faces +Z and positive yaw turns toward +X.
package geom

import (
	"math"
	"math/rand"
)

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

var (
	Zero    = Vec3{}
	Up      = Vec3{Y: 1}
	Forward = Vec3{Z: 1}
)

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) LenSq() float64 { return v.Dot(v) }

func (v Vec3) Len() float64 { return math.Sqrt(v.LenSq()) }

// Normalize returns the unit vector along v, or Zero for a degenerate vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Zero
	}
	return v.Scale(1 / l)
}

// Horizontal drops the vertical component.
func (v Vec3) Horizontal() Vec3 { return Vec3{X: v.X, Z: v.Z} }

func (v Vec3) IsZero() bool { return v.LenSq() < 1e-18 }

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Vec3) float64 { return b.Sub(a).Len() }

// DistanceSq is the squared distance, for ordering only.
func DistanceSq(a, b Vec3) float64 { return b.Sub(a).LenSq() }

// AngleDeg returns the unsigned angle between a and b in degrees.
// Degenerate inputs yield 0.
func AngleDeg(a, b Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < 1e-9 || lb < 1e-9 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// YawOf returns the heading of dir on the horizontal plane, in radians.
func YawOf(dir Vec3) float64 { return math.Atan2(dir.X, dir.Z) }

// ForwardFromYaw returns the horizontal unit vector for a heading.
func ForwardFromYaw(yaw float64) Vec3 {
	return Vec3{X: math.Sin(yaw), Z: math.Cos(yaw)}
}

// RotateYawPitch applies a pitch about X followed by a yaw about Y.
// Angles are in degrees; positive pitch tilts the forward axis downward.
func RotateYawPitch(v Vec3, yawDeg, pitchDeg float64) Vec3 {
	p := pitchDeg * math.Pi / 180
	y := yawDeg * math.Pi / 180
	sp, cp := math.Sincos(p)
	r := Vec3{
		X: v.X,
		Y: v.Y*cp - v.Z*sp,
		Z: v.Y*sp + v.Z*cp,
	}
	sy, cy := math.Sincos(y)
	return Vec3{
		X: r.X*cy + r.Z*sy,
		Y: r.Y,
		Z: -r.X*sy + r.Z*cy,
	}
}

// WrapAngle maps an angle in radians into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// TurnTowards interpolates a heading toward target along the shorter arc.
// t is clamped to [0,1]; t=1 snaps to target.
func TurnTowards(current, target, t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	diff := WrapAngle(target - current)
	return WrapAngle(current + diff*t)
}

// RandomInUnitSphere samples a point uniformly inside the unit sphere.
func RandomInUnitSphere(rng *rand.Rand) Vec3 {
	for {
		p := Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		if p.LenSq() <= 1 {
			return p
		}
	}
}
