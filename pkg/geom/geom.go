// Package geom provides 2D/3D helpers on top of mathgl used by track and terrain generation.
package geom

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Cross2 returns the z component of the cross product of two 2D vectors.
func Cross2(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

// Perp returns v rotated 90 degrees counter-clockwise.
func Perp(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-v.Y(), v.X()}
}

// IntersectLines returns the intersection of the infinite line through a0,a1
// with the infinite line through b0,b1. ok is false for parallel lines.
func IntersectLines(a0, a1, b0, b1 mgl64.Vec2) (p mgl64.Vec2, ok bool) {
	da := a1.Sub(a0)
	db := b1.Sub(b0)
	denom := Cross2(da, db)
	if math.Abs(denom) < 1e-12 {
		return mgl64.Vec2{}, false
	}
	t := Cross2(b0.Sub(a0), db) / denom
	return a0.Add(da.Mul(t)), true
}

// SignedDistance returns the distance of p from the line through a,b,
// positive on the left of a->b.
func SignedDistance(p, a, b mgl64.Vec2) float64 {
	ab := b.Sub(a)
	l := ab.Len()
	if l == 0 {
		return p.Sub(a).Len()
	}
	return Cross2(ab, p.Sub(a)) / l
}

// Barycentric returns the barycentric weights of p in triangle abc.
// ok is false for a degenerate triangle.
func Barycentric(p, a, b, c mgl64.Vec2) (u, v, w float64, ok bool) {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)
	den := Cross2(v0, v1)
	if math.Abs(den) < 1e-12 {
		return 0, 0, 0, false
	}
	v = Cross2(v2, v1) / den
	w = Cross2(v0, v2) / den
	u = 1 - v - w
	return u, v, w, true
}

// InTriangle reports whether p lies in triangle abc, allowing eps slack on the weights.
func InTriangle(p, a, b, c mgl64.Vec2, eps float64) bool {
	u, v, w, ok := Barycentric(p, a, b, c)
	return ok && u >= -eps && v >= -eps && w >= -eps
}

// InterpolateTriangle returns the height at p of the plane through a, b and c.
func InterpolateTriangle(p mgl64.Vec2, a, b, c mgl64.Vec3) float64 {
	u, v, w, ok := Barycentric(p, a.Vec2(), b.Vec2(), c.Vec2())
	if !ok {
		return (a.Z() + b.Z() + c.Z()) / 3
	}
	return u*a.Z() + v*b.Z() + w*c.Z()
}

// Normal samples a normal distribution.
func Normal(r *rand.Rand, mean, deviation float64) float64 {
	return mean + r.NormFloat64()*deviation
}

// ClampedNormal samples a normal distribution and clamps the result to [-bound, bound].
func ClampedNormal(r *rand.Rand, mean, deviation, bound float64) float64 {
	return mgl64.Clamp(Normal(r, mean, deviation), -bound, bound)
}

// Yaw returns the heading of dir in degrees, counter-clockwise from +X.
func Yaw(dir mgl64.Vec2) float64 {
	return mgl64.RadToDeg(math.Atan2(dir.Y(), dir.X()))
}

// ClampToSquare clamps p into [lo, hi] on both axes.
func ClampToSquare(p mgl64.Vec2, lo, hi float64) mgl64.Vec2 {
	return mgl64.Vec2{mgl64.Clamp(p.X(), lo, hi), mgl64.Clamp(p.Y(), lo, hi)}
}

// SplitMix64 mixes v into a well distributed 64-bit value. Used to derive
// independent random streams from a base seed and a key.
func SplitMix64(v uint64) uint64 {
	v += 0x9e3779b97f4a7c15
	v = (v ^ (v >> 30)) * 0xbf58476d1ce4e5b9
	v = (v ^ (v >> 27)) * 0x94d049bb133111eb
	return v ^ (v >> 31)
}
