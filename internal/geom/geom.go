// Package geom provides the small set of 3D primitives the cave
// pipeline is built on: float64 vectors (via mgl64), axis-aligned
// boxes, and segment queries.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is the vector type used throughout the generator.
type Vec3 = mgl64.Vec3

// V is shorthand for constructing a Vec3.
func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

// AABB is an axis-aligned bounding box. Min must be ≤ Max per axis.
type AABB struct {
	Min, Max Vec3
}

// CubeAround returns the axis-aligned cube centered on c with the
// given half-width.
func CubeAround(c Vec3, halfWidth float64) AABB {
	h := Vec3{halfWidth, halfWidth, halfWidth}
	return AABB{Min: c.Sub(h), Max: c.Add(h)}
}

// Center returns the box center.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent per axis.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies inside the box. The test is
// half-open: the Max faces are excluded so adjacent boxes do not
// both claim a shared boundary point.
func (b AABB) Contains(p Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] >= b.Max[i] {
			return false
		}
	}
	return true
}

// DistSqToPoint returns the squared distance from p to the box,
// zero if p is inside. Per-axis clamp, no square roots.
func (b AABB) DistSqToPoint(p Vec3) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		if v := b.Min[i] - p[i]; v > 0 {
			d += v * v
		} else if v := p[i] - b.Max[i]; v > 0 {
			d += v * v
		}
	}
	return d
}

// ClosestOnSegment returns the point on segment [a, b] closest to p.
// Degenerate segments (a == b) return a.
func ClosestOnSegment(a, b, p Vec3) Vec3 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(ab.Mul(t))
}

// SafeNormalize returns v scaled to unit length, or the zero vector
// when v is too short to normalize meaningfully.
func SafeNormalize(v Vec3) Vec3 {
	l := v.Len()
	if l < 1e-12 || math.IsNaN(l) {
		return Vec3{}
	}
	return v.Mul(1 / l)
}

// Clamp01 clamps x into [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
