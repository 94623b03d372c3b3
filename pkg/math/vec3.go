// Package math provides double precision geometry for mesh slicing.
package math

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// Vec3 is a 3D point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) t() vec3.T {
	return vec3.T{v.X, v.Y, v.Z}
}

func fromT(t vec3.T) Vec3 {
	return Vec3{t[0], t[1], t[2]}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	a, b := v.t(), other.t()
	return fromT(vec3.Add(&a, &b))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	a, b := v.t(), other.t()
	return fromT(vec3.Sub(&a, &b))
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	a := v.t()
	return fromT(a.Scaled(s))
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float64 {
	a, b := v.t(), other.t()
	return vec3.Dot(&a, &b)
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	a, b := v.t(), other.t()
	return fromT(vec3.Cross(&a, &b))
}

// Length returns the magnitude.
func (v Vec3) Length() float64 {
	a := v.t()
	return a.Length()
}

// Distance returns the distance to another point.
func (v Vec3) Distance(other Vec3) float64 {
	return v.Sub(other).Length()
}

// Axis returns the component for axis 0 (X), 1 (Y) or 2 (Z).
func (v Vec3) Axis(i int) float64 {
	switch i {
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		return v.X
	}
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// TriangleArea returns the area of triangle (a, b, c).
func TriangleArea(a, b, c Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Length() / 2
}
