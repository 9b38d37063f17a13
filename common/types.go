// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "math"

// Vec3 is a three component float32 vector.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a rotation quaternion stored as (X, Y, Z, W) where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// Transform is a rigid transform made of a translation and a rotation.
// Scale is intentionally absent; glasses, boards, and eye cameras are never scaled.
type Transform struct {
	// Position is the translation component.
	Position Vec3
	// Rotation is the orientation component. It must be a unit quaternion.
	Rotation Quat
}

var (
	// AxisX is the unit vector along +x.
	AxisX = Vec3{X: 1}
	// AxisY is the unit vector along +y.
	AxisY = Vec3{Y: 1}
	// AxisZ is the unit vector along +z.
	AxisZ = Vec3{Z: 1}
)

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// IdentityTransform returns a transform with no translation and no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: IdentityQuat()}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the euclidean length of v.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// ApproxEqual reports whether every component of v is within eps of o.
//
// Parameters:
//   - o: the vector to compare against
//   - eps: the per-component tolerance
//
// Returns:
//   - bool: true if the vectors are approximately equal
func (v Vec3) ApproxEqual(o Vec3, eps float32) bool {
	return abs32(v.X-o.X) <= eps && abs32(v.Y-o.Y) <= eps && abs32(v.Z-o.Z) <= eps
}

// Array returns the vector as a [3]float32.
func (v Vec3) Array() [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
