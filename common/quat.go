package common

import "math"

// unitTolerance is the maximum deviation of a quaternion's norm from 1 for it to be treated as a unit quaternion.
const unitTolerance = 1e-3

// QuatFromAxisAngle builds a rotation of angle radians about axis. The axis does not need to be normalized.
//
// Parameters:
//   - axis: the rotation axis
//   - angle: the rotation angle in radians (right-handed)
//
// Returns:
//   - Quat: the unit quaternion for the rotation, or the identity if axis has zero length
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	l := axis.Length()
	if l == 0 {
		return IdentityQuat()
	}
	half := float64(angle) / 2
	s := float32(math.Sin(half)) / l
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(half)),
	}
}

// Mul returns the Hamilton product q * o. Applying the result rotates by o first, then by q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Conjugate returns the conjugate of q, which is its inverse when q is a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Norm returns the length of q.
func (q Quat) Norm() float32 {
	return float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
}

// Normalize returns q scaled to unit length. The zero quaternion normalizes to the identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return IdentityQuat()
	}
	inv := 1 / n
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// IsUnit reports whether q is a finite quaternion whose norm is within tolerance of 1.
func (q Quat) IsUnit() bool {
	n := float64(q.Norm())
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return false
	}
	return math.Abs(n-1) <= unitTolerance
}

// Rotate applies the rotation q to v. q must be a unit quaternion.
//
// Parameters:
//   - v: the vector to rotate
//
// Returns:
//   - Vec3: the rotated vector
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + 2w(u x v) + 2(u x (u x v)), u = (x, y, z)
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ApproxEqual reports whether q and o describe the same rotation within eps.
// q and -q are treated as equal since they encode the same rotation.
//
// Parameters:
//   - o: the quaternion to compare against
//   - eps: the per-component tolerance
//
// Returns:
//   - bool: true if the rotations are approximately equal
func (q Quat) ApproxEqual(o Quat, eps float32) bool {
	same := abs32(q.X-o.X) <= eps && abs32(q.Y-o.Y) <= eps && abs32(q.Z-o.Z) <= eps && abs32(q.W-o.W) <= eps
	flipped := abs32(q.X+o.X) <= eps && abs32(q.Y+o.Y) <= eps && abs32(q.Z+o.Z) <= eps && abs32(q.W+o.W) <= eps
	return same || flipped
}

// Mul composes t with o so that the result applies o first, then t (parent * child).
//
// Parameters:
//   - o: the child transform
//
// Returns:
//   - Transform: the composed transform
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(o.Position)),
		Rotation: t.Rotation.Mul(o.Rotation),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position).Neg(),
		Rotation: inv,
	}
}

// Apply transforms the point p by t.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Position.Add(t.Rotation.Rotate(p))
}

// Left returns the transform's local -x axis in the parent frame.
func (t Transform) Left() Vec3 {
	return t.Rotation.Rotate(AxisX.Neg())
}

// Right returns the transform's local +x axis in the parent frame.
func (t Transform) Right() Vec3 {
	return t.Rotation.Rotate(AxisX)
}
