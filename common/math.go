package common

import "math"

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// Perspective creates a perspective projection matrix.
// Uses infinite far plane convention compatible with WebGPU clip space [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
}

// TransformMatrix writes the column-major 4x4 matrix of a rigid transform (rotation then translation).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - t: the transform to convert; its rotation must be a unit quaternion
func TransformMatrix(out []float32, t Transform) {
	q := t.Rotation
	xx, yy, zz := q.X*q.X, q.Y*q.Y, q.Z*q.Z
	xy, xz, yz := q.X*q.Y, q.X*q.Z, q.Y*q.Z
	wx, wy, wz := q.W*q.X, q.W*q.Y, q.W*q.Z

	out[0] = 1 - 2*(yy+zz)
	out[1] = 2 * (xy + wz)
	out[2] = 2 * (xz - wy)
	out[3] = 0

	out[4] = 2 * (xy - wz)
	out[5] = 1 - 2*(xx+zz)
	out[6] = 2 * (yz + wx)
	out[7] = 0

	out[8] = 2 * (xz + wy)
	out[9] = 2 * (yz - wx)
	out[10] = 1 - 2*(xx+yy)
	out[11] = 0

	out[12] = t.Position.X
	out[13] = t.Position.Y
	out[14] = t.Position.Z
	out[15] = 1
}

// ScaledTransformMatrix writes the column-major matrix of t with a per-axis scale applied first.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - t: the rigid transform
//   - scale: the per-axis scale
func ScaledTransformMatrix(out []float32, t Transform, scale Vec3) {
	TransformMatrix(out, t)
	for i := 0; i < 3; i++ {
		out[i] *= scale.X
		out[4+i] *= scale.Y
		out[8+i] *= scale.Z
	}
}

// LookAt builds a right-handed view matrix looking from eye toward center.
// The matrix is stored in column-major order.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: the camera position
//   - center: the point to look at
//   - up: the approximate up direction
func LookAt(out []float32, eye, center, up Vec3) {
	z := eye.Sub(center)
	if l := z.Length(); l > 0 {
		z = z.Scale(1 / l)
	} else {
		z = AxisZ
	}

	x := up.Cross(z)
	if l := x.Length(); l > 0 {
		x = x.Scale(1 / l)
	} else {
		x = AxisX
	}

	y := z.Cross(x)

	out[0], out[4], out[8], out[12] = x.X, x.Y, x.Z, -x.Dot(eye)
	out[1], out[5], out[9], out[13] = y.X, y.Y, y.Z, -y.Dot(eye)
	out[2], out[6], out[10], out[14] = z.X, z.Y, z.Z, -z.Dot(eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}
