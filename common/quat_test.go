package common

import (
	"math"
	"testing"
)

func TestQuatRotate(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
		v    Vec3
		want Vec3
	}{
		{"identity", IdentityQuat(), Vec3{1, 2, 3}, Vec3{1, 2, 3}},
		{"z quarter turn", QuatFromAxisAngle(AxisZ, math.Pi/2), Vec3{1, 0, 0}, Vec3{0, 1, 0}},
		{"x minus quarter turn", QuatFromAxisAngle(AxisX, -math.Pi/2), Vec3{1, 2, 3}, Vec3{1, 3, -2}},
		{"x half turn", QuatFromAxisAngle(AxisX, math.Pi), Vec3{0, 1, 1}, Vec3{0, -1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Rotate(tt.v); !got.ApproxEqual(tt.want, 1e-5) {
				t.Errorf("Rotate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuatMulOrder(t *testing.T) {
	a := QuatFromAxisAngle(AxisZ, math.Pi/2)
	b := QuatFromAxisAngle(AxisX, math.Pi/2)
	v := Vec3{0, 1, 0}

	// (a*b) applies b first.
	got := a.Mul(b).Rotate(v)
	want := a.Rotate(b.Rotate(v))
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("(a*b).Rotate(v) = %v, want %v", got, want)
	}
}

func TestQuatNormalize(t *testing.T) {
	if q := (Quat{}).Normalize(); q != IdentityQuat() {
		t.Errorf("zero.Normalize() = %v, want identity", q)
	}
	q := Quat{X: 0, Y: 0, Z: 3, W: 4}.Normalize()
	if !q.IsUnit() {
		t.Errorf("Normalize() = %v is not unit", q)
	}
	if (Quat{W: float32(math.NaN())}).IsUnit() {
		t.Error("NaN quaternion reported as unit")
	}
}

func TestQuatApproxEqualSign(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{1, 1, 0}, 0.5)
	neg := Quat{-q.X, -q.Y, -q.Z, -q.W}
	if !q.ApproxEqual(neg, 1e-6) {
		t.Error("q and -q not treated as the same rotation")
	}
}

func TestTransformInverse(t *testing.T) {
	tr := Transform{
		Position: Vec3{1, -2, 0.5},
		Rotation: QuatFromAxisAngle(Vec3{0.2, 1, -0.4}, 1.3),
	}
	id := tr.Mul(tr.Inverse())
	if !id.Position.ApproxEqual(Vec3{}, 1e-5) || !id.Rotation.ApproxEqual(IdentityQuat(), 1e-5) {
		t.Errorf("t * t^-1 = %v, want identity", id)
	}

	p := Vec3{3, 4, 5}
	if got := tr.Inverse().Apply(tr.Apply(p)); !got.ApproxEqual(p, 1e-4) {
		t.Errorf("inverse(apply(p)) = %v, want %v", got, p)
	}
}

func TestTransformMatrixMatchesApply(t *testing.T) {
	tr := Transform{
		Position: Vec3{1, 2, 3},
		Rotation: QuatFromAxisAngle(Vec3{1, 1, 1}, 0.9),
	}
	var m [16]float32
	TransformMatrix(m[:], tr)

	p := Vec3{-1, 0.5, 2}
	got := Vec3{
		m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
	if want := tr.Apply(p); !got.ApproxEqual(want, 1e-5) {
		t.Errorf("matrix * p = %v, want %v", got, want)
	}
}

func TestFrustumContainsSphere(t *testing.T) {
	var view, proj, vp [16]float32
	LookAt(view[:], Vec3{0, 0, 5}, Vec3{}, AxisY)
	Perspective(proj[:], math.Pi/3, 1, 0.1, 100)
	Mul4(vp[:], proj[:], view[:])
	f := ExtractFrustumFromMatrix(vp[:])

	if !f.ContainsSphere(Vec3{}, 0.5) {
		t.Error("origin not visible from camera looking at it")
	}
	if f.ContainsSphere(Vec3{0, 0, 10}, 0.5) {
		t.Error("point behind camera reported visible")
	}
	if f.ContainsSphere(Vec3{50, 0, 0}, 0.5) {
		t.Error("point far to the side reported visible")
	}
}
