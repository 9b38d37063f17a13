package spatial

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

const eps = 1e-4

func TestBoardFromTrackingAxes(t *testing.T) {
	got := BoardFromTracking.Apply(common.Vec3{X: 1, Y: 2, Z: 3})
	want := common.Vec3{X: 1, Y: 3, Z: -2}
	if !got.ApproxEqual(want, eps) {
		t.Errorf("BoardFromTracking(1,2,3) = %v, want %v", got, want)
	}
}

func TestConvertPoseIdentity(t *testing.T) {
	raw := device.NativePose{
		Position:    common.Vec3{X: 1, Y: 2, Z: 3},
		Orientation: common.IdentityQuat(),
	}
	anchor, native := ConvertPose(raw)

	if !anchor.Position.ApproxEqual(common.Vec3{X: 1, Y: 3, Z: -2}, eps) {
		t.Errorf("anchor position = %v", anchor.Position)
	}
	wantRot := common.QuatFromAxisAngle(common.AxisX, math.Pi/2)
	if !anchor.Rotation.ApproxEqual(wantRot, eps) {
		t.Errorf("anchor rotation = %v, want %v", anchor.Rotation, wantRot)
	}
	if native.Position != raw.Position || native.Rotation != raw.Orientation {
		t.Errorf("native = %v, want raw pose unchanged", native)
	}
}

func TestConvertPoseRoundTrip(t *testing.T) {
	f := func(a, b, c, d, x, y, z int16) bool {
		q := common.Quat{X: float32(a), Y: float32(b), Z: float32(c), W: float32(d)}
		if q.Norm() < 1000 {
			return true
		}
		raw := device.NativePose{
			Position:    common.Vec3{X: float32(x) / 1000, Y: float32(y) / 1000, Z: float32(z) / 1000},
			Orientation: q.Normalize(),
		}

		anchor, _ := ConvertPose(raw)
		back := TrackingPose(anchor)

		return back.Position.ApproxEqual(raw.Position, 1e-3) &&
			back.Rotation.ApproxEqual(raw.Orientation, 1e-3)
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 2000}); err != nil {
		t.Error(err)
	}
}

func TestConvertPoseIsDeterministic(t *testing.T) {
	raw := device.NativePose{
		Position:    common.Vec3{X: 0.1, Y: -0.4, Z: 0.5},
		Orientation: common.QuatFromAxisAngle(common.Vec3{X: 1, Y: 1}, 0.7),
	}
	a1, n1 := ConvertPose(raw)
	a2, n2 := ConvertPose(raw)
	if a1 != a2 || n1 != n2 {
		t.Error("ConvertPose is not deterministic")
	}
}

func TestEyeOffset(t *testing.T) {
	identity := common.IdentityTransform()
	yaw := common.Transform{Rotation: common.QuatFromAxisAngle(common.AxisZ, math.Pi/2)}

	tests := []struct {
		name   string
		native common.Transform
		ipd    float32
		eye    Eye
		want   common.Vec3
	}{
		{"left identity", identity, 64, EyeLeft, common.Vec3{X: -0.032}},
		{"right identity", identity, 64, EyeRight, common.Vec3{X: 0.032}},
		{"left yawed", yaw, 64, EyeLeft, common.Vec3{Y: -0.032}},
		{"zero ipd", identity, 0, EyeLeft, common.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EyeOffset(tt.native, tt.ipd, tt.eye)
			if !got.ApproxEqual(tt.want, 1e-6) {
				t.Errorf("EyeOffset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEyePositionsAreSymmetric(t *testing.T) {
	anchor := common.Vec3{X: 1, Y: 2, Z: 3}
	native := common.Transform{Rotation: common.QuatFromAxisAngle(common.Vec3{X: 0.3, Y: 1, Z: 0.2}, 1.1)}

	left, right := EyePositions(anchor, native, 62)

	mid := left.Add(right).Scale(0.5)
	if !mid.ApproxEqual(anchor, 1e-5) {
		t.Errorf("eye midpoint = %v, want %v", mid, anchor)
	}
	if d := right.Sub(left).Length(); math.Abs(float64(d)-0.062) > 1e-5 {
		t.Errorf("eye distance = %v, want 0.062", d)
	}
}

func TestEyePosesKeepNativeRotation(t *testing.T) {
	native := common.Transform{
		Position: common.Vec3{Z: 0.5},
		Rotation: common.QuatFromAxisAngle(common.AxisY, 0.4),
	}
	left, right := EyePoses(native, 64)
	if left.Rotation != native.Rotation || right.Rotation != native.Rotation {
		t.Error("eye rotation differs from glasses rotation")
	}
	if !left.Position.ApproxEqual(native.Position.Add(EyeOffset(native, 64, EyeLeft)), 1e-6) {
		t.Errorf("left eye position = %v", left.Position)
	}
}
