// Package spatial converts glasses poses between the device tracking frame and the engine's
// simulation frame.
//
// Tracking space (GBD) is +x right, +y forward, +z up. Simulation space is +x right, +y up,
// +z backward. Every function here is pure.
package spatial

import (
	"math"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

// Eye selects the left or right eye.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

// String returns "left" or "right".
func (e Eye) String() string {
	if e == EyeRight {
		return "right"
	}
	return "left"
}

var (
	// flipX is X(pi), applied to the raw orientation before conjugation.
	flipX = common.QuatFromAxisAngle(common.AxisX, math.Pi)

	// BoardFromTracking maps tracking axes onto simulation axes: X(-pi/2), so (x, y, z) becomes (x, z, -y).
	BoardFromTracking = common.Transform{
		Rotation: common.QuatFromAxisAngle(common.AxisX, -math.Pi/2),
	}
)

// ConvertPose converts a raw device pose into the simulation-space transform of the glasses
// relative to the board anchor, and the unconverted native transform used for eye offsets.
//
// Parameters:
//   - raw: the pose reported by the driver
//
// Returns:
//   - common.Transform: the glasses transform relative to the board anchor
//   - common.Transform: the native tracking-space transform
func ConvertPose(raw device.NativePose) (common.Transform, common.Transform) {
	native := common.Transform{Position: raw.Position, Rotation: raw.Orientation}
	local := common.Transform{
		Position: raw.Position,
		Rotation: flipX.Mul(raw.Orientation).Conjugate(),
	}
	return BoardFromTracking.Mul(local), native
}

// TrackingPose is the inverse of ConvertPose: it recovers the raw tracking-space position and
// orientation from a simulation-space anchor transform.
//
// Parameters:
//   - anchor: the glasses transform relative to the board anchor
//
// Returns:
//   - common.Transform: the tracking-space transform (position, raw orientation)
func TrackingPose(anchor common.Transform) common.Transform {
	local := BoardFromTracking.Inverse().Mul(anchor)
	return common.Transform{
		Position: local.Position,
		Rotation: flipX.Conjugate().Mul(local.Rotation.Conjugate()),
	}
}

// EyeOffset returns the displacement of one eye from the glasses origin: half the IPD along the
// native orientation's local -x (left) or +x (right) axis.
//
// Parameters:
//   - native: the native tracking-space transform of the glasses
//   - ipdMM: the inter-pupillary distance in millimeters
//   - eye: the eye
//
// Returns:
//   - common.Vec3: the offset in meters
func EyeOffset(native common.Transform, ipdMM float32, eye Eye) common.Vec3 {
	half := ipdMM * 0.001 / 2
	if eye == EyeRight {
		return native.Right().Scale(half)
	}
	return native.Left().Scale(half)
}

// EyePositions returns the left and right eye positions given the glasses anchor position.
//
// Parameters:
//   - anchorPosition: the glasses position relative to the board anchor
//   - native: the native tracking-space transform of the glasses
//   - ipdMM: the inter-pupillary distance in millimeters
//
// Returns:
//   - common.Vec3: the left eye position
//   - common.Vec3: the right eye position
func EyePositions(anchorPosition common.Vec3, native common.Transform, ipdMM float32) (common.Vec3, common.Vec3) {
	return anchorPosition.Add(EyeOffset(native, ipdMM, EyeLeft)),
		anchorPosition.Add(EyeOffset(native, ipdMM, EyeRight))
}

// EyePoses returns the per-eye camera poses in tracking space for frame submission.
//
// Parameters:
//   - native: the native tracking-space transform of the glasses
//   - ipdMM: the inter-pupillary distance in millimeters
//
// Returns:
//   - device.EyePose: the left eye pose
//   - device.EyePose: the right eye pose
func EyePoses(native common.Transform, ipdMM float32) (device.EyePose, device.EyePose) {
	left := device.EyePose{
		Rotation: native.Rotation,
		Position: native.Position.Add(EyeOffset(native, ipdMM, EyeLeft)),
	}
	right := device.EyePose{
		Rotation: native.Rotation,
		Position: native.Position.Add(EyeOffset(native, ipdMM, EyeRight)),
	}
	return left, right
}
