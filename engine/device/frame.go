package device

import (
	"math"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

// Defaults for the stereo frame handed to the glasses.
const (
	DefaultTextureWidth  = 1216
	DefaultTextureHeight = 768
	DefaultFOVDegrees    = 48.0
	DefaultIPD           = 64.0 // millimeters
)

// NewViewCone computes the frustum geometry for a symmetric perspective of fovDegrees
// (vertical) rendered into a width x height texture.
//
// Parameters:
//   - fovDegrees: the vertical field of view in degrees
//   - width: the texture width in pixels
//   - height: the texture height in pixels
//
// Returns:
//   - ViewCone: the view-cone intersection with the unit plane
func NewViewCone(fovDegrees float32, width, height uint32) ViewCone {
	half := float64(fovDegrees) * math.Pi / 360
	startY := -float32(math.Tan(half))
	aspect := float32(1)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	startX := startY * aspect
	return ViewCone{
		StartX: startX,
		StartY: startY,
		Width:  -2 * startX,
		Height: -2 * startY,
	}
}

// EyePose is one eye's camera pose in gameboard tracking space.
type EyePose struct {
	Rotation common.Quat
	Position common.Vec3
}

// NewFrameInfo assembles a frame descriptor from two native texture handles and the per-eye poses.
//
// Parameters:
//   - left: the native handle of the left eye texture
//   - right: the native handle of the right eye texture
//   - width: the texture width in pixels
//   - height: the texture height in pixels
//   - fovDegrees: the vertical field of view the eyes were rendered with
//   - leftEye: the left eye pose
//   - rightEye: the right eye pose
//
// Returns:
//   - *FrameInfo: the frame descriptor
func NewFrameInfo(left, right uintptr, width, height uint32, fovDegrees float32, leftEye, rightEye EyePose) *FrameInfo {
	return &FrameInfo{
		LeftTexture:   left,
		RightTexture:  right,
		Width:         uint16(width),
		Height:        uint16(height),
		IsSRGB:        false,
		IsUpsideDown:  false,
		ViewCone:      NewViewCone(fovDegrees, width, height),
		LeftRotation:  leftEye.Rotation,
		LeftPosition:  leftEye.Position,
		RightRotation: rightEye.Rotation,
		RightPosition: rightEye.Position,
	}
}
