package camera

import "github.com/Carmen-Shannon/oxy-t5/common"

// CameraController drives the desktop viewer camera. It orbits a target point using spherical
// coordinates (radius, azimuth, elevation); the camera reads Position and Target from it each frame.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - common.Vec3: the camera position
	Position() common.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - common.Vec3: the orbit target
	Target() common.Vec3

	// SetTarget sets the orbit target and recomputes the position.
	//
	// Parameters:
	//   - target: the world-space pivot point
	SetTarget(target common.Vec3)

	// Zoom moves the camera toward the target. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by ZoomSpeed
	Zoom(delta float32)

	// Orbit rotates the camera around the target by steps of the orbit speed.
	// Elevation is clamped to its bounds.
	//
	// Parameters:
	//   - azimuthSteps: horizontal steps, positive to the right
	//   - elevationSteps: vertical steps, positive upward
	Orbit(azimuthSteps, elevationSteps float32)

	// Radius returns the current orbit radius.
	//
	// Returns:
	//   - float32: distance from target
	Radius() float32

	// Azimuth returns the horizontal angle around the Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// Elevation returns the vertical angle from the horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32
}
