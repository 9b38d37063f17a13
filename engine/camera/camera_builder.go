package camera

import (
	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
)

type CameraBuilderOption func(*cameraImpl)

// WithUp sets the camera's up vector for controller-driven views.
//
// Parameters:
//   - up: the up vector
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(up common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = up
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClip sets the near and far clipping plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the clip planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithController attaches a controller to the camera.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: functional option to set the controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

// WithMount attaches the camera to a scene node.
//
// Parameters:
//   - n: the node whose world transform places the camera
//
// Returns:
//   - CameraBuilderOption: functional option to set the mount
func WithMount(n node.Node) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.mount = n
	}
}

// WithTarget makes the camera render into t and adopts its aspect ratio.
//
// Parameters:
//   - t: the render target
//
// Returns:
//   - CameraBuilderOption: functional option to set the render target
func WithTarget(t gpu.RenderTarget) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.target = t
		if t != nil && t.Height() > 0 {
			c.aspect = float32(t.Width()) / float32(t.Height())
		}
	}
}
