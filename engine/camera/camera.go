package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
)

type cameraImpl struct {
	mu *sync.Mutex

	name string
	up   common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
	frustum              common.Frustum
	position             common.Vec3

	mount      node.Node
	controller CameraController
	target     gpu.RenderTarget
}

// Camera holds perspective settings and computes view/projection matrices each frame via Update().
// The view comes from a mount node when one is attached (eye cameras), otherwise from a CameraController
// (the desktop viewer). A camera with a render target draws into it instead of the window surface.
type Camera interface {
	// Name returns the camera's name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Position returns the world-space eye position computed by the last Update.
	//
	// Returns:
	//   - common.Vec3: the camera position
	Position() common.Vec3

	// ViewMatrix returns the current 4x4 view matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// Frustum returns the culling frustum for the current view-projection matrix.
	//
	// Returns:
	//   - common.Frustum: the frustum
	Frustum() common.Frustum

	// Cull returns the instances whose bounding spheres intersect the frustum.
	//
	// Parameters:
	//   - instances: the candidate instances
	//
	// Returns:
	//   - []gpu.Instance: the visible subset, in input order
	Cull(instances []gpu.Instance) []gpu.Instance

	// Mount returns the node the camera follows, or nil.
	//
	// Returns:
	//   - node.Node: the mount node
	Mount() node.Node

	// SetMount attaches the camera to a node. The view matrix becomes the inverse of the node's world transform.
	//
	// Parameters:
	//   - n: the node to follow, or nil to detach
	SetMount(n node.Node)

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// SetController attaches a CameraController. It is used only when no mount is attached.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Target returns the render target the camera draws into, or nil for the window surface.
	//
	// Returns:
	//   - gpu.RenderTarget: the render target or nil
	Target() gpu.RenderTarget

	// SetTarget sets the render target and adopts its aspect ratio.
	//
	// Parameters:
	//   - t: the render target, or nil for the window surface
	SetTarget(t gpu.RenderTarget)

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// Update reads the mount or controller and recomputes matrices.
	// Does nothing when neither is attached.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - name: the camera name
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(name string, options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		name:   name,
		up:     common.AxisY,
		fov:    45.0 * (math.Pi / 180.0),
		aspect: 1.0,
		near:   0.05,
		far:    100.0,
	}
	common.Identity(c.viewMatrix[:])
	common.Identity(c.projectionMatrix[:])
	common.Identity(c.viewProjectionMatrix[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Name() string {
	return c.name
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) Cull(instances []gpu.Instance) []gpu.Instance {
	f := c.Frustum()
	out := make([]gpu.Instance, 0, len(instances))
	for _, inst := range instances {
		center, radius := boundingSphere(inst.Model)
		if f.ContainsSphere(center, radius) {
			out = append(out, inst)
		}
	}
	return out
}

// boundingSphere bounds a unit cube transformed by model.
func boundingSphere(model [16]float32) (common.Vec3, float32) {
	center := common.Vec3{X: model[12], Y: model[13], Z: model[14]}
	var r float32
	for col := 0; col < 3; col++ {
		axis := common.Vec3{X: model[col*4], Y: model[col*4+1], Z: model[col*4+2]}
		if l := axis.Length(); l > r {
			r = l
		}
	}
	// Half-extent 0.5 on each axis; sqrt(3)/2 covers the corners.
	return center, r * 0.8661
}

func (c *cameraImpl) Mount() node.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mount
}

func (c *cameraImpl) SetMount(n node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mount = n
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) Target() gpu.RenderTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) SetTarget(t gpu.RenderTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
	if t != nil && t.Height() > 0 {
		c.aspect = float32(t.Width()) / float32(t.Height())
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mount == nil && c.controller == nil {
		return
	}
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices and the frustum.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	switch {
	case c.mount != nil:
		world := c.mount.World()
		common.TransformMatrix(c.viewMatrix[:], world.Inverse())
		c.position = world.Position
	case c.controller != nil:
		c.position = c.controller.Position()
		common.LookAt(c.viewMatrix[:], c.position, c.controller.Target(), c.up)
	}

	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}
