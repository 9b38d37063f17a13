package renderer

import (
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	clearColor           [4]float64
}

// Renderer is the engine's GPU renderer. It implements gpu.Device for the glasses integration
// (off-screen eye targets, readback buffers, copies and maps) and, when created with a window,
// draws the desktop view to the window surface.
type Renderer interface {
	gpu.Device

	// HasSurface reports whether the renderer presents to a window.
	//
	// Returns:
	//   - bool: true if a window surface is configured
	HasSurface() bool

	// Resize configures the window surface for a new size. No-op without a surface.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required after
	// changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// DrawToSurface acquires the next surface image, draws instances into it and presents it.
	//
	// Parameters:
	//   - viewProj: the column-major view-projection matrix
	//   - instances: the boxes to draw
	//
	// Returns:
	//   - error: an error if no surface is configured or the image could not be acquired
	DrawToSurface(viewProj [16]float32, instances []gpu.Instance) error

	// Release frees the device and every renderer-owned GPU object.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend. win may be nil for a headless
// renderer that only draws into off-screen targets.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - win: the window to present to, or nil
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		backendType: backendType,
		clearColor:  [4]float64{0.05, 0.05, 0.08, 1.0},
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(win, r.forceFallbackAdapter, r.clearColor)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if win != nil {
		r.backend.ConfigureSurface(win.Width(), win.Height())
	}
	return r
}

func (r *renderer) CreateRenderTarget(label string, width, height uint32) (gpu.RenderTarget, error) {
	return r.backend.CreateRenderTarget(label, width, height)
}

func (r *renderer) CreateReadbackBuffer(label string, size uint64) (gpu.ReadbackBuffer, error) {
	return r.backend.CreateReadbackBuffer(label, size)
}

func (r *renderer) CopyToBuffers(copies ...gpu.Copy) error {
	return r.backend.CopyToBuffers(copies...)
}

func (r *renderer) DrawScene(target gpu.RenderTarget, viewProj [16]float32, instances []gpu.Instance) error {
	return r.backend.DrawScene(target, viewProj, instances)
}

func (r *renderer) Poll(wait bool) {
	r.backend.Poll(wait)
}

func (r *renderer) HasSurface() bool {
	return r.backend.HasSurface()
}

func (r *renderer) Resize(width, height int) {
	if !r.backend.HasSurface() || width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) DrawToSurface(viewProj [16]float32, instances []gpu.Instance) error {
	return r.backend.DrawToSurface(viewProj, instances)
}

func (r *renderer) Release() {
	r.backend.Release()
}
