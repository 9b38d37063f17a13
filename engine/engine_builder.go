package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
	"github.com/Carmen-Shannon/oxy-t5/engine/renderer"
	"github.com/Carmen-Shannon/oxy-t5/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfileInterval sets how often both loop profilers log a report.
//
// Parameters:
//   - d: the report interval (default 5s)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfileInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.tickProfiler.SetInterval(d)
		e.renderProfiler.SetInterval(d)
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets the window the engine runs the message loop of. Without a window the engine runs
// headless and Run blocks until Quit.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer used for the desktop view.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithGraph sets the node graph. A new empty graph is created when none is given.
//
// Parameters:
//   - g: the node graph
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGraph(g node.Graph) EngineBuilderOption {
	return func(e *engine) {
		e.graph = g
	}
}

// WithCamera sets the desktop viewer camera.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithPlugin registers a plugin during engine construction.
//
// Parameters:
//   - p: the plugin
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPlugin(p Plugin) EngineBuilderOption {
	return func(e *engine) {
		e.AddPlugin(p)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}
