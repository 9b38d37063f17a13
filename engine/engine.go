// Package engine runs the fixed-rate simulation tick and the render loop on their own goroutines and
// drives the plugins registered with it. The glasses integration is one such plugin.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
	"github.com/Carmen-Shannon/oxy-t5/engine/profiler"
	"github.com/Carmen-Shannon/oxy-t5/engine/renderer"
	"github.com/Carmen-Shannon/oxy-t5/engine/window"
)

// Plugin is driven by both engine loops. Tick runs on the simulation goroutine and Render on the
// render goroutine, so the two may run concurrently.
type Plugin interface {
	// Name returns the plugin name used in logs and profiler output.
	Name() string

	// Tick runs once per simulation tick.
	//
	// Parameters:
	//   - tick: the tick number, starting at 1
	//   - dt: seconds since the previous tick
	Tick(tick uint64, dt float32)

	// Render runs once per render frame, before the desktop view is drawn.
	//
	// Parameters:
	//   - frame: the frame number, starting at 1
	//   - dt: seconds since the previous frame
	Render(frame uint64, dt float32)

	// Close releases the plugin's resources. Called once after both loops have stopped.
	//
	// Returns:
	//   - error: an error if teardown failed
	Close() error
}

// StatsProvider is implemented by plugins that report key/value pairs to the render profiler.
type StatsProvider interface {
	Stats() []any
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	shutdownOnce sync.Once
	shutdownErr  error

	window   window.Window
	renderer renderer.Renderer
	graph    node.Graph
	camera   camera.Camera

	mu      sync.Mutex
	plugins []Plugin

	tickProfiler     *profiler.Profiler
	renderProfiler   *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(tick uint64, deltaTime float32)
	renderCallback func(frame uint64, deltaTime float32)

	ticks  atomic.Uint64
	frames atomic.Uint64

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It orchestrates the engine loop, render loop, and window management.
type Engine interface {
	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer, or nil when none was configured.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Graph returns the node graph drawn by the desktop view and the eye cameras.
	//
	// Returns:
	//   - node.Graph: the graph
	Graph() node.Graph

	// Camera returns the desktop viewer camera, or nil.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// AddPlugin registers a plugin. Plugins run in registration order on both loops and are closed
	// in reverse order when Run returns.
	//
	// Parameters:
	//   - p: the plugin
	AddPlugin(p Plugin)

	// Plugins returns the registered plugins in registration order.
	//
	// Returns:
	//   - []Plugin: the plugins
	Plugins() []Plugin

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for simulation updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick after the plugins.
	//
	// Parameters:
	//   - callback: function receiving the tick number and the delta time in seconds
	SetTickCallback(callback func(tick uint64, deltaTime float32))

	// SetRenderCallback registers the function called each render frame after the desktop view is drawn.
	//
	// Parameters:
	//   - callback: function receiving the frame number and the delta time in seconds
	SetRenderCallback(callback func(frame uint64, deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Ticks returns the number of completed simulation ticks.
	Ticks() uint64

	// Frames returns the number of completed render frames.
	Frames() uint64

	// Run starts both loops and blocks until the window closes or Quit is called. Before returning it
	// closes the plugins in reverse order, releases the renderer and closes the window.
	//
	// Returns:
	//   - error: the joined plugin close errors
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, plugins, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		wg:              sync.WaitGroup{},
		tickProfiler:    profiler.NewProfiler("tick"),
		renderProfiler:  profiler.NewProfiler("render"),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.graph == nil {
		e.graph = node.NewGraph()
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
			if e.camera != nil && height > 0 {
				e.camera.SetAspect(float32(width) / float32(height))
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Graph() node.Graph {
	return e.graph
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) AddPlugin(p Plugin) {
	if p == nil {
		panic("engine: AddPlugin requires a plugin")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plugins = append(e.plugins, p)
	if sp, ok := p.(StatsProvider); ok {
		e.renderProfiler.AddSource(p.Name(), sp.Stats)
	}
	common.Logger().Info("plugin added", "plugin", p.Name())
}

func (e *engine) Plugins() []Plugin {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Plugin(nil), e.plugins...)
}

func (e *engine) Ticks() uint64 {
	return e.ticks.Load()
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Run() error {
	e.running.Store(true)
	e.handle()
	if e.window == nil {
		<-e.quitChannel
		return e.shutdown()
	}

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.shutdown()
		default:
		}
	})
	e.window.ProcessMessages()
	e.signalQuit()
	return e.shutdown()
}

// shutdown waits for both loops, closes the plugins, releases the renderer and closes the window.
// It runs on the goroutine that called Run.
func (e *engine) shutdown() error {
	e.shutdownOnce.Do(func() {
		e.wg.Wait()
		e.shutdownErr = e.closePlugins()
		if e.renderer != nil {
			e.renderer.Release()
		}
		if e.window != nil {
			if err := e.window.Close(); err != nil {
				common.Logger().Debug("window close", "err", err)
			}
		}
	})
	return e.shutdownErr
}

// closePlugins closes every plugin in reverse registration order.
func (e *engine) closePlugins() error {
	plugins := e.Plugins()
	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Close(); err != nil {
			common.Logger().Error("plugin close failed", "plugin", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Ticks every plugin, then the tick callback, and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			tick := e.ticks.Add(1)
			for _, p := range e.Plugins() {
				p.Tick(tick, dt)
			}
			if e.tickCallback != nil {
				e.tickCallback(tick, dt)
			}

			if e.profilingEnabled.Load() {
				e.tickProfiler.Tick()
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each frame renders every plugin (eye views, readback, submission) and then the desktop view.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			frame := e.frames.Add(1)
			for _, p := range e.Plugins() {
				p.Render(frame, dt)
			}

			e.drawDesktop()

			if e.renderCallback != nil {
				e.renderCallback(frame, dt)
			}

			if e.profilingEnabled.Load() {
				e.renderProfiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// drawDesktop draws the node graph from the viewer camera into the window surface.
func (e *engine) drawDesktop() {
	if e.renderer == nil || e.camera == nil || !e.renderer.HasSurface() {
		return
	}
	e.camera.Update()
	instances := e.camera.Cull(e.graph.Instances())
	if err := e.renderer.DrawToSurface(e.camera.ViewProjectionMatrix(), instances); err != nil {
		common.Logger().Debug("desktop frame skipped", "err", err)
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// tickInterval converts a rate in ticks per second to a ticker period. Rates <= 0 mean 60.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(tick uint64, deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(frame uint64, deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
