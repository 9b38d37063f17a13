package glasses

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/bridge"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
	"github.com/Carmen-Shannon/oxy-t5/engine/readback"
)

// Plugin runs the glasses integration inside an engine: the Registry on the simulation tick and the
// Manager on the render frame.
type Plugin struct {
	bridge   *bridge.Bridge
	registry Registry
	manager  Manager
	pipeline readback.Pipeline
	session  device.Session
	device   gpu.Device
	graph    node.Graph
	config   pluginConfig
}

type pluginConfig struct {
	appID          string
	appVersion     string
	sessionOptions []device.SessionBuilderOption
	width          uint32
	height         uint32
	fov            float32
	ipd            float32
	mapTimeout     time.Duration
	board          device.GameboardType
	autoConnect    []string
	refreshEvery   uint64
	graphics       func() device.GraphicsContext
}

// NewPlugin opens the device session and builds both sides of the integration. The plugin is not
// created when the session cannot be opened.
//
// Parameters:
//   - driver: the native or simulated driver
//   - dev: the GPU device eye targets are rendered on
//   - graph: the node graph glasses nodes are spawned into
//   - options: variadic list of PluginBuilderOption functions to configure the plugin
//
// Returns:
//   - *Plugin: the plugin
//   - error: an error wrapping the session failure
func NewPlugin(driver device.Driver, dev gpu.Device, graph node.Graph, options ...PluginBuilderOption) (*Plugin, error) {
	cfg := pluginConfig{
		appID:      "oxy-t5",
		appVersion: "1",
		width:      device.DefaultTextureWidth,
		height:     device.DefaultTextureHeight,
		fov:        device.DefaultFOVDegrees,
		ipd:        device.DefaultIPD,
		mapTimeout: readback.DefaultMapTimeout,
		board:      device.GameboardLE,
	}
	for _, option := range options {
		option(&cfg)
	}
	if dev == nil || graph == nil {
		return nil, errors.New("glasses plugin requires a GPU device and a node graph")
	}

	session, err := device.Open(driver, cfg.appID, cfg.appVersion, cfg.sessionOptions...)
	if err != nil {
		return nil, fmt.Errorf("glasses plugin disabled: %w", err)
	}

	b := bridge.New()
	pipeline := readback.NewPipeline(dev, readback.WithMapTimeout(cfg.mapTimeout))
	p := &Plugin{
		bridge:   b,
		pipeline: pipeline,
		session:  session,
		device:   dev,
		graph:    graph,
		config:   cfg,
		manager: NewManager(session, b.Render(), pipeline,
			WithGraphicsFactory(cfg.graphics),
			WithFrameFOV(cfg.fov),
			WithFallbackIPD(cfg.ipd),
		),
		registry: NewRegistry(b.Main(), graph, dev,
			WithTargetSize(cfg.width, cfg.height),
			WithEyeFOV(cfg.fov),
			WithEyeIPD(cfg.ipd),
			WithRefreshEvery(cfg.refreshEvery),
			WithAutoConnect(cfg.autoConnect...),
		),
	}
	p.registry.QueryGameboard(cfg.board)
	p.registry.Refresh()
	return p, nil
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "glasses"
}

// Registry returns the host's view of the glasses.
func (p *Plugin) Registry() Registry {
	return p.registry
}

// Manager returns the render-side lifecycle manager.
func (p *Plugin) Manager() Manager {
	return p.manager
}

// Tick applies pending events on the simulation goroutine.
//
// Parameters:
//   - tick: the simulation tick number
//   - dt: the time since the previous tick in seconds
func (p *Plugin) Tick(tick uint64, dt float32) {
	p.registry.Update(tick)
}

// Render runs one render frame: commands and poses, eye rendering, then readback and submission.
//
// Parameters:
//   - frame: the render frame number
//   - dt: the time since the previous frame in seconds
func (p *Plugin) Render(frame uint64, dt float32) {
	p.manager.Update(frame)
	p.registry.DrawEyes(p.device, p.graph.Instances())
	p.manager.Submit(frame)
}

// Stats returns key/value pairs for the profiler.
func (p *Plugin) Stats() []any {
	ms := p.manager.Stats()
	ss := p.session.Stats()
	rs := p.pipeline.Stats()
	return []any{
		"connected", ms.Connected,
		"frames_sent", ss.FramesSent,
		"frames_failed", ss.FramesFailed,
		"readback_completed", rs.Completed,
		"dropped_timeout", rs.DroppedTimeout,
		"dropped_error", rs.DroppedError,
		"pose_failures", ms.PoseFailures,
		"stale_poses", ms.StalePoses,
	}
}

// Close releases every pair of glasses, closes the session and frees the eye targets. Call it after
// both engine loops have stopped.
//
// Returns:
//   - error: the joined release errors
func (p *Plugin) Close() error {
	err := p.manager.Close()
	p.registry.Close()
	return err
}
