// Package simdriver provides a device.Driver that needs no hardware. Visible glasses, their poses
// and IPD come from a PoseSource: a synthetic orbit around the board or a recorded CBOR stream.
// A Recorder wraps any driver to capture such a stream.
package simdriver

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

type simGlasses struct {
	id       string
	reserved bool
	wand     bool
	graphics bool
	frames   uint64
	last     device.FrameInfo
}

// Driver is a simulated device.Driver. Safe for concurrent use.
type Driver struct {
	mu sync.Mutex

	visible []string
	ipd     float32
	board   device.GameboardType
	source  PoseSource
	now     func() time.Time

	contextOpen bool
	start       time.Time
	nextHandle  device.GlassesHandle
	glasses     map[device.GlassesHandle]*simGlasses
	frames      map[string]uint64
}

var _ device.Driver = &Driver{}

// NewDriver creates a simulated driver. Without options it lists one pair of glasses orbiting
// an LE board.
//
// Parameters:
//   - options: variadic list of DriverBuilderOption functions to configure the driver
//
// Returns:
//   - *Driver: the driver
func NewDriver(options ...DriverBuilderOption) *Driver {
	d := &Driver{
		visible: []string{"SIM-0001"},
		ipd:     device.DefaultIPD,
		board:   device.GameboardLE,
		now:     time.Now,
		glasses: make(map[device.GlassesHandle]*simGlasses),
		frames:  make(map[string]uint64),
	}
	for _, option := range options {
		option(d)
	}
	if d.source == nil {
		d.source = Orbit{Radius: 0.6, Height: 0.45, Period: 20 * time.Second, Board: d.board}
	}
	return d
}

// SetVisible replaces the identifiers reported by ListGlasses. Connected glasses that are no
// longer visible report ResultDeviceLost for pose queries.
//
// Parameters:
//   - ids: the visible identifiers
func (d *Driver) SetVisible(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = append([]string(nil), ids...)
}

// Frames returns the number of frames submitted for id since the driver was created.
//
// Parameters:
//   - id: the glasses identifier
//
// Returns:
//   - uint64: the frame count
func (d *Driver) Frames(id string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[id]
}

// LastFrame returns the most recent frame submitted to live glasses with the given identifier.
//
// Parameters:
//   - id: the glasses identifier
//
// Returns:
//   - device.FrameInfo: the frame
//   - bool: false if no live glasses with id have received a frame
func (d *Driver) LastFrame(id string) (device.FrameInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.glasses {
		if g.id == id && g.frames > 0 {
			return g.last, true
		}
	}
	return device.FrameInfo{}, false
}

func (d *Driver) isVisible(id string) bool {
	for _, v := range d.visible {
		if v == id {
			return true
		}
	}
	return false
}

func (d *Driver) CreateContext(appID, appVersion string) (device.ContextHandle, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !device.ValidIdentifier(appID) || !device.ValidIdentifier(appVersion) {
		return 0, device.ResultInvalidArgs
	}
	d.contextOpen = true
	d.start = d.now()
	return 1, device.ResultSuccess
}

func (d *Driver) DestroyContext(ctx device.ContextHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contextOpen = false
}

func (d *Driver) ListGlasses(ctx device.ContextHandle) ([]string, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.contextOpen {
		return nil, device.ResultNoContext
	}
	return device.ParseGlassesList(device.FormatGlassesList(d.visible)), device.ResultSuccess
}

func (d *Driver) CreateGlasses(ctx device.ContextHandle, id string) (device.GlassesHandle, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.contextOpen {
		return 0, device.ResultNoContext
	}
	if !d.isVisible(id) {
		return 0, device.ResultNotConnected
	}
	d.nextHandle++
	d.glasses[d.nextHandle] = &simGlasses{id: id}
	return d.nextHandle, device.ResultSuccess
}

func (d *Driver) ReserveGlasses(g device.GlassesHandle, displayName string) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	for h, other := range d.glasses {
		if h != g && other.id == sg.id && other.reserved {
			return device.ResultUnavailable
		}
	}
	sg.reserved = true
	return device.ResultSuccess
}

func (d *Driver) ReleaseGlasses(g device.GlassesHandle) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	sg.reserved = false
	return device.ResultSuccess
}

func (d *Driver) DestroyGlasses(g device.GlassesHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.glasses, g)
}

func (d *Driver) ConfigureWandStream(g device.GlassesHandle, enabled bool) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	sg.wand = enabled
	return device.ResultSuccess
}

func (d *Driver) GameboardSize(ctx device.ContextHandle, board device.GameboardType) (device.GameboardSize, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.contextOpen {
		return device.GameboardSize{}, device.ResultNoContext
	}
	switch board {
	case device.GameboardNone:
		return device.GameboardSize{}, device.ResultSuccess
	case device.GameboardLE:
		return device.GameboardSize{PositiveX: 0.35, NegativeX: 0.35, PositiveY: 0.35, NegativeY: 0.35}, device.ResultSuccess
	case device.GameboardXE:
		return device.GameboardSize{PositiveX: 0.35, NegativeX: 0.35, PositiveY: 0.61, NegativeY: 0.35}, device.ResultSuccess
	case device.GameboardXERaised:
		return device.GameboardSize{PositiveX: 0.35, NegativeX: 0.35, PositiveY: 0.61, NegativeY: 0.35, PositiveZ: 0.2}, device.ResultSuccess
	default:
		return device.GameboardSize{}, device.ResultInvalidArgs
	}
}

func (d *Driver) GlassesPose(g device.GlassesHandle) (device.NativePose, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return device.NativePose{}, device.ResultInvalidArgs
	}
	if !d.isVisible(sg.id) {
		return device.NativePose{}, device.ResultDeviceLost
	}
	pose, _, ok := d.source.Pose(sg.id, d.now().Sub(d.start))
	if !ok {
		return device.NativePose{}, device.ResultTryAgain
	}
	return pose, device.ResultSuccess
}

func (d *Driver) GlassesIPD(g device.GlassesHandle) (float32, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return 0, device.ResultInvalidArgs
	}
	if _, ipd, ok := d.source.Pose(sg.id, d.now().Sub(d.start)); ok && ipd > 0 {
		return ipd, device.ResultSuccess
	}
	return d.ipd, device.ResultSuccess
}

func (d *Driver) InitGraphicsContext(g device.GlassesHandle, api device.GraphicsAPI, handle uintptr) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	// Only host memory textures can be resolved without a real graphics device.
	if api != device.GraphicsAPINone {
		return device.ResultInvalidArgs
	}
	sg.graphics = true
	return device.ResultSuccess
}

func (d *Driver) SendFrame(g device.GlassesHandle, frame *device.FrameInfo) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	sg, ok := d.glasses[g]
	if !ok || frame == nil {
		return device.ResultInvalidArgs
	}
	if !sg.graphics || !sg.reserved {
		return device.ResultNotConnected
	}
	if frame.LeftTexture == 0 || frame.RightTexture == 0 || frame.Width == 0 || frame.Height == 0 {
		return device.ResultInvalidArgs
	}
	sg.frames++
	sg.last = *frame
	d.frames[sg.id]++
	return device.ResultSuccess
}
