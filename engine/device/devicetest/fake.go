// Package devicetest provides a scripted in-memory device.Driver for tests.
package devicetest

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

// Operation names used by Fail, NoService and Calls.
const (
	OpCreateContext  = "CreateContext"
	OpDestroyContext = "DestroyContext"
	OpList           = "ListGlasses"
	OpCreate         = "CreateGlasses"
	OpReserve        = "ReserveGlasses"
	OpRelease        = "ReleaseGlasses"
	OpDestroy        = "DestroyGlasses"
	OpWand           = "ConfigureWandStream"
	OpGameboard      = "GameboardSize"
	OpPose           = "GlassesPose"
	OpIPD            = "GlassesIPD"
	OpInitGraphics   = "InitGraphicsContext"
	OpSendFrame      = "SendFrame"
)

// Call records one driver invocation.
type Call struct {
	Op string
	ID string
}

type fakeGlasses struct {
	id       string
	reserved bool
	wand     bool
	graphics bool
}

// Driver is a fake device.Driver. Visible glasses, poses and failures are scripted by the test.
// The zero value is not usable; call NewDriver.
//
// Driver is safe for concurrent use by multiple goroutines.
type Driver struct {
	mu sync.Mutex

	visible   []string
	poses     map[string]device.NativePose
	ipds      map[string]float32
	noService map[string]int
	failures  map[string]device.Result
	calls     []Call
	frames    map[string][]device.FrameInfo

	contextOpen bool
	nextHandle  device.GlassesHandle
	glasses     map[device.GlassesHandle]*fakeGlasses
}

var _ device.Driver = &Driver{}

// NewDriver returns a driver that lists the given identifiers. Every identifier reports an identity
// pose one meter above the board and a 64mm IPD until overridden.
func NewDriver(visible ...string) *Driver {
	return &Driver{
		visible:   append([]string(nil), visible...),
		poses:     make(map[string]device.NativePose),
		ipds:      make(map[string]float32),
		noService: make(map[string]int),
		failures:  make(map[string]device.Result),
		frames:    make(map[string][]device.FrameInfo),
		glasses:   make(map[device.GlassesHandle]*fakeGlasses),
	}
}

// SetVisible replaces the list of visible identifiers.
func (d *Driver) SetVisible(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = append([]string(nil), ids...)
}

// SetPose scripts the pose reported for id.
func (d *Driver) SetPose(id string, pose device.NativePose) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.poses[id] = pose
}

// SetIPD scripts the IPD reported for id.
func (d *Driver) SetIPD(id string, ipd float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ipds[id] = ipd
}

// NoService makes the next n calls of op return ResultNoService.
func (d *Driver) NoService(op string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noService[op] = n
}

// Fail makes every call of op return res until cleared with ResultSuccess.
func (d *Driver) Fail(op string, res device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res == device.ResultSuccess {
		delete(d.failures, op)
		return
	}
	d.failures[op] = res
}

// Calls returns a copy of the recorded calls in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallCount returns how many times op was invoked.
func (d *Driver) CallCount(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Frames returns a copy of the frames submitted for id.
func (d *Driver) Frames(id string) []device.FrameInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.FrameInfo(nil), d.frames[id]...)
}

// ContextOpen reports whether a context exists.
func (d *Driver) ContextOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contextOpen
}

// Handles returns the number of live glasses handles.
func (d *Driver) Handles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.glasses)
}

// Reserved reports whether id has a reserved live handle.
func (d *Driver) Reserved(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.glasses {
		if g.id == id && g.reserved {
			return true
		}
	}
	return false
}

// WandStreaming reports whether id has wand streaming enabled.
func (d *Driver) WandStreaming(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.glasses {
		if g.id == id && g.wand {
			return true
		}
	}
	return false
}

// enter records the call and returns the scripted result for op, if any. Callers hold d.mu.
func (d *Driver) enter(op, id string) (device.Result, bool) {
	d.calls = append(d.calls, Call{Op: op, ID: id})
	if n := d.noService[op]; n > 0 {
		d.noService[op] = n - 1
		return device.ResultNoService, true
	}
	if res, ok := d.failures[op]; ok {
		return res, true
	}
	return device.ResultSuccess, false
}

func (d *Driver) idOf(g device.GlassesHandle) string {
	if fg, ok := d.glasses[g]; ok {
		return fg.id
	}
	return ""
}

func (d *Driver) CreateContext(appID, appVersion string) (device.ContextHandle, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpCreateContext, appID); ok {
		return 0, res
	}
	d.contextOpen = true
	return 1, device.ResultSuccess
}

func (d *Driver) DestroyContext(ctx device.ContextHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpDestroyContext})
	d.contextOpen = false
}

func (d *Driver) ListGlasses(ctx device.ContextHandle) ([]string, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpList, ""); ok {
		return nil, res
	}
	if !d.contextOpen {
		return nil, device.ResultNoContext
	}
	// Round-trip through the wire format so parsing is exercised.
	return device.ParseGlassesList(device.FormatGlassesList(d.visible)), device.ResultSuccess
}

func (d *Driver) CreateGlasses(ctx device.ContextHandle, id string) (device.GlassesHandle, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpCreate, id); ok {
		return 0, res
	}
	found := false
	for _, v := range d.visible {
		if v == id {
			found = true
		}
	}
	if !found {
		return 0, device.ResultNotConnected
	}
	d.nextHandle++
	d.glasses[d.nextHandle] = &fakeGlasses{id: id}
	return d.nextHandle, device.ResultSuccess
}

func (d *Driver) ReserveGlasses(g device.GlassesHandle, displayName string) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpReserve, d.idOf(g)); ok {
		return res
	}
	fg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	fg.reserved = true
	return device.ResultSuccess
}

func (d *Driver) ReleaseGlasses(g device.GlassesHandle) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpRelease, d.idOf(g)); ok {
		return res
	}
	fg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	fg.reserved = false
	return device.ResultSuccess
}

func (d *Driver) DestroyGlasses(g device.GlassesHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpDestroy, ID: d.idOf(g)})
	delete(d.glasses, g)
}

func (d *Driver) ConfigureWandStream(g device.GlassesHandle, enabled bool) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpWand, d.idOf(g)); ok {
		return res
	}
	fg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	fg.wand = enabled
	return device.ResultSuccess
}

func (d *Driver) GameboardSize(ctx device.ContextHandle, board device.GameboardType) (device.GameboardSize, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpGameboard, board.String()); ok {
		return device.GameboardSize{}, res
	}
	switch board {
	case device.GameboardLE:
		return device.GameboardSize{PositiveX: 0.35, NegativeX: 0.35, PositiveY: 0.35, NegativeY: 0.35}, device.ResultSuccess
	case device.GameboardXE, device.GameboardXERaised:
		size := device.GameboardSize{PositiveX: 0.35, NegativeX: 0.35, PositiveY: 0.6, NegativeY: 0.35}
		if board == device.GameboardXERaised {
			size.PositiveZ = 0.25
		}
		return size, device.ResultSuccess
	default:
		return device.GameboardSize{}, device.ResultSuccess
	}
}

func (d *Driver) GlassesPose(g device.GlassesHandle) (device.NativePose, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.idOf(g)
	if res, ok := d.enter(OpPose, id); ok {
		return device.NativePose{}, res
	}
	if id == "" {
		return device.NativePose{}, device.ResultInvalidArgs
	}
	if p, ok := d.poses[id]; ok {
		return p, device.ResultSuccess
	}
	return device.NativePose{
		Position:    common.Vec3{Z: 1},
		Orientation: common.IdentityQuat(),
		Board:       device.GameboardLE,
	}, device.ResultSuccess
}

func (d *Driver) GlassesIPD(g device.GlassesHandle) (float32, device.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.idOf(g)
	if res, ok := d.enter(OpIPD, id); ok {
		return 0, res
	}
	if ipd, ok := d.ipds[id]; ok {
		return ipd, device.ResultSuccess
	}
	return device.DefaultIPD, device.ResultSuccess
}

func (d *Driver) InitGraphicsContext(g device.GlassesHandle, api device.GraphicsAPI, handle uintptr) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.enter(OpInitGraphics, d.idOf(g)); ok {
		return res
	}
	fg, ok := d.glasses[g]
	if !ok {
		return device.ResultInvalidArgs
	}
	fg.graphics = true
	return device.ResultSuccess
}

func (d *Driver) SendFrame(g device.GlassesHandle, frame *device.FrameInfo) device.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.idOf(g)
	if res, ok := d.enter(OpSendFrame, id); ok {
		return res
	}
	fg, ok := d.glasses[g]
	if !ok || !fg.graphics {
		return device.ResultInvalidArgs
	}
	d.frames[id] = append(d.frames[id], *frame)
	return device.ResultSuccess
}
