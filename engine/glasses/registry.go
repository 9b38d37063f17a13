package glasses

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/bridge"
	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
	"github.com/Carmen-Shannon/oxy-t5/engine/spatial"
)

// Status is the host's read-only view of one pair of glasses.
type Status struct {
	ID         string
	State      State
	HasTargets bool
	PoseTick   uint64
	Transform  common.Transform
	IPD        float32
}

// Registry is the simulation-side view of the glasses. Commands and Update are called from the
// simulation goroutine; DrawEyes is called from the render goroutine. Safe for concurrent use. The
// registry lock is never held across GPU work, so neither goroutine waits on the other's draws or
// allocations.
type Registry interface {
	// Refresh asks the render side for the current list of visible glasses.
	Refresh()

	// Connect asks the render side to connect id. Ignored while id is already connecting, connected
	// or disconnecting.
	//
	// Parameters:
	//   - id: the glasses identifier
	Connect(id string)

	// Disconnect asks the render side to disconnect id. Ignored unless id is connecting or connected.
	//
	// Parameters:
	//   - id: the glasses identifier
	Disconnect(id string)

	// QueryGameboard asks the render side for the size of a board type. The board node is resized
	// when the answer arrives.
	//
	// Parameters:
	//   - board: the board type
	QueryGameboard(board device.GameboardType)

	// SetAutoConnect replaces the identifiers connected as soon as a refresh lists them.
	//
	// Parameters:
	//   - ids: the identifiers
	SetAutoConnect(ids []string)

	// Update applies every pending event: it tracks the list, spawns and despawns nodes, allocates
	// eye targets for newly connected glasses and moves glasses nodes to their latest pose. A failed
	// target allocation is retried on the next Update.
	//
	// Parameters:
	//   - tick: the simulation tick number
	Update(tick uint64)

	// Glasses returns the status of every known pair of glasses, sorted by identifier.
	//
	// Returns:
	//   - []Status: the statuses
	Glasses() []Status

	// Status returns the status of id.
	//
	// Parameters:
	//   - id: the glasses identifier
	//
	// Returns:
	//   - Status: the status
	//   - bool: false if id is unknown
	Status(id string) (Status, bool)

	// Board returns the board anchor node. Glasses nodes are its children.
	//
	// Returns:
	//   - node.Node: the board node
	Board() node.Node

	// GameboardSize returns the last reported board size.
	//
	// Returns:
	//   - device.GameboardSize: the size
	//   - bool: false if no size has been reported
	GameboardSize() (device.GameboardSize, bool)

	// EyeCameras returns the eye cameras of every connected pair of glasses with targets.
	//
	// Returns:
	//   - []camera.Camera: the cameras, left before right, ordered by identifier
	EyeCameras() []camera.Camera

	// DrawEyes renders instances through every eye camera into its target. Targets of disconnected
	// glasses are released here so GPU resources are only freed on the render goroutine.
	//
	// Parameters:
	//   - dev: the GPU device that owns the targets
	//   - instances: the boxes to draw
	DrawEyes(dev gpu.Device, instances []gpu.Instance)

	// Close releases every render target still held.
	Close()
}

var boardColor = [4]float32{0.15, 0.15, 0.18, 1}

type entry struct {
	id       string
	state    State
	listed   bool
	glasses  node.Node
	eyes     [2]node.Node
	cameras  [2]camera.Camera
	targets  [2]gpu.RenderTarget
	failures int
	poseTick uint64
	pose     common.Transform
	ipd      float32
}

type registry struct {
	mu *sync.RWMutex

	endpoint bridge.MainEndpoint
	graph    node.Graph
	device   gpu.Device

	width        uint32
	height       uint32
	fov          float32
	defaultIPD   float32
	refreshEvery uint64
	autoConnect  map[string]bool
	glassesColor [4]float32

	board     node.Node
	surface   node.Node
	boardSize *device.GameboardSize
	entries   map[string]*entry
	release   []gpu.RenderTarget
	closed    bool
}

var _ Registry = &registry{}

// NewRegistry creates a registry and spawns the board node under the graph root.
//
// Parameters:
//   - endpoint: the simulation side of the bridge
//   - graph: the node graph glasses nodes are spawned into
//   - dev: allocates the eye render targets
//   - options: variadic list of RegistryBuilderOption functions to configure the registry
//
// Returns:
//   - Registry: the registry
func NewRegistry(endpoint bridge.MainEndpoint, graph node.Graph, dev gpu.Device, options ...RegistryBuilderOption) Registry {
	if graph == nil || dev == nil {
		panic("glasses: NewRegistry requires a node graph and a GPU device")
	}
	r := &registry{
		mu:           &sync.RWMutex{},
		endpoint:     endpoint,
		graph:        graph,
		device:       dev,
		width:        device.DefaultTextureWidth,
		height:       device.DefaultTextureHeight,
		fov:          device.DefaultFOVDegrees,
		defaultIPD:   device.DefaultIPD,
		autoConnect:  make(map[string]bool),
		glassesColor: [4]float32{0.8, 0.1, 0.2, 1},
		entries:      make(map[string]*entry),
	}
	for _, option := range options {
		option(r)
	}
	r.board = graph.Spawn("board", nil)
	r.surface = graph.Spawn("board surface", r.board,
		node.WithTransform(common.Transform{Position: common.Vec3{Y: -0.005}, Rotation: common.IdentityQuat()}),
		node.WithBox(common.Vec3{X: 0.7, Y: 0.01, Z: 0.7}, boardColor),
	)
	return r
}

func (r *registry) Refresh() {
	r.endpoint.Send(bridge.RefreshList{})
}

func (r *registry) Connect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectLocked(id)
}

func (r *registry) connectLocked(id string) {
	e := r.entries[id]
	if e == nil {
		e = &entry{id: id, state: StateListed}
		r.entries[id] = e
	}
	if e.state != StateListed {
		return
	}
	e.state = StateConnecting
	r.endpoint.Send(bridge.Connect{ID: id})
}

func (r *registry) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil || (e.state != StateConnected && e.state != StateConnecting) {
		return
	}
	e.state = StateDisconnecting
	r.endpoint.Send(bridge.Disconnect{ID: id})
}

func (r *registry) QueryGameboard(board device.GameboardType) {
	r.endpoint.Send(bridge.QueryGameboard{Board: board})
}

func (r *registry) SetAutoConnect(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoConnect = make(map[string]bool, len(ids))
	for _, id := range ids {
		r.autoConnect[id] = true
	}
	for id := range r.autoConnect {
		if e := r.entries[id]; e != nil && e.listed && e.state == StateListed {
			r.connectLocked(id)
		}
	}
}

func (r *registry) Update(tick uint64) {
	events := r.endpoint.Events()

	r.mu.Lock()
	for _, ev := range events {
		switch e := ev.(type) {
		case bridge.ListRefreshed:
			r.onListRefreshed(e.IDs)
		case bridge.Connected:
			r.onConnected(e.ID)
		case bridge.ConnectFailed:
			r.onConnectFailed(e.ID, e.Reason)
		case bridge.Disconnected:
			r.onDisconnected(e.ID)
		case bridge.PoseUpdated:
			r.onPoseUpdated(e)
		case bridge.GameboardSized:
			r.onGameboardSized(e.Size)
		default:
			common.Logger().Error("unknown glasses event", "event", ev)
		}
	}
	pending := r.needTargetsLocked()
	r.mu.Unlock()

	for _, e := range pending {
		r.attachTargets(e)
	}

	if r.refreshEvery > 0 && tick%r.refreshEvery == 0 {
		r.endpoint.Send(bridge.RefreshList{})
	}
}

func (r *registry) onListRefreshed(ids []string) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
		e := r.entries[id]
		if e == nil {
			e = &entry{id: id, state: StateListed}
			r.entries[id] = e
			common.Logger().Info("glasses found", "glasses", id)
		}
		e.listed = true
	}
	for id, e := range r.entries {
		if !seen[id] {
			e.listed = false
			if e.state == StateListed {
				delete(r.entries, id)
			}
		}
	}
	for _, id := range ids {
		if r.autoConnect[id] {
			r.connectLocked(id)
		}
	}
}

func (r *registry) onConnected(id string) {
	e := r.entries[id]
	if e == nil {
		e = &entry{id: id}
		r.entries[id] = e
	}
	// A Disconnect sent while connecting stays in effect until Disconnected arrives.
	if e.state != StateDisconnecting {
		e.state = StateConnected
	}
	if e.glasses != nil {
		return
	}

	e.ipd = r.defaultIPD
	e.glasses = r.graph.Spawn("glasses "+id, r.board, node.WithBox(
		common.Vec3{X: 0.14, Y: 0.04, Z: 0.04},
		r.glassesColor,
	))
	for i, eye := range []spatial.Eye{spatial.EyeLeft, spatial.EyeRight} {
		e.eyes[i] = r.graph.Spawn(fmt.Sprintf("%s eye %s", id, eye), r.board)
	}
	placeEyes(e, common.IdentityTransform(), common.IdentityTransform())
}

// needTargetsLocked returns the connected entries that still lack eye targets, ordered by identifier.
func (r *registry) needTargetsLocked() []*entry {
	if r.closed {
		return nil
	}
	var out []*entry
	for _, e := range r.entries {
		if e.state == StateConnected && e.glasses != nil && e.targets[0] == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// attachTargets allocates the eye targets of e without holding the registry lock, then installs
// them and hands them to the render side. Targets that are no longer wanted by then are queued for
// release.
func (r *registry) attachTargets(e *entry) {
	r.mu.RLock()
	id, eyes := e.id, e.eyes
	r.mu.RUnlock()

	targets, cameras, err := r.createTargets(id, eyes)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.closed {
		for _, t := range targets {
			t.Release()
		}
		return
	}
	if err != nil {
		e.failures++
		if e.failures == 1 {
			common.Logger().Error("allocating eye targets failed", "glasses", id, "err", err)
		} else {
			common.Logger().Debug("allocating eye targets failed again", "glasses", id, "attempts", e.failures, "err", err)
		}
		return
	}
	if r.entries[id] != e || e.state != StateConnected || e.targets[0] != nil {
		r.release = append(r.release, targets[0], targets[1])
		return
	}
	e.targets = targets
	e.cameras = cameras
	e.failures = 0
	r.endpoint.Send(bridge.SetRenderTargets{ID: id, Left: targets[0], Right: targets[1]})
}

// createTargets creates both eye targets and a camera mounted on each eye node. On failure the
// targets already created are queued for release.
func (r *registry) createTargets(id string, eyes [2]node.Node) ([2]gpu.RenderTarget, [2]camera.Camera, error) {
	var targets [2]gpu.RenderTarget
	var cameras [2]camera.Camera
	fov := r.fov * math.Pi / 180
	for i, eye := range []spatial.Eye{spatial.EyeLeft, spatial.EyeRight} {
		t, err := r.device.CreateRenderTarget(fmt.Sprintf("%s/%s", id, eye), r.width, r.height)
		if err != nil {
			if i > 0 {
				r.mu.Lock()
				r.release = append(r.release, targets[:i]...)
				r.mu.Unlock()
			}
			return [2]gpu.RenderTarget{}, [2]camera.Camera{}, err
		}
		targets[i] = t
		cameras[i] = camera.NewCamera(fmt.Sprintf("%s %s", id, eye),
			camera.WithMount(eyes[i]),
			camera.WithTarget(t),
			camera.WithFov(fov),
			camera.WithClip(0.01, 100),
		)
	}
	return targets, cameras, nil
}

func (r *registry) onConnectFailed(id, reason string) {
	common.Logger().Warn("glasses connect failed", "glasses", id, "reason", reason)
	e := r.entries[id]
	if e == nil {
		return
	}
	if !e.listed {
		delete(r.entries, id)
		return
	}
	e.state = StateListed
}

func (r *registry) onDisconnected(id string) {
	e := r.entries[id]
	if e == nil {
		return
	}
	if e.glasses != nil {
		r.graph.Despawn(e.glasses)
	}
	for _, eye := range e.eyes {
		if eye != nil {
			r.graph.Despawn(eye)
		}
	}
	for i := range e.targets {
		if e.targets[i] != nil {
			r.release = append(r.release, e.targets[i])
		}
	}
	if !e.listed {
		delete(r.entries, id)
		return
	}
	*e = entry{id: id, state: StateListed, listed: true}
}

func (r *registry) onPoseUpdated(ev bridge.PoseUpdated) {
	e := r.entries[ev.ID]
	if e == nil || e.glasses == nil {
		return
	}
	e.poseTick = ev.Tick
	e.pose = ev.Transform
	if ev.IPD > 0 {
		e.ipd = ev.IPD
	}
	e.glasses.SetLocal(ev.Transform)
	placeEyes(e, ev.Transform, ev.Raw)
}

// placeEyes moves the eye nodes to half the IPD from the glasses position along the native
// orientation's x axis. Eye nodes are board children facing the glasses' direction.
func placeEyes(e *entry, anchor, native common.Transform) {
	left, right := spatial.EyePositions(anchor.Position, native, e.ipd)
	e.eyes[0].SetLocal(common.Transform{Position: left, Rotation: anchor.Rotation})
	e.eyes[1].SetLocal(common.Transform{Position: right, Rotation: anchor.Rotation})
}

func (r *registry) onGameboardSized(size device.GameboardSize) {
	r.boardSize = &size
	if r.surface != nil {
		r.graph.Despawn(r.surface)
		r.surface = nil
	}
	width := size.PositiveX + size.NegativeX
	depth := size.PositiveY + size.NegativeY
	if width <= 0 || depth <= 0 {
		return
	}
	// Tracking +y (away from the player) is simulation -z.
	center := common.Vec3{
		X: (size.PositiveX - size.NegativeX) / 2,
		Y: -0.005,
		Z: -(size.PositiveY - size.NegativeY) / 2,
	}
	r.surface = r.graph.Spawn("board surface", r.board,
		node.WithTransform(common.Transform{Position: center, Rotation: common.IdentityQuat()}),
		node.WithBox(common.Vec3{X: width, Y: 0.01, Z: depth}, boardColor),
	)
}

func (r *registry) Glasses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Status{}, false
	}
	return e.status(), true
}

func (e *entry) status() Status {
	return Status{
		ID:         e.id,
		State:      e.state,
		HasTargets: e.targets[0] != nil,
		PoseTick:   e.poseTick,
		Transform:  e.pose,
		IPD:        e.ipd,
	}
}

func (r *registry) Board() node.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.board
}

func (r *registry) GameboardSize() (device.GameboardSize, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.boardSize == nil {
		return device.GameboardSize{}, false
	}
	return *r.boardSize, true
}

func (r *registry) EyeCameras() []camera.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eyeCamerasLocked()
}

func (r *registry) eyeCamerasLocked() []camera.Camera {
	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if e.cameras[0] != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]camera.Camera, 0, 2*len(ids))
	for _, id := range ids {
		e := r.entries[id]
		out = append(out, e.cameras[0], e.cameras[1])
	}
	return out
}

func (r *registry) DrawEyes(dev gpu.Device, instances []gpu.Instance) {
	r.mu.Lock()
	release := r.release
	r.release = nil
	cameras := r.eyeCamerasLocked()
	r.mu.Unlock()

	// Targets queued while these draws run are released by the next call on this goroutine.
	for _, t := range release {
		t.Release()
	}
	for _, cam := range cameras {
		cam.Update()
		if err := dev.DrawScene(cam.Target(), cam.ViewProjectionMatrix(), cam.Cull(instances)); err != nil {
			common.Logger().Debug("eye draw failed", "camera", cam.Name(), "err", err)
		}
	}
}

func (r *registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.entries {
		for i, t := range e.targets {
			if t != nil {
				r.release = append(r.release, t)
				e.targets[i] = nil
				e.cameras[i] = nil
			}
		}
	}
	release := r.release
	r.release = nil
	r.mu.Unlock()

	for _, t := range release {
		t.Release()
	}
}
