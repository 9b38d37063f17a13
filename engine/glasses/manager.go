package glasses

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/bridge"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/readback"
	"github.com/Carmen-Shannon/oxy-t5/engine/spatial"
)

// PoseSnapshot is the pose of one pair of glasses captured on a given tick.
type PoseSnapshot struct {
	Tick   uint64
	Anchor common.Transform
	Native common.Transform
	IPD    float32
}

// ManagerStats counts per-frame failures since the manager was created.
type ManagerStats struct {
	Connected      int
	PoseFailures   uint64
	UploadFailures uint64
	SubmitFailures uint64
	StalePoses     uint64
}

// Manager drives the glasses lifecycle on the render goroutine. Every method must be called from
// that goroutine.
type Manager interface {
	// Update executes every pending bridge command in send order, then captures this tick's pose of
	// every connected pair of glasses and emits PoseUpdated events.
	//
	// Parameters:
	//   - tick: the render frame number
	Update(tick uint64)

	// Submit reads back the eye targets of every connected pair of glasses that has targets and a
	// pose captured on tick, and hands the frames to the device session. Glasses whose readback
	// fails are skipped for this tick.
	//
	// Parameters:
	//   - tick: the render frame number passed to Update
	Submit(tick uint64)

	// State returns the lifecycle state of id as seen by the render side.
	//
	// Parameters:
	//   - id: the glasses identifier
	//
	// Returns:
	//   - State: the state
	//   - bool: false if the manager holds no session record for id
	State(id string) (State, bool)

	// Connected returns the identifiers with a session record, sorted.
	//
	// Returns:
	//   - []string: the identifiers
	Connected() []string

	// Pose returns the last pose captured for id.
	//
	// Parameters:
	//   - id: the glasses identifier
	//
	// Returns:
	//   - PoseSnapshot: the pose
	//   - bool: false if no pose has been captured since the glasses connected
	Pose(id string) (PoseSnapshot, bool)

	// Stats returns the failure counters.
	//
	// Returns:
	//   - ManagerStats: the counters
	Stats() ManagerStats

	// Close releases every pair of glasses, the readback buffers and the device session.
	//
	// Returns:
	//   - error: the joined release errors
	Close() error
}

// texturePair holds the native textures handed to the driver for one buffer set.
type texturePair struct {
	left  uintptr
	right uintptr
}

// record is the session record of one connected pair of glasses.
type record struct {
	id       string
	state    State
	glasses  *device.Glasses
	left     gpu.RenderTarget
	right    gpu.RenderTarget
	pose     *PoseSnapshot
	textures [2]texturePair
}

// releaseTextures frees every native texture the record still holds.
func (r *record) releaseTextures() {
	gc := r.glasses.Graphics()
	if gc == nil {
		return
	}
	for i := range r.textures {
		releasePair(gc, &r.textures[i])
	}
}

func releasePair(gc device.GraphicsContext, p *texturePair) {
	if p.left != 0 {
		gc.ReleaseTexture(p.left)
	}
	if p.right != 0 {
		gc.ReleaseTexture(p.right)
	}
	*p = texturePair{}
}

type manager struct {
	mu *sync.Mutex

	session     device.Session
	endpoint    bridge.RenderEndpoint
	pipeline    readback.Pipeline
	newGraphics func() device.GraphicsContext
	fov         float32
	defaultIPD  float32

	records map[string]*record
	closed  bool

	poseFailures   atomic.Uint64
	uploadFailures atomic.Uint64
	submitFailures atomic.Uint64
	stalePoses     atomic.Uint64
}

var _ Manager = &manager{}

// NewManager creates a manager over an open session.
//
// Parameters:
//   - session: the device session; the manager closes it in Close
//   - endpoint: the render side of the bridge
//   - pipeline: the readback pipeline; the manager closes it in Close
//   - options: variadic list of ManagerBuilderOption functions to configure the manager
//
// Returns:
//   - Manager: the manager
func NewManager(session device.Session, endpoint bridge.RenderEndpoint, pipeline readback.Pipeline, options ...ManagerBuilderOption) Manager {
	if session == nil || pipeline == nil {
		panic("glasses: NewManager requires a session and a readback pipeline")
	}
	m := &manager{
		mu:          &sync.Mutex{},
		session:     session,
		endpoint:    endpoint,
		pipeline:    pipeline,
		newGraphics: func() device.GraphicsContext { return device.NewHostGraphics() },
		fov:         device.DefaultFOVDegrees,
		defaultIPD:  device.DefaultIPD,
		records:     make(map[string]*record),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *manager) Update(tick uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for _, cmd := range m.endpoint.Commands() {
		switch c := cmd.(type) {
		case bridge.RefreshList:
			m.refresh()
		case bridge.Connect:
			m.connect(c.ID)
		case bridge.Disconnect:
			m.disconnect(c.ID)
		case bridge.SetRenderTargets:
			m.setRenderTargets(c)
		case bridge.QueryGameboard:
			m.queryGameboard(c.Board)
		default:
			common.Logger().Error("unknown glasses command", "command", cmd)
		}
	}

	for _, id := range m.sortedIDs() {
		m.updatePose(tick, m.records[id])
	}
}

func (m *manager) refresh() {
	ids, err := m.session.ListGlasses()
	if err != nil {
		common.Logger().Error("listing glasses failed", "err", err)
		return
	}
	m.endpoint.Emit(bridge.ListRefreshed{IDs: ids})
}

func (m *manager) connect(id string) {
	if rec, ok := m.records[id]; ok {
		common.Logger().Debug("duplicate connect ignored", "glasses", id, "state", rec.state)
		return
	}

	rec := &record{id: id, state: StateConnecting}
	m.records[id] = rec

	g, err := m.session.CreateGlasses(id)
	if err != nil {
		delete(m.records, id)
		common.Logger().Error("connecting glasses failed", "glasses", id, "err", err)
		m.endpoint.Emit(bridge.ConnectFailed{ID: id, Reason: err.Error()})
		return
	}
	if err := m.session.InitGraphics(g, m.newGraphics()); err != nil {
		delete(m.records, id)
		if relErr := m.session.ReleaseGlasses(g); relErr != nil {
			common.Logger().Warn("releasing glasses failed", "glasses", id, "err", relErr)
		}
		common.Logger().Error("initializing glasses graphics failed", "glasses", id, "err", err)
		m.endpoint.Emit(bridge.ConnectFailed{ID: id, Reason: err.Error()})
		return
	}

	rec.glasses = g
	rec.state = StateConnected
	common.Logger().Info("glasses connected", "glasses", id)
	m.endpoint.Emit(bridge.Connected{ID: id})
}

func (m *manager) disconnect(id string) {
	rec, ok := m.records[id]
	if !ok {
		return
	}
	rec.state = StateDisconnecting
	m.pipeline.Forget(id)
	rec.releaseTextures()
	if err := m.session.ReleaseGlasses(rec.glasses); err != nil {
		common.Logger().Warn("releasing glasses failed", "glasses", id, "err", err)
	}
	delete(m.records, id)
	common.Logger().Info("glasses disconnected", "glasses", id)
	m.endpoint.Emit(bridge.Disconnected{ID: id})
}

func (m *manager) setRenderTargets(c bridge.SetRenderTargets) {
	rec, ok := m.records[c.ID]
	if !ok || rec.state != StateConnected {
		common.Logger().Debug("render targets for unknown glasses ignored", "glasses", c.ID)
		return
	}
	if rec.left != nil {
		common.Logger().Debug("render targets already set", "glasses", c.ID)
		return
	}
	if c.Left == nil || c.Right == nil {
		common.Logger().Warn("incomplete render targets ignored", "glasses", c.ID)
		return
	}
	rec.left, rec.right = c.Left, c.Right
}

func (m *manager) queryGameboard(board device.GameboardType) {
	size, err := m.session.GameboardSize(board)
	if err != nil {
		common.Logger().Error("gameboard query failed", "board", board, "err", err)
		return
	}
	m.endpoint.Emit(bridge.GameboardSized{Board: board, Size: size})
}

func (m *manager) updatePose(tick uint64, rec *record) {
	raw, err := m.session.GetPose(rec.glasses)
	if err != nil {
		m.poseFailures.Add(1)
		common.Logger().Debug("pose skipped", "glasses", rec.id, "tick", tick, "err", err)
		return
	}

	ipd := m.defaultIPD
	if rec.pose != nil {
		ipd = rec.pose.IPD
	}
	if v, err := m.session.GetIPD(rec.glasses); err == nil && v > 0 {
		ipd = v
	}

	anchor, native := spatial.ConvertPose(raw)
	rec.pose = &PoseSnapshot{Tick: tick, Anchor: anchor, Native: native, IPD: ipd}
	m.endpoint.Emit(bridge.PoseUpdated{
		ID:        rec.id,
		Tick:      tick,
		Transform: anchor,
		IPD:       ipd,
		Raw:       native,
	})
}

func (m *manager) Submit(tick uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	var requests []readback.Request
	for _, id := range m.sortedIDs() {
		rec := m.records[id]
		if rec.state != StateConnected || rec.left == nil {
			continue
		}
		if rec.pose == nil || rec.pose.Tick != tick {
			m.stalePoses.Add(1)
			continue
		}
		requests = append(requests, readback.Request{ID: id, Left: rec.left, Right: rec.right})
	}
	if len(requests) == 0 {
		return
	}

	for _, f := range m.pipeline.Process(tick, requests) {
		if f.Err != nil {
			continue
		}
		rec, ok := m.records[f.ID]
		if !ok {
			continue
		}
		m.submitFrame(tick, rec, f)
	}
}

func (m *manager) submitFrame(tick uint64, rec *record, f readback.Frame) {
	gc := rec.glasses.Graphics()
	set := &rec.textures[tick%2]
	releasePair(gc, set)

	left, err := gc.UploadTexture(f.Width, f.Height, f.RowPitch, f.Left)
	if err != nil {
		m.uploadFailures.Add(1)
		common.Logger().Warn("eye texture upload failed", "glasses", rec.id, "err", err)
		return
	}
	right, err := gc.UploadTexture(f.Width, f.Height, f.RowPitch, f.Right)
	if err != nil {
		gc.ReleaseTexture(left)
		m.uploadFailures.Add(1)
		common.Logger().Warn("eye texture upload failed", "glasses", rec.id, "err", err)
		return
	}
	*set = texturePair{left: left, right: right}

	leftEye, rightEye := spatial.EyePoses(rec.pose.Native, rec.pose.IPD)
	frame := device.NewFrameInfo(left, right, f.Width, f.Height, m.fov, leftEye, rightEye)
	if err := m.session.SubmitFrame(rec.glasses, frame); err != nil {
		m.submitFailures.Add(1)
		common.Logger().Debug("frame submission failed", "glasses", rec.id, "tick", tick, "err", err)
	}
}

func (m *manager) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return 0, false
	}
	return rec.state, true
}

func (m *manager) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIDs()
}

func (m *manager) Pose(id string) (PoseSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.pose == nil {
		return PoseSnapshot{}, false
	}
	return *rec.pose, true
}

func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	connected := len(m.records)
	m.mu.Unlock()
	return ManagerStats{
		Connected:      connected,
		PoseFailures:   m.poseFailures.Load(),
		UploadFailures: m.uploadFailures.Load(),
		SubmitFailures: m.submitFailures.Load(),
		StalePoses:     m.stalePoses.Load(),
	}
}

func (m *manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, id := range m.sortedIDs() {
		rec := m.records[id]
		m.pipeline.Forget(id)
		rec.releaseTextures()
		if err := m.session.ReleaseGlasses(rec.glasses); err != nil {
			errs = append(errs, err)
		}
		delete(m.records, id)
	}
	m.pipeline.Close()
	if err := m.session.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// sortedIDs returns the record identifiers in order. Callers hold m.mu.
func (m *manager) sortedIDs() []string {
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
