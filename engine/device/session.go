package device

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

// processSession guards the one-session-per-process rule of the native library.
var processSession atomic.Bool

// Session owns the native context and every glasses handle created through it.
// A Session is opened once, used from a single goroutine (the render goroutine), and closed on shutdown.
type Session interface {
	// AppID returns the application identifier the session was opened with.
	//
	// Returns:
	//   - string: the application identifier
	AppID() string

	// ListGlasses returns the identifiers of the currently visible glasses.
	//
	// Returns:
	//   - []string: the identifiers, empty (not nil) when none are visible
	//   - error: an error if the driver call failed
	ListGlasses() ([]string, error)

	// CreateGlasses creates and reserves the glasses with the given identifier and enables wand streaming.
	// On failure no native handle is left behind.
	//
	// Parameters:
	//   - id: the glasses identifier from ListGlasses
	//
	// Returns:
	//   - *Glasses: the owning handle
	//   - error: ErrInvalidIdentifier, ErrGlassesInUse, ErrSessionClosed or a *ResultError
	CreateGlasses(id string) (*Glasses, error)

	// ReleaseGlasses disables wand streaming, releases the reservation and destroys the native handle.
	// Nil, already released and foreign handles are ignored.
	// The handle is unusable afterwards even if the driver reports a failure.
	//
	// Parameters:
	//   - g: the glasses to release
	//
	// Returns:
	//   - error: the driver failure, if any
	ReleaseGlasses(g *Glasses) error

	// GetPose returns the current pose of the glasses. A nearly unit orientation is renormalized.
	//
	// Parameters:
	//   - g: the glasses to query
	//
	// Returns:
	//   - NativePose: the pose in gameboard tracking space
	//   - error: an error if the handle is unusable, the driver failed, or the pose is invalid
	GetPose(g *Glasses) (NativePose, error)

	// GetIPD returns the device-reported inter-pupillary distance.
	//
	// Parameters:
	//   - g: the glasses to query
	//
	// Returns:
	//   - float32: the distance in millimeters
	//   - error: an error if the handle is unusable, the driver failed, or the value is invalid
	GetIPD(g *Glasses) (float32, error)

	// GameboardSize returns the physical size of a board type.
	//
	// Parameters:
	//   - board: the board type
	//
	// Returns:
	//   - GameboardSize: the viewable extents in meters
	//   - error: an error if the driver call failed
	GameboardSize(board GameboardType) (GameboardSize, error)

	// InitGraphics binds a graphics context to the glasses. Required before SubmitFrame.
	//
	// Parameters:
	//   - g: the glasses
	//   - gc: the graphics context whose textures will be submitted
	//
	// Returns:
	//   - error: an error if the handle is unusable or the driver failed
	InitGraphics(g *Glasses, gc GraphicsContext) error

	// SubmitFrame sends a stereo frame to the glasses. Failures are counted and returned for logging.
	//
	// Parameters:
	//   - g: the glasses
	//   - frame: the frame descriptor
	//
	// Returns:
	//   - error: an error if the handle is unusable or the driver rejected the frame
	SubmitFrame(g *Glasses, frame *FrameInfo) error

	// Live returns the identifiers of all glasses created and not yet released, sorted.
	//
	// Returns:
	//   - []string: the live identifiers
	Live() []string

	// Stats returns frame submission counters.
	//
	// Returns:
	//   - SessionStats: the counters
	Stats() SessionStats

	// Close releases every live glasses handle, then destroys the native context.
	// Subsequent calls are no-ops.
	//
	// Returns:
	//   - error: the joined release failures, if any
	Close() error
}

// SessionStats counts frame submissions.
type SessionStats struct {
	FramesSent   uint64
	FramesFailed uint64
}

// session is the implementation of the Session interface.
type session struct {
	mu *sync.Mutex

	driver     Driver
	appID      string
	appVersion string
	ctx        ContextHandle
	policy     RetryPolicy
	wandStream bool

	live   map[string]*Glasses
	closed bool

	framesSent   atomic.Uint64
	framesFailed atomic.Uint64
}

var _ Session = &session{}

// Open creates the native context. Only one session may be open per process.
// ResultNoService is retried under the context policy; malformed identifiers fail without retry.
//
// Parameters:
//   - driver: the native driver
//   - appID: the application identifier shown to the service
//   - appVersion: the application version
//   - options: variadic list of SessionBuilderOption functions to configure the session
//
// Returns:
//   - Session: the open session
//   - error: ErrDriverUnavailable, ErrInvalidIdentifier, ErrSessionOpen or a *ResultError
func Open(driver Driver, appID, appVersion string, options ...SessionBuilderOption) (Session, error) {
	if driver == nil {
		return nil, ErrDriverUnavailable
	}
	if !ValidIdentifier(appID) || !ValidIdentifier(appVersion) {
		return nil, fmt.Errorf("open session %q %q: %w", appID, appVersion, ErrInvalidIdentifier)
	}
	if !processSession.CompareAndSwap(false, true) {
		return nil, ErrSessionOpen
	}

	s := &session{
		mu:         &sync.Mutex{},
		driver:     driver,
		appID:      appID,
		appVersion: appVersion,
		policy:     DefaultRetryPolicy(),
		wandStream: true,
		live:       make(map[string]*Glasses),
	}
	for _, option := range options {
		option(s)
	}

	err := retry("create context", s.policy.Context, s.policy.Delay, func() Result {
		ctx, res := driver.CreateContext(appID, appVersion)
		if res == ResultSuccess {
			s.ctx = ctx
		}
		return res
	})
	if err != nil {
		processSession.Store(false)
		return nil, fmt.Errorf("open session: %w", err)
	}

	common.Logger().Info("glasses session opened", "app", appID, "version", appVersion)
	return s, nil
}

func (s *session) AppID() string {
	return s.appID
}

func (s *session) ListGlasses() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	var ids []string
	err := retry("list glasses", s.policy.List, s.policy.Delay, func() Result {
		var res Result
		ids, res = s.driver.ListGlasses(s.ctx)
		return res
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *session) CreateGlasses(id string) (*Glasses, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !ValidIdentifier(id) {
		return nil, fmt.Errorf("create glasses %q: %w", id, ErrInvalidIdentifier)
	}
	if _, ok := s.live[id]; ok {
		return nil, fmt.Errorf("create glasses %q: %w", id, ErrGlassesInUse)
	}

	var handle GlassesHandle
	err := retry("create glasses", s.policy.Glasses, s.policy.Delay, func() Result {
		h, res := s.driver.CreateGlasses(s.ctx, id)
		if res == ResultSuccess {
			handle = h
		}
		return res
	})
	if err != nil {
		return nil, fmt.Errorf("create glasses %q: %w", id, err)
	}

	name := fmt.Sprintf("%s - %s", s.appID, id)
	err = retry("reserve glasses", s.policy.Glasses, s.policy.Delay, func() Result {
		return s.driver.ReserveGlasses(handle, name)
	})
	if err != nil {
		s.driver.DestroyGlasses(handle)
		return nil, fmt.Errorf("reserve glasses %q: %w", id, err)
	}

	g := &Glasses{id: id, handle: handle, owner: s}
	if s.wandStream {
		if res := s.driver.ConfigureWandStream(handle, true); res != ResultSuccess {
			common.Logger().Warn("wand stream not enabled", "glasses", id, "result", res)
		} else {
			g.wand = true
		}
	}

	s.live[id] = g
	common.Logger().Info("glasses created", "glasses", id)
	return g, nil
}

func (s *session) ReleaseGlasses(g *Glasses) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g == nil || g.owner != s || g.Released() || s.closed {
		return nil
	}
	if s.live[g.id] != g {
		return nil
	}
	return s.releaseLocked(g)
}

// releaseLocked tears down a live handle. Callers hold s.mu.
func (s *session) releaseLocked(g *Glasses) error {
	g.released.Store(true)
	delete(s.live, g.id)

	if g.wand {
		if res := s.driver.ConfigureWandStream(g.handle, false); res != ResultSuccess {
			common.Logger().Warn("wand stream not disabled", "glasses", g.id, "result", res)
		}
		g.wand = false
	}

	err := retry("release glasses", s.policy.Glasses, s.policy.Delay, func() Result {
		return s.driver.ReleaseGlasses(g.handle)
	})
	s.driver.DestroyGlasses(g.handle)
	g.graphics = nil

	if err != nil {
		common.Logger().Warn("glasses release failed", "glasses", g.id, "error", err)
		return fmt.Errorf("release glasses %q: %w", g.id, err)
	}
	common.Logger().Info("glasses released", "glasses", g.id)
	return nil
}

// usableLocked checks that g can be passed to the driver. Callers hold s.mu.
func (s *session) usableLocked(g *Glasses) error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case g == nil:
		return fmt.Errorf("nil glasses: %w", ErrGlassesReleased)
	case g.owner != s:
		return ErrForeignGlasses
	case g.Released():
		return fmt.Errorf("glasses %q: %w", g.id, ErrGlassesReleased)
	}
	return nil
}

func (s *session) GetPose(g *Glasses) (NativePose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(g); err != nil {
		return NativePose{}, err
	}

	var pose NativePose
	err := retry("get pose", s.policy.Pose, s.policy.Delay, func() Result {
		var res Result
		pose, res = s.driver.GlassesPose(g.handle)
		return res
	})
	if err != nil {
		return NativePose{}, fmt.Errorf("glasses %q: %w", g.id, err)
	}

	return validatePose(g.id, pose)
}

// validatePose rejects non-finite poses and renormalizes orientations that drifted off unit length.
func validatePose(id string, pose NativePose) (NativePose, error) {
	for _, f := range []float32{
		pose.Position.X, pose.Position.Y, pose.Position.Z,
		pose.Orientation.X, pose.Orientation.Y, pose.Orientation.Z, pose.Orientation.W,
	} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return NativePose{}, fmt.Errorf("glasses %q: %w", id, ErrInvalidPose)
		}
	}
	if !pose.Orientation.IsUnit() {
		if pose.Orientation.Norm() == 0 {
			return NativePose{}, fmt.Errorf("glasses %q: zero orientation: %w", id, ErrInvalidPose)
		}
		pose.Orientation = pose.Orientation.Normalize()
	}
	return pose, nil
}

func (s *session) GetIPD(g *Glasses) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(g); err != nil {
		return 0, err
	}

	var ipd float32
	err := retry("get ipd", s.policy.Pose, s.policy.Delay, func() Result {
		var res Result
		ipd, res = s.driver.GlassesIPD(g.handle)
		return res
	})
	if err != nil {
		return 0, fmt.Errorf("glasses %q: %w", g.id, err)
	}
	if !(ipd > 0) || math.IsInf(float64(ipd), 0) {
		return 0, fmt.Errorf("glasses %q: ipd %v: %w", g.id, ipd, ErrInvalidIPD)
	}
	return ipd, nil
}

func (s *session) GameboardSize(board GameboardType) (GameboardSize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return GameboardSize{}, ErrSessionClosed
	}

	var size GameboardSize
	err := retry("gameboard size", s.policy.Context, s.policy.Delay, func() Result {
		var res Result
		size, res = s.driver.GameboardSize(s.ctx, board)
		return res
	})
	if err != nil {
		return GameboardSize{}, fmt.Errorf("gameboard %s: %w", board, err)
	}
	return size, nil
}

func (s *session) InitGraphics(g *Glasses, gc GraphicsContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(g); err != nil {
		return err
	}
	if gc == nil {
		return fmt.Errorf("glasses %q: nil graphics context", g.id)
	}

	err := retry("init graphics", s.policy.Glasses, s.policy.Delay, func() Result {
		return s.driver.InitGraphicsContext(g.handle, gc.API(), gc.DeviceHandle())
	})
	if err != nil {
		return fmt.Errorf("glasses %q: %w", g.id, err)
	}
	g.graphics = gc
	return nil
}

func (s *session) SubmitFrame(g *Glasses, frame *FrameInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(g); err != nil {
		s.framesFailed.Add(1)
		return err
	}
	if g.graphics == nil {
		s.framesFailed.Add(1)
		return fmt.Errorf("glasses %q: %w", g.id, ErrGraphicsNotInitialized)
	}

	err := retry("send frame", s.policy.Frame, s.policy.Delay, func() Result {
		return s.driver.SendFrame(g.handle, frame)
	})
	if err != nil {
		s.framesFailed.Add(1)
		return fmt.Errorf("glasses %q: %w", g.id, err)
	}
	s.framesSent.Add(1)
	return nil
}

func (s *session) Live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *session) Stats() SessionStats {
	return SessionStats{
		FramesSent:   s.framesSent.Load(),
		FramesFailed: s.framesFailed.Load(),
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := s.releaseLocked(s.live[id]); err != nil {
			errs = append(errs, err)
		}
	}

	s.driver.DestroyContext(s.ctx)
	s.closed = true
	processSession.Store(false)
	common.Logger().Info("glasses session closed", "app", s.appID)
	return errors.Join(errs...)
}
