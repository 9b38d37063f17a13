package device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

// ContextHandle is the opaque native session context returned by the driver.
type ContextHandle uintptr

// GlassesHandle is the opaque native handle for one pair of glasses.
type GlassesHandle uintptr

// Result is the status code returned by every native driver call. Zero is success.
type Result uint32

const (
	// ResultSuccess indicates the call completed.
	ResultSuccess Result = iota
	// ResultNoService indicates the background service is not (yet) reachable. This is the only retry-eligible code.
	ResultNoService
	// ResultInvalidArgs indicates a malformed argument such as an identifier containing NUL.
	ResultInvalidArgs
	// ResultNoContext indicates the call referenced a destroyed or unknown context.
	ResultNoContext
	// ResultNotConnected indicates the glasses are not connected to the service.
	ResultNotConnected
	// ResultUnavailable indicates the glasses are reserved by another application.
	ResultUnavailable
	// ResultDeviceLost indicates the glasses disappeared while in use.
	ResultDeviceLost
	// ResultTryAgain indicates data (for example a pose) is not available yet.
	ResultTryAgain
	// ResultInternal indicates any other driver failure.
	ResultInternal
)

// String returns the symbolic name of the result code.
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultNoService:
		return "no service"
	case ResultInvalidArgs:
		return "invalid arguments"
	case ResultNoContext:
		return "no context"
	case ResultNotConnected:
		return "not connected"
	case ResultUnavailable:
		return "unavailable"
	case ResultDeviceLost:
		return "device lost"
	case ResultTryAgain:
		return "try again"
	case ResultInternal:
		return "internal error"
	default:
		return fmt.Sprintf("result(%d)", uint32(r))
	}
}

// GameboardType identifies the physical board the glasses track against.
type GameboardType int32

const (
	GameboardNone GameboardType = iota + 1
	GameboardLE
	GameboardXE
	GameboardXERaised
)

// String returns the board type name as used in configuration files.
func (t GameboardType) String() string {
	switch t {
	case GameboardNone:
		return "none"
	case GameboardLE:
		return "le"
	case GameboardXE:
		return "xe"
	case GameboardXERaised:
		return "xe_raised"
	default:
		return fmt.Sprintf("gameboard(%d)", int32(t))
	}
}

// ParseGameboardType parses a board name produced by GameboardType.String.
//
// Parameters:
//   - s: the board name
//
// Returns:
//   - GameboardType: the parsed board type
//   - error: an error if the name is unknown
func ParseGameboardType(s string) (GameboardType, error) {
	for _, t := range []GameboardType{GameboardNone, GameboardLE, GameboardXE, GameboardXERaised} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown gameboard type %q", s)
}

// GameboardSize is the viewable extent of a board in meters, measured from its origin.
type GameboardSize struct {
	PositiveX float32 `cbor:"px"`
	NegativeX float32 `cbor:"nx"`
	PositiveY float32 `cbor:"py"`
	NegativeY float32 `cbor:"ny"`
	PositiveZ float32 `cbor:"pz"`
}

// NativePose is the raw pose reported by the driver, in gameboard (GBD) tracking space.
type NativePose struct {
	TimestampNanos uint64        `cbor:"ts"`
	Position       common.Vec3   `cbor:"pos"`
	Orientation    common.Quat   `cbor:"rot"`
	Board          GameboardType `cbor:"board"`
}

// GraphicsAPI identifies the graphics API of the textures handed to the driver.
type GraphicsAPI int32

const (
	// GraphicsAPINone submits CPU-side pixel buffers through a host memory context.
	GraphicsAPINone GraphicsAPI = iota + 1
	GraphicsAPIGL
	GraphicsAPID3D11
	GraphicsAPIVulkan
)

// ViewCone describes the eye frustum as its intersection with the plane one unit in front of the eye.
type ViewCone struct {
	StartX float32
	StartY float32
	Width  float32
	Height float32
}

// FrameInfo is a stereo frame ready for submission.
// Eye poses are expressed in gameboard (GBD) tracking space.
type FrameInfo struct {
	LeftTexture  uintptr
	RightTexture uintptr

	Width  uint16
	Height uint16

	IsSRGB       bool
	IsUpsideDown bool

	ViewCone ViewCone

	LeftRotation  common.Quat
	LeftPosition  common.Vec3
	RightRotation common.Quat
	RightPosition common.Vec3
}

// Driver is the contract of the native glasses library. Every call returns a Result; the driver
// performs no retries and keeps no state beyond what the native library keeps.
// Implementations are not safe for concurrent use; the Session serializes all calls.
type Driver interface {
	// CreateContext creates the native session context.
	CreateContext(appID, appVersion string) (ContextHandle, Result)

	// DestroyContext destroys a context created by CreateContext.
	DestroyContext(ctx ContextHandle)

	// ListGlasses returns the identifiers of the currently visible glasses.
	ListGlasses(ctx ContextHandle) ([]string, Result)

	// CreateGlasses creates a native handle for the glasses with the given identifier.
	CreateGlasses(ctx ContextHandle, id string) (GlassesHandle, Result)

	// ReserveGlasses claims exclusive use of the glasses, showing displayName on the device.
	ReserveGlasses(g GlassesHandle, displayName string) Result

	// ReleaseGlasses gives up exclusive use of the glasses.
	ReleaseGlasses(g GlassesHandle) Result

	// DestroyGlasses frees the native handle.
	DestroyGlasses(g GlassesHandle)

	// ConfigureWandStream enables or disables wand event streaming for the glasses.
	ConfigureWandStream(g GlassesHandle, enabled bool) Result

	// GameboardSize returns the physical size of a board type.
	GameboardSize(ctx ContextHandle, board GameboardType) (GameboardSize, Result)

	// GlassesPose returns the current pose of the glasses.
	GlassesPose(g GlassesHandle) (NativePose, Result)

	// GlassesIPD returns the user's inter-pupillary distance in millimeters.
	GlassesIPD(g GlassesHandle) (float32, Result)

	// InitGraphicsContext binds a graphics device to the glasses so submitted texture handles can be resolved.
	InitGraphicsContext(g GlassesHandle, api GraphicsAPI, device uintptr) Result

	// SendFrame submits a stereo frame to the glasses.
	SendFrame(g GlassesHandle, frame *FrameInfo) Result
}
