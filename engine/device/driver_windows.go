//go:build windows

package device

import (
	"fmt"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"golang.org/x/sys/windows"
)

// NativeLibrary is the file name of the vendor library loaded by NewNativeDriver.
const NativeLibrary = "TiltFiveNative.dll"

const (
	listBufferSize = 1024
	paramIPD       = 1
	sdkTypeClient  = 0
)

type nativeVec3 struct {
	X, Y, Z float32
}

type nativeQuat struct {
	W, X, Y, Z float32
}

type nativeClientInfo struct {
	applicationID      *byte
	applicationVersion *byte
	sdkType            uint8
	reserved           uint64
}

type nativeGlassesPose struct {
	timestampNanos uint64
	position       nativeVec3
	rotation       nativeQuat
	gameboardType  int32
}

type nativeGameboardSize struct {
	positiveX, negativeX, positiveY, negativeY, positiveZ float32
}

type nativeWandStreamConfig struct {
	enabled bool
}

type nativeFrameInfo struct {
	leftTexHandle  uintptr
	rightTexHandle uintptr
	texWidth       uint16
	texHeight      uint16
	isSRGB         bool
	isUpsideDown   bool
	vci            ViewCone
	rotToLeft      nativeQuat
	posLeft        nativeVec3
	rotToRight     nativeQuat
	posRight       nativeVec3
}

func toNativeQuat(q common.Quat) nativeQuat {
	return nativeQuat{W: q.W, X: q.X, Y: q.Y, Z: q.Z}
}

func toNativeVec3(v common.Vec3) nativeVec3 {
	return nativeVec3{X: v.X, Y: v.Y, Z: v.Z}
}

// nativeDriver calls the vendor library through its exported C functions.
type nativeDriver struct {
	dll *windows.LazyDLL

	createContext     *windows.LazyProc
	destroyContext    *windows.LazyProc
	listGlasses       *windows.LazyProc
	createGlasses     *windows.LazyProc
	reserveGlasses    *windows.LazyProc
	releaseGlasses    *windows.LazyProc
	destroyGlasses    *windows.LazyProc
	configureWand     *windows.LazyProc
	gameboardSize     *windows.LazyProc
	glassesPose       *windows.LazyProc
	glassesFloatParam *windows.LazyProc
	initGraphics      *windows.LazyProc
	sendFrame         *windows.LazyProc
}

var _ Driver = &nativeDriver{}

// NewNativeDriver loads the vendor library and resolves every export the session needs.
//
// Returns:
//   - Driver: the native driver
//   - error: ErrDriverUnavailable wrapping the load failure
func NewNativeDriver() (Driver, error) {
	dll := windows.NewLazyDLL(NativeLibrary)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
	}

	d := &nativeDriver{
		dll:               dll,
		createContext:     dll.NewProc("t5CreateContext"),
		destroyContext:    dll.NewProc("t5DestroyContext"),
		listGlasses:       dll.NewProc("t5ListGlasses"),
		createGlasses:     dll.NewProc("t5CreateGlasses"),
		reserveGlasses:    dll.NewProc("t5ReserveGlasses"),
		releaseGlasses:    dll.NewProc("t5ReleaseGlasses"),
		destroyGlasses:    dll.NewProc("t5DestroyGlasses"),
		configureWand:     dll.NewProc("t5ConfigureWandStreamForGlasses"),
		gameboardSize:     dll.NewProc("t5GetGameboardSize"),
		glassesPose:       dll.NewProc("t5GetGlassesPose"),
		glassesFloatParam: dll.NewProc("t5GetGlassesFloatParam"),
		initGraphics:      dll.NewProc("t5InitGlassesGraphicsContext"),
		sendFrame:         dll.NewProc("t5SendFrameToGlasses"),
	}
	for _, p := range []*windows.LazyProc{
		d.createContext, d.destroyContext, d.listGlasses, d.createGlasses, d.reserveGlasses,
		d.releaseGlasses, d.destroyGlasses, d.configureWand, d.gameboardSize, d.glassesPose,
		d.glassesFloatParam, d.initGraphics, d.sendFrame,
	} {
		if err := p.Find(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
		}
	}
	return d, nil
}

func call(p *windows.LazyProc, args ...uintptr) Result {
	r, _, _ := p.Call(args...)
	return Result(uint32(r))
}

func (d *nativeDriver) CreateContext(appID, appVersion string) (ContextHandle, Result) {
	id, err := windows.BytePtrFromString(appID)
	if err != nil {
		return 0, ResultInvalidArgs
	}
	version, err := windows.BytePtrFromString(appVersion)
	if err != nil {
		return 0, ResultInvalidArgs
	}
	info := nativeClientInfo{applicationID: id, applicationVersion: version, sdkType: sdkTypeClient}

	var ctx uintptr
	res := call(d.createContext, uintptr(unsafe.Pointer(&ctx)), uintptr(unsafe.Pointer(&info)), 0)
	return ContextHandle(ctx), res
}

func (d *nativeDriver) DestroyContext(ctx ContextHandle) {
	h := uintptr(ctx)
	d.destroyContext.Call(uintptr(unsafe.Pointer(&h)))
}

func (d *nativeDriver) ListGlasses(ctx ContextHandle) ([]string, Result) {
	buf := make([]byte, listBufferSize)
	size := uintptr(len(buf))
	res := call(d.listGlasses, uintptr(ctx), uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if res != ResultSuccess {
		return nil, res
	}
	if size < uintptr(len(buf)) {
		buf = buf[:size]
	}
	return ParseGlassesList(buf), ResultSuccess
}

func (d *nativeDriver) CreateGlasses(ctx ContextHandle, id string) (GlassesHandle, Result) {
	cid, err := windows.BytePtrFromString(id)
	if err != nil {
		return 0, ResultInvalidArgs
	}
	var g uintptr
	res := call(d.createGlasses, uintptr(ctx), uintptr(unsafe.Pointer(cid)), uintptr(unsafe.Pointer(&g)))
	return GlassesHandle(g), res
}

func (d *nativeDriver) ReserveGlasses(g GlassesHandle, displayName string) Result {
	name, err := windows.BytePtrFromString(displayName)
	if err != nil {
		return ResultInvalidArgs
	}
	return call(d.reserveGlasses, uintptr(g), uintptr(unsafe.Pointer(name)))
}

func (d *nativeDriver) ReleaseGlasses(g GlassesHandle) Result {
	return call(d.releaseGlasses, uintptr(g))
}

func (d *nativeDriver) DestroyGlasses(g GlassesHandle) {
	h := uintptr(g)
	d.destroyGlasses.Call(uintptr(unsafe.Pointer(&h)))
}

func (d *nativeDriver) ConfigureWandStream(g GlassesHandle, enabled bool) Result {
	cfg := nativeWandStreamConfig{enabled: enabled}
	return call(d.configureWand, uintptr(g), uintptr(unsafe.Pointer(&cfg)))
}

func (d *nativeDriver) GameboardSize(ctx ContextHandle, board GameboardType) (GameboardSize, Result) {
	var size nativeGameboardSize
	res := call(d.gameboardSize, uintptr(ctx), uintptr(board), uintptr(unsafe.Pointer(&size)))
	return GameboardSize{
		PositiveX: size.positiveX,
		NegativeX: size.negativeX,
		PositiveY: size.positiveY,
		NegativeY: size.negativeY,
		PositiveZ: size.positiveZ,
	}, res
}

func (d *nativeDriver) GlassesPose(g GlassesHandle) (NativePose, Result) {
	var p nativeGlassesPose
	res := call(d.glassesPose, uintptr(g), uintptr(unsafe.Pointer(&p)))
	return NativePose{
		TimestampNanos: p.timestampNanos,
		Position:       common.Vec3{X: p.position.X, Y: p.position.Y, Z: p.position.Z},
		Orientation:    common.Quat{X: p.rotation.X, Y: p.rotation.Y, Z: p.rotation.Z, W: p.rotation.W},
		Board:          GameboardType(p.gameboardType),
	}, res
}

func (d *nativeDriver) GlassesIPD(g GlassesHandle) (float32, Result) {
	var ipd float32
	res := call(d.glassesFloatParam, uintptr(g), 0, paramIPD, uintptr(unsafe.Pointer(&ipd)))
	return ipd, res
}

func (d *nativeDriver) InitGraphicsContext(g GlassesHandle, api GraphicsAPI, device uintptr) Result {
	return call(d.initGraphics, uintptr(g), uintptr(api), device)
}

func (d *nativeDriver) SendFrame(g GlassesHandle, frame *FrameInfo) Result {
	info := nativeFrameInfo{
		leftTexHandle:  frame.LeftTexture,
		rightTexHandle: frame.RightTexture,
		texWidth:       frame.Width,
		texHeight:      frame.Height,
		isSRGB:         frame.IsSRGB,
		isUpsideDown:   frame.IsUpsideDown,
		vci:            frame.ViewCone,
		rotToLeft:      toNativeQuat(frame.LeftRotation),
		posLeft:        toNativeVec3(frame.LeftPosition),
		rotToRight:     toNativeQuat(frame.RightRotation),
		posRight:       toNativeVec3(frame.RightPosition),
	}
	return call(d.sendFrame, uintptr(g), uintptr(unsafe.Pointer(&info)))
}
