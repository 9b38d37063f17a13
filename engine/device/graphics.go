package device

import (
	"fmt"
	"sync"
)

// GraphicsContext is the capability that turns CPU pixel data into native texture handles
// the driver understands.
type GraphicsContext interface {
	// API returns the graphics API passed to the driver at InitGraphics time.
	//
	// Returns:
	//   - GraphicsAPI: the graphics API
	API() GraphicsAPI

	// DeviceHandle returns the native graphics device handle passed to the driver.
	//
	// Returns:
	//   - uintptr: the native device, or 0 for host memory
	DeviceHandle() uintptr

	// UploadTexture stores an RGBA8 image and returns its native handle.
	// The handle stays valid until ReleaseTexture is called.
	//
	// Parameters:
	//   - width: the image width in pixels
	//   - height: the image height in pixels
	//   - rowPitch: the number of bytes between the starts of consecutive rows in pixels
	//   - pixels: the source rows, at least rowPitch*(height-1)+width*4 bytes
	//
	// Returns:
	//   - uintptr: the native texture handle
	//   - error: an error if the pixels are too short or the upload failed
	UploadTexture(width, height, rowPitch uint32, pixels []byte) (uintptr, error)

	// ReleaseTexture frees a texture returned by UploadTexture. Unknown handles are ignored.
	//
	// Parameters:
	//   - handle: the texture handle
	ReleaseTexture(handle uintptr)
}

// HostTexture is a tightly packed RGBA8 image owned by a HostGraphics context.
type HostTexture struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// HostGraphics is a GraphicsContext that keeps textures in process memory. It serves drivers
// that accept CPU pixel buffers and the simulated driver.
type HostGraphics struct {
	mu       sync.Mutex
	next     uintptr
	textures map[uintptr]*HostTexture
}

var _ GraphicsContext = &HostGraphics{}

// NewHostGraphics creates an empty host memory graphics context.
//
// Returns:
//   - *HostGraphics: the context
func NewHostGraphics() *HostGraphics {
	return &HostGraphics{textures: make(map[uintptr]*HostTexture)}
}

func (h *HostGraphics) API() GraphicsAPI {
	return GraphicsAPINone
}

func (h *HostGraphics) DeviceHandle() uintptr {
	return 0
}

func (h *HostGraphics) UploadTexture(width, height, rowPitch uint32, pixels []byte) (uintptr, error) {
	tight := width * 4
	if rowPitch < tight {
		return 0, fmt.Errorf("row pitch %d smaller than row size %d", rowPitch, tight)
	}
	if height > 0 && uint64(len(pixels)) < uint64(rowPitch)*uint64(height-1)+uint64(tight) {
		return 0, fmt.Errorf("pixel buffer of %d bytes too short for %dx%d", len(pixels), width, height)
	}

	packed := make([]byte, int(tight)*int(height))
	for y := uint32(0); y < height; y++ {
		copy(packed[y*tight:(y+1)*tight], pixels[y*rowPitch:y*rowPitch+tight])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.textures[h.next] = &HostTexture{Width: width, Height: height, Pixels: packed}
	return h.next, nil
}

func (h *HostGraphics) ReleaseTexture(handle uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.textures, handle)
}

// Texture looks up a live texture by handle.
//
// Parameters:
//   - handle: the texture handle
//
// Returns:
//   - *HostTexture: the texture
//   - bool: false if the handle is unknown or released
func (h *HostGraphics) Texture(handle uintptr) (*HostTexture, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.textures[handle]
	return t, ok
}

// Live returns the number of textures not yet released.
func (h *HostGraphics) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.textures)
}
