// Package gpu defines the rendering capabilities the glasses integration consumes: off-screen
// render targets, readback buffers, texture-to-buffer copies, asynchronous maps and polling.
// The wgpu implementation lives in engine/renderer; gputest provides an in-memory fake.
package gpu

import "errors"

// CopyRowAlignment is the required alignment of bytes per row for texture-to-buffer copies.
const CopyRowAlignment = 256

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// ErrMapFailed is passed to a MapRead callback when the map did not succeed.
var ErrMapFailed = errors.New("buffer map failed")

// RenderTarget is an off-screen RGBA8 color texture that cameras render into.
type RenderTarget interface {
	// Label returns the debug label the target was created with.
	Label() string

	// Width returns the width in pixels.
	Width() uint32

	// Height returns the height in pixels.
	Height() uint32

	// Release frees the GPU texture. Further use is invalid.
	Release()
}

// ReadbackBuffer is a CPU-mappable buffer that receives texture copies.
type ReadbackBuffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the size in bytes.
	Size() uint64

	// MapRead starts mapping the whole buffer for reading. done is called exactly once with nil on
	// success: from within Device.Poll, or immediately if the map cannot be started. If the buffer
	// is released first, done receives an error.
	//
	// Parameters:
	//   - done: the completion callback
	MapRead(done func(error))

	// Mapped returns the mapped bytes. Only valid between a successful MapRead completion and Unmap.
	//
	// Returns:
	//   - []byte: the mapped range
	//   - error: an error if the buffer is not mapped
	Mapped() ([]byte, error)

	// Unmap ends the mapping so the GPU may write into the buffer again.
	Unmap()

	// Release frees the buffer. A pending map completes with an error.
	Release()
}

// Copy describes one texture-to-buffer copy. The buffer receives Height rows of
// PaddedBytesPerRow(Width) bytes.
type Copy struct {
	Source      RenderTarget
	Destination ReadbackBuffer
}

// Instance is one drawn box: a column-major model matrix and an RGBA color.
type Instance struct {
	Model [16]float32
	Color [4]float32
}

// Device is the GPU capability used by the glasses integration. Calls are made from the render goroutine;
// MapRead callbacks fire during Poll.
type Device interface {
	// CreateRenderTarget allocates an off-screen RGBA8 render target.
	//
	// Parameters:
	//   - label: a debug label
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - RenderTarget: the target
	//   - error: an error if allocation failed
	CreateRenderTarget(label string, width, height uint32) (RenderTarget, error)

	// CreateReadbackBuffer allocates a mappable buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - ReadbackBuffer: the buffer
	//   - error: an error if allocation failed
	CreateReadbackBuffer(label string, size uint64) (ReadbackBuffer, error)

	// CopyToBuffers records every copy into one command buffer and submits it.
	//
	// Parameters:
	//   - copies: the copies to perform
	//
	// Returns:
	//   - error: an error if encoding or submission failed
	CopyToBuffers(copies ...Copy) error

	// DrawScene clears target and draws instances into it using viewProj.
	//
	// Parameters:
	//   - target: the render target
	//   - viewProj: the column-major view-projection matrix
	//   - instances: the boxes to draw
	//
	// Returns:
	//   - error: an error if encoding or submission failed
	DrawScene(target RenderTarget, viewProj [16]float32, instances []Instance) error

	// Poll processes completed GPU work and fires pending map callbacks.
	//
	// Parameters:
	//   - wait: if true, blocks until submitted work has finished
	Poll(wait bool)
}

// PaddedBytesPerRow returns the copy row size for an RGBA8 texture of the given width,
// rounded up to CopyRowAlignment.
//
// Parameters:
//   - width: the texture width in pixels
//
// Returns:
//   - uint32: the aligned bytes per row
func PaddedBytesPerRow(width uint32) uint32 {
	unpadded := width * BytesPerPixel
	return (unpadded + CopyRowAlignment - 1) / CopyRowAlignment * CopyRowAlignment
}

// ReadbackSize returns the buffer size needed to hold one padded frame of the given size.
//
// Parameters:
//   - width: the texture width in pixels
//   - height: the texture height in pixels
//
// Returns:
//   - uint64: the buffer size in bytes
func ReadbackSize(width, height uint32) uint64 {
	return uint64(PaddedBytesPerRow(width)) * uint64(height)
}
