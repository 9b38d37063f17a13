// Package gputest provides an in-memory gpu.Device for tests.
//
// Copies fill each destination row with the source target's fill byte and pad the rest of the
// row with PadByte. Map callbacks fire from Poll unless the buffer's label matches a hung prefix.
package gputest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

// PadByte fills the alignment padding at the end of every copied row.
const PadByte = 0xAB

var errReleased = errors.New("buffer released")

// Target is a fake render target.
type Target struct {
	mu       sync.Mutex
	label    string
	width    uint32
	height   uint32
	fill     byte
	draws    int
	released bool
}

var _ gpu.RenderTarget = &Target{}

func (t *Target) Label() string  { return t.label }
func (t *Target) Width() uint32  { return t.width }
func (t *Target) Height() uint32 { return t.height }

func (t *Target) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
}

// Released reports whether Release was called.
func (t *Target) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// SetFill sets the byte every pixel of the target reads back as.
func (t *Target) SetFill(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fill = b
}

// Draws returns how many times DrawScene rendered into the target.
func (t *Target) Draws() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draws
}

// Buffer is a fake readback buffer.
type Buffer struct {
	dev      *Device
	label    string
	data     []byte
	mapped   bool
	pending  func(error)
	released bool
	copies   int
}

var _ gpu.ReadbackBuffer = &Buffer{}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.data)) }

func (b *Buffer) MapRead(done func(error)) {
	d := b.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.released || b.mapped || b.pending != nil {
		d.immediate = append(d.immediate, func() { done(gpu.ErrMapFailed) })
		return
	}
	b.pending = done
	d.pending = append(d.pending, b)
}

func (b *Buffer) Mapped() ([]byte, error) {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	if !b.mapped {
		return nil, fmt.Errorf("buffer %s is not mapped", b.label)
	}
	return b.data, nil
}

func (b *Buffer) Unmap() {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	b.mapped = false
}

func (b *Buffer) Release() {
	d := b.dev
	d.mu.Lock()
	if b.released {
		d.mu.Unlock()
		return
	}
	b.released = true
	b.mapped = false
	cb := b.pending
	b.pending = nil
	for i, p := range d.pending {
		if p == b {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	if cb != nil {
		cb(errReleased)
	}
}

// Copies returns how many copies targeted the buffer.
func (b *Buffer) Copies() int {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	return b.copies
}

// Device is a fake gpu.Device. Safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	targets   []*Target
	buffers   []*Buffer
	pending   []*Buffer
	immediate []func()
	hung      map[string]bool
	failing   map[string]bool
	noTargets map[string]bool
	polls     int

	onDraw   func(label string)
	onCreate func(label string)
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty fake device.
func NewDevice() *Device {
	return &Device{
		hung:      make(map[string]bool),
		failing:   make(map[string]bool),
		noTargets: make(map[string]bool),
	}
}

// FailTargets makes render target creation fail for labels starting with prefix while fail is true.
func (d *Device) FailTargets(prefix string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fail {
		d.noTargets[prefix] = true
	} else {
		delete(d.noTargets, prefix)
	}
}

// OnDraw installs fn to run at the start of every DrawScene call, outside the device lock.
func (d *Device) OnDraw(fn func(label string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDraw = fn
}

// OnCreateTarget installs fn to run at the start of every CreateRenderTarget call, outside the device lock.
func (d *Device) OnCreateTarget(fn func(label string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCreate = fn
}

// HangMaps makes maps of buffers whose label starts with prefix never complete while hang is true.
func (d *Device) HangMaps(prefix string, hang bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if hang {
		d.hung[prefix] = true
	} else {
		delete(d.hung, prefix)
	}
}

// FailMaps makes maps of buffers whose label starts with prefix complete with an error while fail is true.
func (d *Device) FailMaps(prefix string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fail {
		d.failing[prefix] = true
	} else {
		delete(d.failing, prefix)
	}
}

func matches(set map[string]bool, label string) bool {
	for prefix := range set {
		if strings.HasPrefix(label, prefix) {
			return true
		}
	}
	return false
}

func (d *Device) CreateRenderTarget(label string, width, height uint32) (gpu.RenderTarget, error) {
	d.mu.Lock()
	hook := d.onCreate
	d.mu.Unlock()
	if hook != nil {
		hook(label)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("render target %s: zero size", label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if matches(d.noTargets, label) {
		return nil, fmt.Errorf("render target %s: out of memory", label)
	}
	t := &Target{label: label, width: width, height: height}
	d.targets = append(d.targets, t)
	return t, nil
}

func (d *Device) CreateReadbackBuffer(label string, size uint64) (gpu.ReadbackBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{dev: d, label: label, data: make([]byte, size)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *Device) CopyToBuffers(copies ...gpu.Copy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range copies {
		src, ok := c.Source.(*Target)
		if !ok {
			return fmt.Errorf("foreign render target %T", c.Source)
		}
		dst, ok := c.Destination.(*Buffer)
		if !ok {
			return fmt.Errorf("foreign readback buffer %T", c.Destination)
		}
		if dst.released || src.Released() {
			return fmt.Errorf("copy %s -> %s: released resource", src.label, dst.label)
		}
		if dst.mapped || dst.pending != nil {
			return fmt.Errorf("copy %s -> %s: destination is mapped", src.label, dst.label)
		}
		row := gpu.PaddedBytesPerRow(src.width)
		if uint64(len(dst.data)) < uint64(row)*uint64(src.height) {
			return fmt.Errorf("copy %s -> %s: destination too small", src.label, dst.label)
		}

		src.mu.Lock()
		fill := src.fill
		src.mu.Unlock()

		tight := src.width * gpu.BytesPerPixel
		for y := uint32(0); y < src.height; y++ {
			line := dst.data[y*row : (y+1)*row]
			for x := range line {
				if uint32(x) < tight {
					line[x] = fill
				} else {
					line[x] = PadByte
				}
			}
		}
		dst.copies++
	}
	return nil
}

func (d *Device) DrawScene(target gpu.RenderTarget, viewProj [16]float32, instances []gpu.Instance) error {
	t, ok := target.(*Target)
	if !ok {
		return fmt.Errorf("foreign render target %T", target)
	}
	d.mu.Lock()
	hook := d.onDraw
	d.mu.Unlock()
	if hook != nil {
		hook(t.label)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return fmt.Errorf("draw into released target %s", t.label)
	}
	t.draws++
	return nil
}

func (d *Device) Poll(wait bool) {
	d.mu.Lock()
	d.polls++
	var fire []func()
	fire = append(fire, d.immediate...)
	d.immediate = nil

	remaining := d.pending[:0]
	for _, b := range d.pending {
		if matches(d.hung, b.label) {
			remaining = append(remaining, b)
			continue
		}
		cb := b.pending
		b.pending = nil
		if matches(d.failing, b.label) {
			fire = append(fire, func() { cb(gpu.ErrMapFailed) })
			continue
		}
		b.mapped = true
		fire = append(fire, func() { cb(nil) })
	}
	d.pending = remaining
	d.mu.Unlock()

	for _, f := range fire {
		f()
	}
}

// Polls returns how many times Poll was called.
func (d *Device) Polls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

// LiveTargets returns the unreleased targets whose label starts with prefix.
func (d *Device) LiveTargets(prefix string) []*Target {
	d.mu.Lock()
	targets := append([]*Target(nil), d.targets...)
	d.mu.Unlock()

	var live []*Target
	for _, t := range targets {
		if strings.HasPrefix(t.label, prefix) && !t.Released() {
			live = append(live, t)
		}
	}
	return live
}

// LiveBuffers returns the unreleased buffers whose label starts with prefix.
func (d *Device) LiveBuffers(prefix string) []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	var live []*Buffer
	for _, b := range d.buffers {
		if strings.HasPrefix(b.label, prefix) && !b.released {
			live = append(live, b)
		}
	}
	return live
}
