package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
	"github.com/Carmen-Shannon/oxy-t5/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// offscreenFormat is the color format of eye render targets. The glasses expect RGBA8.
const offscreenFormat = wgpu.TextureFormatRGBA8Unorm

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat     wgpu.TextureFormat
	surfaceDepth      *depthAttachment
	surfaceConfigured bool
	presentMode       wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	clearColor        wgpu.Color

	// Box pipeline resources shared by every draw.
	pipelines        map[wgpu.TextureFormat]*wgpu.RenderPipeline
	bindGroupLayout  *wgpu.BindGroupLayout
	pipelineLayout   *wgpu.PipelineLayout
	shaderModule     *wgpu.ShaderModule
	cameraBuffer     *wgpu.Buffer
	cameraBindGroup  *wgpu.BindGroup
	vertexBuffer     *wgpu.Buffer
	instanceBuffer   *wgpu.Buffer
	instanceCapacity uint64
}

type wgpuRendererBackend interface {
	// HasSurface reports whether a window surface was created.
	HasSurface() bool

	// ConfigureSurface is a wrapper for boilerplate logic required when calling Configure on a surface.
	// Recreates the surface depth attachment for the new size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode maps a PresentMode to the wgpu present mode used by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// DrawToSurface draws instances into the next surface image and presents it.
	//
	// Parameters:
	//   - viewProj: the column-major view-projection matrix
	//   - instances: the boxes to draw
	//
	// Returns:
	//   - error: an error if the surface image could not be acquired or drawn
	DrawToSurface(viewProj [16]float32, instances []gpu.Instance) error

	// Release frees every GPU object owned by the backend.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

type depthAttachment struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (d *depthAttachment) release() {
	if d == nil {
		return
	}
	d.view.Release()
	d.texture.Release()
}

func newWGPURendererBackend(win window.Window, forceFallbackAdapter bool, clear [4]float64) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  wgpu.Color{R: clear[0], G: clear[1], B: clear[2], A: clear[3]},
		pipelines:   make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
	}
	if win != nil {
		w.surface = w.instance.CreateSurface(win.SurfaceDescriptor())
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	if err := w.initBoxResources(); err != nil {
		panic(fmt.Sprintf("failed to create box pipeline resources: %v", err))
	}
	return w
}

// initBoxResources creates the shader, layouts, camera uniform and cube vertex buffer.
func (b *wgpuRendererBackendImpl) initBoxResources() error {
	var err error
	b.shaderModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Box Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: boxShaderSource,
		},
	})
	if err != nil {
		return err
	}

	var uniform camera.GPUCameraUniform
	b.bindGroupLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Camera Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(uniform.Size()),
				},
			},
		},
	})
	if err != nil {
		return err
	}

	b.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Box Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.bindGroupLayout},
	})
	if err != nil {
		return err
	}

	b.cameraBuffer, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform Buffer",
		Size:  uint64(uniform.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}

	b.cameraBindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Camera Bind Group",
		Layout: b.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.cameraBuffer, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}

	vertices := marshalFloats(boxVertices())
	b.vertexBuffer, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Box Vertex Buffer",
		Size:  uint64(len(vertices)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(b.vertexBuffer, 0, vertices)
	return nil
}

// pipelineFor returns the box pipeline for a color format, creating it on first use.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) pipelineFor(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := b.pipelines[format]; ok {
		return p, nil
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Box Render Pipeline",
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     b.shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: boxVertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					},
				},
				{
					ArrayStride: boxInstanceStride,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 2},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 5},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 64, ShaderLocation: 6},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	b.pipelines[format] = created
	return created, nil
}

func (b *wgpuRendererBackendImpl) createDepth(label string, width, height uint32) (*depthAttachment, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label + " Depth Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &depthAttachment{texture: tex, view: view}, nil
}

func (b *wgpuRendererBackendImpl) HasSurface() bool {
	return b.surface != nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == nil {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	depth, err := b.createDepth("Surface", uint32(width), uint32(height))
	if err != nil {
		panic(err)
	}
	b.surfaceDepth.release()
	b.surfaceDepth = depth
	b.surfaceConfigured = true
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

// wgpuRenderTarget is an off-screen color texture with its own depth attachment.
type wgpuRenderTarget struct {
	label    string
	width    uint32
	height   uint32
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	depth    *depthAttachment
	once     sync.Once
	released bool
}

var _ gpu.RenderTarget = &wgpuRenderTarget{}

func (t *wgpuRenderTarget) Label() string  { return t.label }
func (t *wgpuRenderTarget) Width() uint32  { return t.width }
func (t *wgpuRenderTarget) Height() uint32 { return t.height }

func (t *wgpuRenderTarget) Release() {
	t.once.Do(func() {
		t.released = true
		t.depth.release()
		t.view.Release()
		t.texture.Release()
	})
}

func (b *wgpuRendererBackendImpl) CreateRenderTarget(label string, width, height uint32) (gpu.RenderTarget, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("render target %s: invalid size %dx%d", label, width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        offscreenFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	depth, err := b.createDepth(label, width, height)
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}
	return &wgpuRenderTarget{
		label:   label,
		width:   width,
		height:  height,
		texture: tex,
		view:    view,
		depth:   depth,
	}, nil
}

type mapState int

const (
	mapIdle mapState = iota
	mapPending
	mapMapped
	mapReleased
)

// wgpuReadbackBuffer is a MapRead|CopyDst buffer. Its map callback fires during Device.Poll.
type wgpuReadbackBuffer struct {
	mu     sync.Mutex
	label  string
	size   uint64
	buffer *wgpu.Buffer
	state  mapState
}

var _ gpu.ReadbackBuffer = &wgpuReadbackBuffer{}

func (rb *wgpuReadbackBuffer) Label() string { return rb.label }
func (rb *wgpuReadbackBuffer) Size() uint64  { return rb.size }

func (rb *wgpuReadbackBuffer) MapRead(done func(error)) {
	rb.mu.Lock()
	if rb.state != mapIdle {
		rb.mu.Unlock()
		done(fmt.Errorf("buffer %s: %w", rb.label, gpu.ErrMapFailed))
		return
	}
	rb.state = mapPending
	rb.mu.Unlock()

	err := rb.buffer.MapAsync(wgpu.MapModeRead, 0, rb.size, func(status wgpu.BufferMapAsyncStatus) {
		rb.mu.Lock()
		if rb.state != mapPending {
			rb.mu.Unlock()
			done(fmt.Errorf("buffer %s released: %w", rb.label, gpu.ErrMapFailed))
			return
		}
		if status != wgpu.BufferMapAsyncStatusSuccess {
			rb.state = mapIdle
			rb.mu.Unlock()
			done(fmt.Errorf("buffer %s status %v: %w", rb.label, status, gpu.ErrMapFailed))
			return
		}
		rb.state = mapMapped
		rb.mu.Unlock()
		done(nil)
	})
	if err != nil {
		rb.mu.Lock()
		rb.state = mapIdle
		rb.mu.Unlock()
		done(fmt.Errorf("buffer %s: %w: %w", rb.label, gpu.ErrMapFailed, err))
	}
}

func (rb *wgpuReadbackBuffer) Mapped() ([]byte, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.state != mapMapped {
		return nil, fmt.Errorf("buffer %s is not mapped", rb.label)
	}
	return rb.buffer.GetMappedRange(0, uint(rb.size)), nil
}

func (rb *wgpuReadbackBuffer) Unmap() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.state != mapMapped {
		return
	}
	rb.buffer.Unmap()
	rb.state = mapIdle
}

func (rb *wgpuReadbackBuffer) Release() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.state == mapReleased {
		return
	}
	if rb.state == mapMapped {
		rb.buffer.Unmap()
	}
	rb.state = mapReleased
	rb.buffer.Release()
}

func (b *wgpuRendererBackendImpl) CreateReadbackBuffer(label string, size uint64) (gpu.ReadbackBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuReadbackBuffer{label: label, size: size, buffer: buf}, nil
}

func (b *wgpuRendererBackendImpl) CopyToBuffers(copies ...gpu.Copy) error {
	if len(copies) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	for _, c := range copies {
		src, ok := c.Source.(*wgpuRenderTarget)
		if !ok || src.released {
			return fmt.Errorf("copy source %T is not a live wgpu render target", c.Source)
		}
		dst, ok := c.Destination.(*wgpuReadbackBuffer)
		if !ok {
			return fmt.Errorf("copy destination %T is not a wgpu readback buffer", c.Destination)
		}
		if need := gpu.ReadbackSize(src.width, src.height); dst.size < need {
			return fmt.Errorf("copy %s -> %s: buffer holds %d bytes, need %d", src.label, dst.label, dst.size, need)
		}
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  src.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.ImageCopyBuffer{
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  gpu.PaddedBytesPerRow(src.width),
					RowsPerImage: src.height,
				},
				Buffer: dst.buffer,
			},
			&wgpu.Extent3D{
				Width:              src.width,
				Height:             src.height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	return nil
}

// writeFrameData uploads the camera uniform and instance data, growing the instance buffer as needed.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) writeFrameData(viewProj [16]float32, instances []gpu.Instance) error {
	uniform := camera.GPUCameraUniform{ViewProj: viewProj}
	b.queue.WriteBuffer(b.cameraBuffer, 0, uniform.Marshal())

	if len(instances) == 0 {
		return nil
	}
	data := marshalInstances(instances)
	if need := uint64(len(data)); need > b.instanceCapacity {
		capacity := max(need, 2*b.instanceCapacity)
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Box Instance Buffer",
			Size:  capacity,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		if b.instanceBuffer != nil {
			b.instanceBuffer.Release()
		}
		b.instanceBuffer = buf
		b.instanceCapacity = capacity
	}
	b.queue.WriteBuffer(b.instanceBuffer, 0, data)
	return nil
}

// drawPass records and submits one clear-and-draw pass. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) drawPass(color *wgpu.TextureView, format wgpu.TextureFormat, depth *depthAttachment, viewProj [16]float32, instances []gpu.Instance) error {
	p, err := b.pipelineFor(format)
	if err != nil {
		return err
	}
	if err := b.writeFrameData(viewProj, instances); err != nil {
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       color,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	if len(instances) > 0 {
		pass.SetPipeline(p)
		pass.SetBindGroup(0, b.cameraBindGroup, nil)
		pass.SetVertexBuffer(0, b.vertexBuffer, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, b.instanceBuffer, 0, wgpu.WholeSize)
		pass.Draw(boxVertexCount, uint32(len(instances)), 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	return nil
}

func (b *wgpuRendererBackendImpl) DrawScene(target gpu.RenderTarget, viewProj [16]float32, instances []gpu.Instance) error {
	t, ok := target.(*wgpuRenderTarget)
	if !ok || t.released {
		return fmt.Errorf("draw target %T is not a live wgpu render target", target)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drawPass(t.view, offscreenFormat, t.depth, viewProj, instances)
}

func (b *wgpuRendererBackendImpl) DrawToSurface(viewProj [16]float32, instances []gpu.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == nil || !b.surfaceConfigured {
		return errors.New("renderer has no configured surface")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	if err := b.drawPass(view, b.surfaceFormat, b.surfaceDepth, viewProj, instances); err != nil {
		return err
	}
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) Poll(wait bool) {
	b.device.Poll(wait, nil)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for format, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, format)
	}
	if b.instanceBuffer != nil {
		b.instanceBuffer.Release()
		b.instanceBuffer = nil
	}
	b.surfaceDepth.release()
	b.surfaceDepth = nil
	b.vertexBuffer.Release()
	b.cameraBindGroup.Release()
	b.cameraBuffer.Release()
	b.pipelineLayout.Release()
	b.bindGroupLayout.Release()
	b.shaderModule.Release()
	b.device.Release()
	b.adapter.Release()
	if b.surface != nil {
		b.surface.Release()
	}
	b.instance.Release()
	common.Logger().Debug("renderer released")
}
