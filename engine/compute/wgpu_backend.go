package compute

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/voxel-go/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBuffer wraps a device buffer.
type wgpuBuffer struct {
	label string
	size  uint64
	buf   *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// wgpuImage wraps a storage texture and its view.
type wgpuImage struct {
	label         string
	width, height int
	texture       *wgpu.Texture
	view          *wgpu.TextureView
}

func (i *wgpuImage) Label() string { return i.label }
func (i *wgpuImage) Width() int    { return i.width }
func (i *wgpuImage) Height() int   { return i.height }
func (i *wgpuImage) Release() {
	if i.view != nil {
		i.view.Release()
		i.view = nil
	}
	if i.texture != nil {
		i.texture.Release()
		i.texture = nil
	}
}

// wgpuPipeline is the registered form of a pipeline on the wgpu backend.
type wgpuPipeline struct {
	compute *wgpu.ComputePipeline
	render  *wgpu.RenderPipeline
	layouts []*wgpu.BindGroupLayout
	entries map[int]wgpu.BindGroupLayoutDescriptor
}

func (p *wgpuPipeline) Release() {
	if p.compute != nil {
		p.compute.Release()
	}
	if p.render != nil {
		p.render.Release()
	}
	for _, l := range p.layouts {
		if l != nil {
			l.Release()
		}
	}
}

type wgpuBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// blit copies a storage image to the surface; nil when headless
	blit           pipeline.Pipeline
	blitBindGroups map[*wgpuImage]*wgpu.BindGroup

	// Compute frame state for batching every command of a tick into one submission
	computeFrameEncoder *wgpu.CommandEncoder
	frameSurface        *wgpu.Texture
	frameView           *wgpu.TextureView
}

var _ Backend = &wgpuBackend{}

func newWGPUBackend(cfg *backendConfig) *wgpuBackend {
	runtime.LockOSThread()
	w := &wgpuBackend{
		mu:             &sync.Mutex{},
		instance:       wgpu.CreateInstance(nil),
		presentMode:    wgpu.PresentModeFifo,
		blitBindGroups: make(map[*wgpuImage]*wgpu.BindGroup),
	}
	if cfg.presentMode == PresentModeUncapped {
		w.presentMode = wgpu.PresentModeImmediate
	}

	options := &wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	}
	if cfg.surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(cfg.surfaceDescriptor)
		options.CompatibleSurface = w.surface
	}

	a, err := w.instance.RequestAdapter(options)
	if err != nil {
		panic(err)
	}
	w.adapter = a

	// 8x8x8 workgroups and large grids exceed the WebGPU default limits, so take the
	// adapter's values for the compute limits.
	supported := a.GetLimits()
	limits := wgpu.DefaultLimits()
	limits.MaxComputeInvocationsPerWorkgroup = supported.Limits.MaxComputeInvocationsPerWorkgroup
	limits.MaxComputeWorkgroupSizeX = supported.Limits.MaxComputeWorkgroupSizeX
	limits.MaxComputeWorkgroupSizeY = supported.Limits.MaxComputeWorkgroupSizeY
	limits.MaxComputeWorkgroupSizeZ = supported.Limits.MaxComputeWorkgroupSizeZ
	limits.MaxStorageBufferBindingSize = supported.Limits.MaxStorageBufferBindingSize
	limits.MaxBufferSize = supported.Limits.MaxBufferSize

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Voxel Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	if w.surface != nil {
		w.configureSurface(cfg.surfaceWidth, cfg.surfaceHeight)
		if err := w.registerBlitPipeline(); err != nil {
			panic(err)
		}
	}

	return w
}

func (b *wgpuBackend) configureSurface(width, height int) {
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
}

func (b *wgpuBackend) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackend) createBuffer(label string, size uint64, usage wgpu.BufferUsage) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  alignUp4(size),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: size, buf: buf}, nil
}

func (b *wgpuBackend) CreateBufferInit(label string, data []byte) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	contents := data
	if pad := alignUp4(uint64(len(data))); pad != uint64(len(data)) {
		contents = make([]byte, pad)
		copy(contents, data)
	}
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: uint64(len(data)), buf: buf}, nil
}

func (b *wgpuBackend) CreateBuffer(label string, size uint64) (Buffer, error) {
	return b.createBuffer(label, size, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst|wgpu.BufferUsageCopySrc)
}

func (b *wgpuBackend) CreateUniformBuffer(label string, size uint64) (Buffer, error) {
	return b.createBuffer(label, size, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
}

func (b *wgpuBackend) CreateStorageImage(label string, width, height int) (Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage image %q: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for %q: %w", label, err)
	}
	return &wgpuImage{label: label, width: width, height: height, texture: tex, view: view}, nil
}

func (b *wgpuBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf, ok := w.Provider.Buffer(w.Binding).(*wgpuBuffer)
		if !ok {
			return fmt.Errorf("%w: %s binding %d", ErrUnknownResource, w.Provider.Label(), w.Binding)
		}
		if w.Offset+uint64(len(w.Data)) > buf.size {
			return fmt.Errorf("write of %d bytes at offset %d overflows %q (%d bytes)", len(w.Data), w.Offset, buf.label, buf.size)
		}
		b.queue.WriteBuffer(buf.buf, w.Offset, w.Data)
	}
	return nil
}

func (b *wgpuBackend) ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, buf.Label())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := alignUp4(wb.size)
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(wb.buf, 0, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	status := make(chan wgpu.BufferMapAsyncStatus, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status <- s
	})

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.device.Poll(true, nil)
		select {
		case s := <-status:
			if s != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("failed to map %q for reading: status %v", wb.label, s)
			}
			out := make([]byte, wb.size)
			copy(out, staging.GetMappedRange(0, uint(size)))
			staging.Unmap()
			return out, nil
		default:
		}
	}
}

// createLayouts builds one bind group layout per group index in descriptors.
func (b *wgpuBackend) createLayouts(descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func (b *wgpuBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader()
	if computeShader == nil || computeShader.Type() != shader.ShaderTypeCompute {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: computeShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: computeShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer s.Release()

	layouts, err := b.createLayouts(computeShader.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetPipeline(&wgpuPipeline{
		compute: created,
		layouts: layouts,
		entries: computeShader.BindGroupLayoutDescriptors(),
	})
	return nil
}

// registerBlitPipeline creates the fullscreen render pipeline Present uses to copy a storage
// image to the surface.
func (b *wgpuBackend) registerBlitPipeline() error {
	blitShader, err := shader.LoadShader("blit", shader.ShaderTypeRender, "blit.wgsl")
	if err != nil {
		return err
	}
	p := pipeline.NewPipeline("blit", pipeline.PipelineTypeRender, pipeline.WithShader(blitShader))

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: blitShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blitShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	layouts, err := b.createLayouts(blitShader.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: blitShader.VertexEntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: blitShader.FragmentEntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	p.SetPipeline(&wgpuPipeline{
		render:  created,
		layouts: layouts,
		entries: blitShader.BindGroupLayoutDescriptors(),
	})
	b.blit = p
	return nil
}

func (b *wgpuBackend) InitBindGroup(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error {
	wp, ok := p.Pipeline().(*wgpuPipeline)
	if !ok {
		return fmt.Errorf("%w: pipeline %q is not registered", ErrUnknownResource, p.PipelineKey())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bindGroup, err := b.createBindGroup(wp, provider)
	if err != nil {
		return err
	}
	if old, ok := provider.BindGroup().(*wgpu.BindGroup); ok {
		old.Release()
	}
	provider.SetBindGroup(bindGroup)
	return nil
}

// createBindGroup builds group 0 of wp from provider's resources.
func (b *wgpuBackend) createBindGroup(wp *wgpuPipeline, provider bind_group_provider.BindGroupProvider) (*wgpu.BindGroup, error) {
	descriptor, ok := wp.entries[0]
	if !ok || len(wp.layouts) == 0 {
		return nil, errors.New("pipeline has no bind group 0")
	}

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined ||
			entry.StorageTexture.Format != wgpu.TextureFormatUndefined
		if isTexture {
			img, ok := provider.Image(binding).(*wgpuImage)
			if !ok {
				return nil, fmt.Errorf("%w: %s image binding %d", ErrUnknownResource, provider.Label(), binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: img.view,
			}
			continue
		}

		buf, ok := provider.Buffer(binding).(*wgpuBuffer)
		if !ok {
			return nil, fmt.Errorf("%w: %s buffer binding %d", ErrUnknownResource, provider.Label(), binding)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf.buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  wp.layouts[0],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", provider.Label(), err)
	}
	return bindGroup, nil
}

func (b *wgpuBackend) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return fmt.Errorf("%w: previous frame not yet ended", ErrFrameUnavailable)
	}

	if b.surface != nil && b.frameSurface == nil {
		surfaceTexture, err := b.surface.GetCurrentTexture()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
		}
		b.frameSurface = surfaceTexture
		b.frameView = view
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.releaseFrameSurface()
		return fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuBackend) DispatchCompute(
	p pipeline.Pipeline,
	computeProvider bind_group_provider.BindGroupProvider,
	workGroupCount [3]uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoFrame
	}

	wp, ok := p.Pipeline().(*wgpuPipeline)
	if !ok || wp.compute == nil {
		return fmt.Errorf("%w: pipeline %q is not registered", ErrUnknownResource, p.PipelineKey())
	}
	bindGroup, ok := computeProvider.BindGroup().(*wgpu.BindGroup)
	if !ok {
		return fmt.Errorf("%w: bind group %q is not initialised", ErrUnknownResource, computeProvider.Label())
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(wp.compute)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	pass.Release()
	return nil
}

func (b *wgpuBackend) CopyBufferToBuffer(src, dst Buffer, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoFrame
	}
	s, ok := src.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, src.Label())
	}
	d, ok := dst.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, dst.Label())
	}
	if size > s.size || size > d.size {
		return fmt.Errorf("copy of %d bytes exceeds %q (%d) or %q (%d)", size, s.label, s.size, d.label, d.size)
	}

	b.computeFrameEncoder.CopyBufferToBuffer(s.buf, 0, d.buf, 0, alignUp4(size))
	return nil
}

// Barrier is implicit on wgpu: each dispatch is its own compute pass, and the
// implementation synchronises storage accesses between passes.
func (b *wgpuBackend) Barrier() {}

func (b *wgpuBackend) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoFrame
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
	if err != nil {
		return fmt.Errorf("failed to finish compute frame: %w", err)
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuBackend) Present(img Image) error {
	wi, ok := img.(*wgpuImage)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, img.Label())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil || b.blit == nil {
		return nil
	}
	defer b.releaseFrameSurface()

	wp := b.blit.Pipeline().(*wgpuPipeline)
	bindGroup, ok := b.blitBindGroups[wi]
	if !ok {
		provider := bind_group_provider.NewBindGroupProvider("blit "+wi.label, bind_group_provider.WithImage(0, wi))
		var err error
		bindGroup, err = b.createBindGroup(wp, provider)
		if err != nil {
			return err
		}
		b.blitBindGroups[wi] = bindGroup
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
			},
		},
	})
	pass.SetPipeline(wp.render)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.surface.Present()
	return nil
}

// releaseFrameSurface drops the surface texture acquired by BeginComputeFrame.
func (b *wgpuBackend) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrameSurface()
	for _, bg := range b.blitBindGroups {
		bg.Release()
	}
	b.blitBindGroups = nil
	if b.blit != nil {
		b.blit.Release()
		b.blit = nil
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

func alignUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}
