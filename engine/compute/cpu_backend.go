package compute

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/voxel-go/common"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
)

// cpuBuffer is a host buffer stored as 32-bit words so kernels can index it the way WGSL does.
type cpuBuffer struct {
	label   string
	size    uint64
	words   []uint32
	uniform bool
}

func newCPUBuffer(label string, size uint64, uniform bool) *cpuBuffer {
	return &cpuBuffer{
		label:   label,
		size:    size,
		words:   make([]uint32, common.CeilDiv(uint32(size), 4)),
		uniform: uniform,
	}
}

func (b *cpuBuffer) Label() string { return b.label }
func (b *cpuBuffer) Size() uint64  { return b.size }
func (b *cpuBuffer) Release()      { b.words = nil }

// bytes returns a byte view over the buffer's words, truncated to its size.
func (b *cpuBuffer) bytes() []byte {
	return common.SliceToBytes(b.words)[:b.size]
}

// cpuImage is a host RGBA image.
type cpuImage struct {
	label string
	img   *image.RGBA
}

func (i *cpuImage) Label() string { return i.label }
func (i *cpuImage) Width() int    { return i.img.Rect.Dx() }
func (i *cpuImage) Height() int   { return i.img.Rect.Dy() }
func (i *cpuImage) Release()      {}

// RGBA returns the pixels of a CPU backend image, or nil if img belongs to another backend.
func RGBA(img Image) *image.RGBA {
	if ci, ok := img.(*cpuImage); ok {
		return ci.img
	}
	return nil
}

// cpuPipeline is the registered form of a pipeline on the CPU backend.
type cpuPipeline struct {
	kernel        pipeline.KernelFunc
	workGroupSize [3]uint32
}

// cpuBindGroup resolves binding indices to host resources. It implements pipeline.Bindings.
type cpuBindGroup struct {
	buffers map[int]*cpuBuffer
	images  map[int]*cpuImage
}

var _ pipeline.Bindings = &cpuBindGroup{}

func (g *cpuBindGroup) Words(binding int) []uint32 {
	if b, ok := g.buffers[binding]; ok {
		return b.words
	}
	return nil
}

func (g *cpuBindGroup) Image(binding int) *image.RGBA {
	if i, ok := g.images[binding]; ok {
		return i.img
	}
	return nil
}

type cpuCommandKind int

const (
	cpuCommandDispatch cpuCommandKind = iota
	cpuCommandCopy
	cpuCommandBarrier
)

// cpuCommand is one recorded frame command.
type cpuCommand struct {
	kind cpuCommandKind

	pipeline  *cpuPipeline
	bindGroup *cpuBindGroup
	groups    [3]uint32

	src, dst *cpuBuffer
	size     uint64
}

// cpuBackend runs kernels on the host. Commands recorded during a frame execute in order at
// EndComputeFrame; each dispatch fans its workgroups out over the worker pool and joins before
// the next command starts.
type cpuBackend struct {
	mu      *sync.Mutex
	pool    worker.DynamicWorkerPool
	workers int

	acquire FrameAcquirer

	recording bool
	commands  []cpuCommand
	taskID    int
}

var _ Backend = &cpuBackend{}

func newCPUBackend(cfg *backendConfig) *cpuBackend {
	return &cpuBackend{
		mu:      &sync.Mutex{},
		pool:    worker.NewDynamicWorkerPool(cfg.workers, 256, 1*time.Second),
		workers: cfg.workers,
		acquire: cfg.frameAcquirer,
	}
}

func (b *cpuBackend) Type() BackendType {
	return BackendTypeCPU
}

func (b *cpuBackend) CreateBufferInit(label string, data []byte) (Buffer, error) {
	buf := newCPUBuffer(label, uint64(len(data)), false)
	copy(buf.bytes(), data)
	return buf, nil
}

func (b *cpuBackend) CreateBuffer(label string, size uint64) (Buffer, error) {
	return newCPUBuffer(label, size, false), nil
}

func (b *cpuBackend) CreateUniformBuffer(label string, size uint64) (Buffer, error) {
	return newCPUBuffer(label, size, true), nil
}

func (b *cpuBackend) CreateStorageImage(label string, width, height int) (Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid storage image size %dx%d", width, height)
	}
	return &cpuImage{
		label: label,
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

func (b *cpuBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf, ok := w.Provider.Buffer(w.Binding).(*cpuBuffer)
		if !ok {
			return fmt.Errorf("%w: %s binding %d", ErrUnknownResource, w.Provider.Label(), w.Binding)
		}
		if w.Offset+uint64(len(w.Data)) > buf.size {
			return fmt.Errorf("write of %d bytes at offset %d overflows %q (%d bytes)", len(w.Data), w.Offset, buf.label, buf.size)
		}
		copy(buf.bytes()[w.Offset:], w.Data)
	}
	return nil
}

func (b *cpuBackend) ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cb, ok := buf.(*cpuBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, buf.Label())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, cb.size)
	copy(out, cb.bytes())
	return out, nil
}

func (b *cpuBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Kernel() == nil {
		return fmt.Errorf("pipeline %q has no host kernel", p.PipelineKey())
	}
	p.SetPipeline(&cpuPipeline{
		kernel:        p.Kernel(),
		workGroupSize: p.WorkGroupSize(),
	})
	return nil
}

func (b *cpuBackend) InitBindGroup(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error {
	if _, ok := p.Pipeline().(*cpuPipeline); !ok {
		return fmt.Errorf("%w: pipeline %q is not registered", ErrUnknownResource, p.PipelineKey())
	}

	bg := &cpuBindGroup{
		buffers: make(map[int]*cpuBuffer),
		images:  make(map[int]*cpuImage),
	}
	for _, binding := range provider.Bindings() {
		if buf := provider.Buffer(binding); buf != nil {
			cb, ok := buf.(*cpuBuffer)
			if !ok {
				return fmt.Errorf("%w: %s binding %d", ErrUnknownResource, provider.Label(), binding)
			}
			bg.buffers[binding] = cb
			continue
		}
		if img := provider.Image(binding); img != nil {
			ci, ok := img.(*cpuImage)
			if !ok {
				return fmt.Errorf("%w: %s binding %d", ErrUnknownResource, provider.Label(), binding)
			}
			bg.images[binding] = ci
		}
	}
	provider.SetBindGroup(bg)
	return nil
}

func (b *cpuBackend) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recording {
		return fmt.Errorf("%w: previous frame not yet ended", ErrFrameUnavailable)
	}
	if b.acquire != nil {
		if err := b.acquire(); err != nil {
			return fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
		}
	}
	b.recording = true
	b.commands = b.commands[:0]
	return nil
}

func (b *cpuBackend) DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNoFrame
	}
	cp, ok := p.Pipeline().(*cpuPipeline)
	if !ok {
		return fmt.Errorf("%w: pipeline %q is not registered", ErrUnknownResource, p.PipelineKey())
	}
	bg, ok := provider.BindGroup().(*cpuBindGroup)
	if !ok {
		return fmt.Errorf("%w: bind group %q is not initialised", ErrUnknownResource, provider.Label())
	}

	b.commands = append(b.commands, cpuCommand{
		kind:      cpuCommandDispatch,
		pipeline:  cp,
		bindGroup: bg,
		groups:    workGroupCount,
	})
	return nil
}

func (b *cpuBackend) CopyBufferToBuffer(src, dst Buffer, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNoFrame
	}
	s, ok := src.(*cpuBuffer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, src.Label())
	}
	d, ok := dst.(*cpuBuffer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, dst.Label())
	}
	if size > s.size || size > d.size {
		return fmt.Errorf("copy of %d bytes exceeds %q (%d) or %q (%d)", size, s.label, s.size, d.label, d.size)
	}

	b.commands = append(b.commands, cpuCommand{
		kind: cpuCommandCopy,
		src:  s,
		dst:  d,
		size: size,
	})
	return nil
}

func (b *cpuBackend) Barrier() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recording {
		b.commands = append(b.commands, cpuCommand{kind: cpuCommandBarrier})
	}
}

func (b *cpuBackend) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNoFrame
	}
	b.recording = false

	for _, cmd := range b.commands {
		switch cmd.kind {
		case cpuCommandDispatch:
			b.dispatch(cmd)
		case cpuCommandCopy:
			copy(cmd.dst.bytes()[:cmd.size], cmd.src.bytes()[:cmd.size])
		case cpuCommandBarrier:
			// every dispatch joins before the next command runs
		}
	}
	b.commands = b.commands[:0]
	return nil
}

// dispatch runs every invocation of cmd. Workgroups are split into contiguous chunks, one pool
// task per chunk, and a WaitGroup joins them before returning.
func (b *cpuBackend) dispatch(cmd cpuCommand) {
	groups := cmd.groups
	total := int(groups[0]) * int(groups[1]) * int(groups[2])
	if total == 0 {
		return
	}
	size := cmd.pipeline.workGroupSize
	kernel := cmd.pipeline.kernel
	bindings := cmd.bindGroup

	chunks := min(total, b.workers*4)
	per := int(common.CeilDiv(uint32(total), uint32(chunks)))

	var wg sync.WaitGroup
	for start := 0; start < total; start += per {
		end := min(start+per, total)
		wg.Add(1)
		id := b.taskID
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for g := start; g < end; g++ {
					gx := uint32(g) % groups[0]
					gy := (uint32(g) / groups[0]) % groups[1]
					gz := uint32(g) / (groups[0] * groups[1])
					for lz := range size[2] {
						for ly := range size[1] {
							for lx := range size[0] {
								kernel([3]uint32{gx*size[0] + lx, gy*size[1] + ly, gz*size[2] + lz}, bindings)
							}
						}
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (b *cpuBackend) Present(img Image) error {
	if _, ok := img.(*cpuImage); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, img.Label())
	}
	return nil
}

func (b *cpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = nil
	b.recording = false
}
