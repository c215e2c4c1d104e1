package pipeline

import (
	"image"

	"github.com/Carmen-Shannon/voxel-go/engine/compute/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline, used only to present the output image.
	PipelineTypeRender
)

// Bindings gives a host kernel access to the resources of its bind group.
// Buffers are exposed as little-endian 32-bit words, matching how WGSL sees them.
type Bindings interface {
	// Words returns the buffer bound at binding as a word slice, or nil if none is bound.
	Words(binding int) []uint32

	// Image returns the image bound at binding, or nil if none is bound.
	Image(binding int) *image.RGBA
}

// KernelFunc is the host implementation of a compute entry point. It is invoked once per
// global invocation id with no ordering between invocations, so it may only write
// locations owned by id.
type KernelFunc func(id [3]uint32, b Bindings)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// shader is the WGSL module used by GPU backends
	shader shader.Shader
	// kernel is the host entry point used by the CPU backend
	kernel KernelFunc

	// workGroupSize overrides the shader's @workgroup_size when set
	workGroupSize *[3]uint32

	// backendPipeline is the backend object created at registration (*wgpu.ComputePipeline,
	// *wgpu.RenderPipeline, or a host-side record)
	backendPipeline any
}

// Pipeline describes one pass program: the WGSL module for GPU backends, the host kernel for
// the CPU backend, and the workgroup size both share.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for labels and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the WGSL module, or nil if the pipeline has none.
	//
	// Returns:
	//   - shader.Shader: the shader or nil
	Shader() shader.Shader

	// Kernel returns the host entry point, or nil if the pipeline has none.
	//
	// Returns:
	//   - KernelFunc: the kernel or nil
	Kernel() KernelFunc

	// WorkGroupSize returns the per-axis workgroup size: the explicit override if set,
	// otherwise the shader's @workgroup_size, otherwise (1, 1, 1).
	//
	// Returns:
	//   - [3]uint32: workgroup size per axis
	WorkGroupSize() [3]uint32

	// Pipeline returns the backend pipeline object created at registration.
	// Note: The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the backend pipeline object, or nil before registration
	Pipeline() any

	// SetPipeline stores the backend pipeline object.
	//
	// Parameters:
	//   - p: the backend pipeline object
	SetPipeline(p any)

	// Release releases the backend pipeline object if it holds releasable resources.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline of the given type.
//
// Parameters:
//   - key: unique identifier for the pipeline
//   - pipelineType: compute or render
//   - options: functional options setting the shader, kernel and workgroup size
//
// Returns:
//   - Pipeline: the new pipeline, not yet registered with a backend
func NewPipeline(key string, pipelineType PipelineType, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineType: pipelineType,
		pipelineKey:  key,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Kernel() KernelFunc {
	return p.kernel
}

func (p *pipeline) WorkGroupSize() [3]uint32 {
	if p.workGroupSize != nil {
		return *p.workGroupSize
	}
	if p.shader != nil {
		return p.shader.WorkGroupSize()
	}
	return [3]uint32{1, 1, 1}
}

func (p *pipeline) Pipeline() any {
	return p.backendPipeline
}

func (p *pipeline) SetPipeline(bp any) {
	p.backendPipeline = bp
}

func (p *pipeline) Release() {
	if r, ok := p.backendPipeline.(interface{ Release() }); ok {
		r.Release()
	}
	p.backendPipeline = nil
}
