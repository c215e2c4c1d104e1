package pipeline

import "github.com/Carmen-Shannon/voxel-go/engine/compute/shader"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShader sets the WGSL module used by GPU backends.
//
// Parameters:
//   - s: the shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader for this pipeline
func WithShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.shader = s
	}
}

// WithKernel sets the host entry point used by the CPU backend.
//
// Parameters:
//   - k: the kernel function
//
// Returns:
//   - PipelineBuilderOption: a function that sets the kernel for this pipeline
func WithKernel(k KernelFunc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.kernel = k
	}
}

// WithWorkGroupSize overrides the workgroup size reported by the shader.
//
// Parameters:
//   - size: workgroup size per axis; zero axes are treated as 1
//
// Returns:
//   - PipelineBuilderOption: a function that sets the workgroup size for this pipeline
func WithWorkGroupSize(size [3]uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		for i := range size {
			if size[i] == 0 {
				size[i] = 1
			}
		}
		p.workGroupSize = &size
	}
}
