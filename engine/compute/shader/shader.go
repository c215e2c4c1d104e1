package shader

import (
	"embed"
	"fmt"
	"path"

	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/*.wgsl
var assets embed.FS

// ShaderType identifies the pipeline stage a shader module is built for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeRender indicates a module holding both a @vertex and a @fragment entry point.
	ShaderTypeRender
)

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	workGroupSize              [3]uint32
	entryPoint                 string
	vertexEntryPoint           string
	fragmentEntryPoint         string
}

// Shader is a parsed WGSL module. It exposes the source, entry points, workgroup size and
// the bind group layouts derived from the module's @group/@binding declarations.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// Type returns the stage this module targets.
	Type() ShaderType

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or "" if no such binding exists
	BindGroupVarName(group, binding int) string

	// WorkGroupSize returns the @workgroup_size of the compute entry point. Omitted
	// dimensions are 1.
	//
	// Returns:
	//   - [3]uint32: workgroup size per axis
	WorkGroupSize() [3]uint32

	// EntryPoint returns the compute entry point name.
	EntryPoint() string

	// VertexEntryPoint returns the vertex entry point name of a render module.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the fragment entry point name of a render module.
	FragmentEntryPoint() string
}

var _ Shader = &shader{}

// NewShader parses WGSL source into a Shader.
//
// Parameters:
//   - key: unique identifier used as the module label
//   - shaderType: the stage the module is built for
//   - source: the WGSL source
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the module lacks the entry points its type requires
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
	}
	if err := parseWGSL(s); err != nil {
		return nil, fmt.Errorf("failed to parse shader %q: %w", key, err)
	}
	return s, nil
}

// LoadShader parses one of the embedded WGSL assets.
//
// Parameters:
//   - key: unique identifier used as the module label
//   - shaderType: the stage the module is built for
//   - name: asset file name, e.g. "physics.wgsl"
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the asset does not exist or fails to parse
func LoadShader(key string, shaderType ShaderType, name string) (Shader, error) {
	src, err := assets.ReadFile(path.Join("assets", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read shader asset %q: %w", name, err)
	}
	return NewShader(key, shaderType, string(src))
}

// LoadComputeShader parses one of the embedded compute assets with its @workgroup_size
// replaced by size, so dispatch counts and the module agree on a configured workgroup size.
//
// Parameters:
//   - key: unique identifier used as the module label
//   - name: asset file name, e.g. "physics.wgsl"
//   - size: workgroup size per axis; zero axes are treated as 1
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the asset does not exist or fails to parse
func LoadComputeShader(key, name string, size [3]uint32) (Shader, error) {
	src, err := assets.ReadFile(path.Join("assets", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read shader asset %q: %w", name, err)
	}
	return NewShader(key, ShaderTypeCompute, overrideWorkGroupSize(string(src), size))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Type() ShaderType {
	return s.shaderType
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) WorkGroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) VertexEntryPoint() string {
	return s.vertexEntryPoint
}

func (s *shader) FragmentEntryPoint() string {
	return s.fragmentEntryPoint
}
