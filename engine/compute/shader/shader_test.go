package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPhysicsShader(t *testing.T) {
	s, err := LoadShader("physics", ShaderTypeCompute, "physics.wgsl")
	require.NoError(t, err)

	assert.Equal(t, "main", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 8}, s.WorkGroupSize())

	desc, ok := s.BindGroupLayoutDescriptors()[0]
	require.True(t, ok)
	require.Len(t, desc.Entries, 4)

	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, desc.Entries[1].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[2].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[3].Buffer.Type)
	for _, e := range desc.Entries {
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}

	assert.Equal(t, "current", s.BindGroupVarName(0, 0))
	assert.Equal(t, "scratch", s.BindGroupVarName(0, 1))
	assert.Equal(t, "", s.BindGroupVarName(0, 9))
}

func TestLoadRaycastShaderStorageTexture(t *testing.T) {
	s, err := LoadShader("raycast", ShaderTypeCompute, "raycast.wgsl")
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkGroupSize())

	entries := s.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 4)
	out := entries[3]
	assert.Equal(t, uint32(3), out.Binding)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, out.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, out.StorageTexture.Access)
	assert.Equal(t, wgpu.TextureViewDimension2D, out.StorageTexture.ViewDimension)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[2].Buffer.Type)
}

func TestLoadBlitShader(t *testing.T) {
	s, err := LoadShader("blit", ShaderTypeRender, "blit.wgsl")
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.VertexEntryPoint())
	assert.Equal(t, "fs_main", s.FragmentEntryPoint())

	entries := s.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[0].Visibility)
}

func TestIdentityShaderDefaultsMissingAxes(t *testing.T) {
	s, err := NewShader("partial", ShaderTypeCompute, `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@compute @workgroup_size(64)
fn run(@builtin(global_invocation_id) id: vec3<u32>) {}
`)
	require.NoError(t, err)
	assert.Equal(t, "run", s.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkGroupSize())
}

func TestCommentedBindingsAreIgnored(t *testing.T) {
	s, err := NewShader("commented", ShaderTypeCompute, `
// @group(0) @binding(5) var<uniform> old: Foo;
@group(0) @binding(0) var<storage, read_write> dst: array<u32>;
@compute @workgroup_size(8, 8, 8)
fn main() {}
`)
	require.NoError(t, err)
	require.Len(t, s.BindGroupLayoutDescriptors()[0].Entries, 1)
	assert.Equal(t, "", s.BindGroupVarName(0, 5))
}

func TestMissingEntryPoints(t *testing.T) {
	_, err := NewShader("empty", ShaderTypeCompute, "fn main() {}")
	assert.ErrorIs(t, err, errMissingComputeEntry)

	_, err = NewShader("half", ShaderTypeRender, "@vertex fn vs() {}")
	assert.ErrorIs(t, err, errMissingRenderEntry)

	_, err = LoadShader("missing", ShaderTypeCompute, "nope.wgsl")
	assert.Error(t, err)
}

func TestLoadComputeShaderOverridesWorkGroupSize(t *testing.T) {
	s, err := LoadComputeShader("physics", "physics.wgsl", [3]uint32{4, 4, 0})
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{4, 4, 1}, s.WorkGroupSize())
	assert.Contains(t, s.Source(), "@workgroup_size(4, 4, 1)")
	assert.NotContains(t, s.Source(), "@workgroup_size(8, 8, 8)")
}
