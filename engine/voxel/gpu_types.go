package voxel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/voxel-go/common"
)

// ErrInvalidLayout is returned when a byte buffer does not match the grid upload layout.
var ErrInvalidLayout = errors.New("invalid voxel grid layout")

// GridHeaderSize is the size of the grid header in bytes. The voxel array starts here,
// which keeps it on a 16-byte boundary for storage buffer bindings.
const GridHeaderSize = 64

// Header field offsets within the upload layout (std430).
const (
	dimOffset      = 0  // u32, followed by 12 bytes of padding
	posOffset      = 16 // vec3<f32> + 4 bytes padding
	selectedOffset = 32 // vec3<f32> + 4 bytes padding
	normalOffset   = 48 // vec3<f32> + 4 bytes padding
)

// GPUVoxelGridSource is the WGSL declaration matching the layout produced by Marshal.
const GPUVoxelGridSource = `struct VoxelGrid {
    dim: u32,
    pos: vec3<f32>,
    selected: vec3<f32>,
    normal: vec3<f32>,
    pad0: u32,
    voxels: array<u32>,
}`

// Size returns the marshalled size of the grid in bytes: the header plus four bytes per voxel.
//
// Returns:
//   - int: GridHeaderSize + 4*dim³
func (g *Grid) Size() int {
	return GridHeaderSize + 4*len(g.voxels)
}

// Marshal serializes the grid into the upload layout: header fields first, each vec3
// padded to 16 bytes, followed by the flat row-major voxel array.
//
// Returns:
//   - []byte: the serialized buffer, Size() bytes long
func (g *Grid) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[dimOffset:], g.dim)
	common.PutVec3(buf, posOffset, g.pos)
	common.PutVec3(buf, selectedOffset, g.selected)
	common.PutVec3(buf, normalOffset, g.normal)
	for i, v := range g.voxels {
		binary.LittleEndian.PutUint32(buf[GridHeaderSize+i*4:], uint32(v))
	}
	return buf
}

// Unmarshal decodes a buffer produced by Marshal (or read back from the compute backend)
// into the grid, replacing its header and voxels. The buffer's dim must match the grid's.
//
// Parameters:
//   - data: the serialized grid
//
// Returns:
//   - error: ErrInvalidLayout (wrapped) if the size or dim does not match
func (g *Grid) Unmarshal(data []byte) error {
	if len(data) < GridHeaderSize {
		return fmt.Errorf("%w: %d bytes is smaller than the header", ErrInvalidLayout, len(data))
	}
	dim := binary.LittleEndian.Uint32(data[dimOffset:])
	if dim != g.dim {
		return fmt.Errorf("%w: dim %d does not match grid dim %d", ErrInvalidLayout, dim, g.dim)
	}
	if len(data) != g.Size() {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLayout, len(data), g.Size())
	}
	g.pos = common.Vec3At(data, posOffset)
	g.selected = common.Vec3At(data, selectedOffset)
	g.normal = common.Vec3At(data, normalOffset)
	for i := range g.voxels {
		g.voxels[i] = Voxel(binary.LittleEndian.Uint32(data[GridHeaderSize+i*4:]))
	}
	return nil
}

// DimFromLayout reads the dim field out of a serialized grid header.
//
// Parameters:
//   - data: the serialized grid
//
// Returns:
//   - uint32: the grid edge length
//   - error: ErrInvalidLayout if the buffer is too short or inconsistent with its dim
func DimFromLayout(data []byte) (uint32, error) {
	if len(data) < GridHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes is smaller than the header", ErrInvalidLayout, len(data))
	}
	dim := binary.LittleEndian.Uint32(data[dimOffset:])
	if want := GridHeaderSize + 4*int(dim)*int(dim)*int(dim); len(data) != want {
		return 0, fmt.Errorf("%w: dim %d needs %d bytes, got %d", ErrInvalidLayout, dim, want, len(data))
	}
	return dim, nil
}
