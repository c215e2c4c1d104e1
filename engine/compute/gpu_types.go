package compute

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/voxel-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Mouse click bits carried in GPUFrameConstants.MouseClick.
const (
	ClickPaint uint32 = 1 << 0
	ClickErase uint32 = 1 << 1
)

// GPUFrameConstantsSize is the size of GPUFrameConstants in bytes.
const GPUFrameConstantsSize = 160

// GPUSelectionSize is the size of GPUSelection in bytes.
const GPUSelectionSize = 32

// Word offsets of the GPUFrameConstants scalar fields, as seen by host kernels.
const (
	frameCameraToWorldWord     = 0
	frameInverseProjectionWord = 16
	frameMouseClickWord        = 32
	frameBrushSizeWord         = 33
	frameScreenWidthWord       = 34
	frameScreenHeightWord      = 35
	frameBrushVoxelWord        = 36
)

// Word offsets of the GPUSelection fields.
const (
	selectionSelectedWord = 0
	selectionHitWord      = 3
	selectionNormalWord   = 4
)

// GPUFrameConstants is the per-frame constants block shared by the physics and raycast passes.
// Matches the WGSL FrameConstants struct (160 bytes, uniform layout).
type GPUFrameConstants struct {
	CameraToWorld     [16]float32 // offset   0: mat4x4<f32>
	InverseProjection [16]float32 // offset  64: mat4x4<f32>
	MouseClick        uint32      // offset 128: bit 0 paint, bit 1 erase
	BrushSize         uint32      // offset 132
	ScreenWidth       uint32      // offset 136
	ScreenHeight      uint32      // offset 140
	BrushVoxel        uint32      // offset 144: voxel written by the paint brush
	_pad              [3]uint32   // offset 148: padding to 160 bytes
}

// Size returns the size of the GPUFrameConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (g *GPUFrameConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrameConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFrameConstants) Marshal() []byte {
	buf := make([]byte, GPUFrameConstantsSize)
	common.PutMat4(buf, frameCameraToWorldWord*4, mgl32.Mat4(g.CameraToWorld))
	common.PutMat4(buf, frameInverseProjectionWord*4, mgl32.Mat4(g.InverseProjection))
	binary.LittleEndian.PutUint32(buf[frameMouseClickWord*4:], g.MouseClick)
	binary.LittleEndian.PutUint32(buf[frameBrushSizeWord*4:], g.BrushSize)
	binary.LittleEndian.PutUint32(buf[frameScreenWidthWord*4:], g.ScreenWidth)
	binary.LittleEndian.PutUint32(buf[frameScreenHeightWord*4:], g.ScreenHeight)
	binary.LittleEndian.PutUint32(buf[frameBrushVoxelWord*4:], g.BrushVoxel)
	return buf
}

// frameConstantsFromWords decodes the constants block as a host kernel sees it.
func frameConstantsFromWords(w []uint32) GPUFrameConstants {
	var g GPUFrameConstants
	if len(w) < GPUFrameConstantsSize/4 {
		return g
	}
	for i := range 16 {
		g.CameraToWorld[i] = math.Float32frombits(w[frameCameraToWorldWord+i])
		g.InverseProjection[i] = math.Float32frombits(w[frameInverseProjectionWord+i])
	}
	g.MouseClick = w[frameMouseClickWord]
	g.BrushSize = w[frameBrushSizeWord]
	g.ScreenWidth = w[frameScreenWidthWord]
	g.ScreenHeight = w[frameScreenHeightWord]
	g.BrushVoxel = w[frameBrushVoxelWord]
	return g
}

// GPUSelection is the cell under the screen center as found by the raycast pass.
// Matches the WGSL Selection struct (32 bytes, std430).
type GPUSelection struct {
	Selected [3]float32 // offset  0: hit cell, or (-1, -1, -1)
	Hit      uint32     // offset 12: 1 when Selected is valid
	Normal   [3]float32 // offset 16: face normal of the hit
	_pad     uint32     // offset 28
}

// NoSelection returns the selection value used before the first raycast and after a miss.
func NoSelection() GPUSelection {
	return GPUSelection{Selected: [3]float32{-1, -1, -1}}
}

// Size returns the size of the GPUSelection struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUSelection) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSelection struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSelection) Marshal() []byte {
	buf := make([]byte, GPUSelectionSize)
	common.PutVec3(buf, selectionSelectedWord*4, mgl32.Vec3(g.Selected))
	binary.LittleEndian.PutUint32(buf[selectionHitWord*4:], g.Hit)
	common.PutVec3(buf, selectionNormalWord*4, mgl32.Vec3(g.Normal))
	return buf
}

// UnmarshalSelection decodes a selection buffer read back from a backend.
//
// Parameters:
//   - data: the 32-byte selection buffer
//
// Returns:
//   - GPUSelection: the decoded selection
//   - error: if data is shorter than GPUSelectionSize
func UnmarshalSelection(data []byte) (GPUSelection, error) {
	if len(data) < GPUSelectionSize {
		return GPUSelection{}, fmt.Errorf("selection buffer is %d bytes, want %d", len(data), GPUSelectionSize)
	}
	return GPUSelection{
		Selected: common.Vec3At(data, selectionSelectedWord*4),
		Hit:      binary.LittleEndian.Uint32(data[selectionHitWord*4:]),
		Normal:   common.Vec3At(data, selectionNormalWord*4),
	}, nil
}
