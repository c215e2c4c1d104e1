package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// CeilDiv returns the number of groups of size d needed to cover n items.
// Used to derive workgroup counts for a dispatch.
//
// Parameters:
//   - n: item count along one axis
//   - d: group size along the same axis (0 is treated as 1)
//
// Returns:
//   - uint32: ceil(n / d)
func CeilDiv(n, d uint32) uint32 {
	if d == 0 {
		d = 1
	}
	return (n + d - 1) / d
}

// Clamp01 clamps v into [0, 1]. NaN maps to 0.
func Clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PutVec3 writes a vec3<f32> in little-endian order at buf[offset:offset+12].
// The caller owns the trailing 4 bytes of padding required by std430 vec3 alignment.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the first component
//   - v: the vector to write
func PutVec3(buf []byte, offset int, v mgl32.Vec3) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v[i]))
	}
}

// Vec3At reads a little-endian vec3<f32> starting at buf[offset].
//
// Parameters:
//   - buf: source buffer
//   - offset: byte offset of the first component
//
// Returns:
//   - mgl32.Vec3: the decoded vector
func Vec3At(buf []byte, offset int) mgl32.Vec3 {
	var v mgl32.Vec3
	for i := range 3 {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+i*4:]))
	}
	return v
}

// PutMat4 writes a column-major mat4x4<f32> in little-endian order at buf[offset:offset+64].
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the first element
//   - m: the matrix to write
func PutMat4(buf []byte, offset int, m mgl32.Mat4) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(m[i]))
	}
}
