// Package morton converts 3D coordinates to and from 64-bit Morton (Z-order) codes.
//
// Bit i of x, y and z lands on bit 3i, 3i+1 and 3i+2 of the code. Each axis carries at
// most 21 bits, so every code fits in 63 bits.
package morton

import (
	"cmp"
	"slices"
)

// Bits is the number of bits encoded per axis.
const Bits = 21

// MaxCoordinate is the largest coordinate value representable on one axis.
const MaxCoordinate = 1<<Bits - 1

// Encode interleaves x, y and z one bit at a time. Coordinates are masked to 21 bits.
//
// Parameters:
//   - x, y, z: coordinates, each < 2²¹
//
// Returns:
//   - uint64: the Morton code
func Encode(x, y, z uint32) uint64 {
	var code uint64
	for i := range uint64(Bits) {
		bit := uint64(1) << i
		code |= (uint64(x) & bit) << (2 * i)
		code |= (uint64(y) & bit) << (2*i + 1)
		code |= (uint64(z) & bit) << (2*i + 2)
	}
	return code
}

// EncodeMagicBits produces the same code as Encode using a fixed shift/mask spread per axis.
//
// Parameters:
//   - x, y, z: coordinates, each < 2²¹
//
// Returns:
//   - uint64: the Morton code
func EncodeMagicBits(x, y, z uint32) uint64 {
	return splitBy3(x) | splitBy3(y)<<1 | splitBy3(z)<<2
}

// Decode is the inverse of Encode and EncodeMagicBits.
//
// Parameters:
//   - code: a Morton code
//
// Returns:
//   - x, y, z: the coordinates packed in code
func Decode(code uint64) (x, y, z uint32) {
	return compactBy3(code), compactBy3(code >> 1), compactBy3(code >> 2)
}

// DecodeNaive reverses Encode one bit at a time. It agrees with Decode for every code.
func DecodeNaive(code uint64) (x, y, z uint32) {
	for i := range uint64(Bits) {
		x |= uint32((code >> (3 * i)) & 1 << i)
		y |= uint32((code >> (3*i + 1)) & 1 << i)
		z |= uint32((code >> (3*i + 2)) & 1 << i)
	}
	return x, y, z
}

// splitBy3 spreads the low 21 bits of a so consecutive bits end up three positions apart.
func splitBy3(a uint32) uint64 {
	x := uint64(a) & 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// compactBy3 gathers every third bit of x starting at bit 0 back into the low 21 bits.
func compactBy3(x uint64) uint32 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return uint32(x)
}

// Sort orders coordinates by their Morton code, ties kept in input order.
//
// Parameters:
//   - coords: coordinates to sort in place
func Sort(coords [][3]uint32) {
	slices.SortStableFunc(coords, func(a, b [3]uint32) int {
		return cmp.Compare(EncodeMagicBits(a[0], a[1], a[2]), EncodeMagicBits(b[0], b[1], b[2]))
	})
}
