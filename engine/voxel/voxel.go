package voxel

import (
	"math"

	"github.com/Carmen-Shannon/voxel-go/common"
)

// Voxel is a single grid cell packed into 32 bits.
//
//	bits 27..31  red   (5 bits, 0-31)
//	bits 21..26  green (6 bits, 0-63)
//	bits 16..20  blue  (5 bits, 0-31)
//	bits  8..15  unused
//	bits  0..7   type  (material id, 0-255)
//
// The zero value is an empty voxel: black with type 0.
type Voxel uint32

const (
	redShift   = 27
	greenShift = 21
	blueShift  = 16

	redMax   = 31
	greenMax = 63
	blueMax  = 31

	redMask   Voxel = redMax << redShift
	greenMask Voxel = greenMax << greenShift
	blueMask  Voxel = blueMax << blueShift
	colorMask       = redMask | greenMask | blueMask
	typeMask  Voxel = 0xff
)

// NewVoxel builds a voxel with the given type and color.
//
// Parameters:
//   - t: the material type id
//   - r, g, b: color channels in [0, 1]
//
// Returns:
//   - Voxel: the packed voxel
func NewVoxel(t uint8, r, g, b float32) Voxel {
	var v Voxel
	v.SetColor(r, g, b)
	v.SetType(t)
	return v
}

// quantize maps a channel to [0, limit]. The absolute value is taken first and the result
// is clamped to [0, 1] so the quantized value always fits its field.
func quantize(c float32, limit uint32) Voxel {
	c = common.Clamp01(float32(math.Abs(float64(c))))
	return Voxel(uint32(c * float32(limit)))
}

// SetColor quantizes r, g and b (5/6/5 bits) and ORs them into the color fields.
// Existing color bits are not cleared: a voxel's color is written once. Call ClearColor
// first to recolor.
//
// Parameters:
//   - r, g, b: color channels; |c| is clamped to [0, 1]
func (v *Voxel) SetColor(r, g, b float32) {
	*v |= quantize(r, redMax) << redShift
	*v |= quantize(g, greenMax) << greenShift
	*v |= quantize(b, blueMax) << blueShift
}

// ClearColor zeroes the three color fields and leaves the type untouched.
func (v *Voxel) ClearColor() {
	*v &^= colorMask
}

// Color unpacks the color fields, normalizing each by its maximum representable value.
//
// Returns:
//   - r, g, b: channels in [0, 1]
func (v Voxel) Color() (r, g, b float32) {
	r = float32((v&redMask)>>redShift) / redMax
	g = float32((v&greenMask)>>greenShift) / greenMax
	b = float32((v&blueMask)>>blueShift) / blueMax
	return r, g, b
}

// Type returns the material id stored in the low byte.
func (v Voxel) Type() uint8 {
	return uint8(v & typeMask)
}

// SetType replaces the low byte with t.
func (v *Voxel) SetType(t uint8) {
	*v = (*v &^ typeMask) | Voxel(t)
}

// Empty reports whether the voxel is the default all-zero value.
func (v Voxel) Empty() bool {
	return v == 0
}
