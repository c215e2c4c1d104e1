package voxel

import (
	"math/rand"

	"github.com/Carmen-Shannon/voxel-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Material type ids.
const (
	TypeEmpty uint8 = iota
	TypeSand
	TypeSolid
)

// SandColor is the base color used for procedurally filled sand.
var SandColor = mgl32.Vec3{0.5, 0.3, 0.1}

// FillFunc decides the initial value of a cell. Returning false leaves the cell untouched.
type FillFunc func(x, y, z, dim uint32) (Voxel, bool)

// SphereFill returns a fill routine that places sand in the sphere inscribed in the grid:
// a cell is inside when (2x-n)² + (2y-n)² + (2z-n)² <= (n-1)². Each filled voxel's color
// is base shifted by a random HSV variance in [-variance, variance).
//
// Parameters:
//   - base: the base color
//   - variance: maximum absolute HSV shift
//   - rng: random source; nil gives every voxel the unvaried base color
//
// Returns:
//   - FillFunc: the fill routine
func SphereFill(base mgl32.Vec3, variance float32, rng *rand.Rand) FillFunc {
	return func(x, y, z, dim uint32) (Voxel, bool) {
		n := float32(dim)
		r := n - 1
		p := mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(2).Sub(mgl32.Vec3{n, n, n})
		if p.Dot(p) > r*r {
			return 0, false
		}

		color := base
		if rng != nil && variance > 0 {
			color = common.VaryColor(base, (rng.Float32()*2-1)*variance)
		}
		return NewVoxel(TypeSand, color[0], color[1], color[2]), true
	}
}

// DiagonalFill marks every (i, i, i) cell with voxel v.
func DiagonalFill(v Voxel) FillFunc {
	return func(x, y, z, _ uint32) (Voxel, bool) {
		return v, x == y && y == z
	}
}

// FloorFill fills every cell with y < height with voxel v.
func FloorFill(height uint32, v Voxel) FillFunc {
	return func(_, y, _, _ uint32) (Voxel, bool) {
		return v, y < height
	}
}
