package voxel

import (
	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"
)

// NoSelection is the selected value of a grid with nothing selected.
var NoSelection = mgl32.Vec3{-1, -1, -1}

// Grid is a dense cubic voxel grid of dim³ cells stored row-major:
// index(x, y, z) = x*dim² + y*dim + z.
//
// A Grid performs no locking. Only one writer may touch it at a time; once uploaded, the
// update coordinator guarantees that by writing a scratch copy instead.
type Grid struct {
	dim      uint32
	pos      mgl32.Vec3
	selected mgl32.Vec3
	normal   mgl32.Vec3
	voxels   []Voxel

	fill FillFunc
}

// NewGrid allocates a grid of dim³ empty voxels, applies the options and, if WithFill was
// given, runs the fill routine over every cell.
//
// Parameters:
//   - dim: edge length of the cube
//   - options: functional options (position, selection, fill)
//
// Returns:
//   - *Grid: the new grid
func NewGrid(dim uint32, options ...GridBuilderOption) *Grid {
	total := uint64(dim) * uint64(dim) * uint64(dim)
	g := &Grid{
		dim:      dim,
		selected: NoSelection,
		voxels:   make([]Voxel, total),
	}
	for _, opt := range options {
		opt(g)
	}
	if g.fill != nil {
		g.Fill(g.fill)
	}
	return g
}

// index returns the flat index of (x, y, z), or false if any coordinate is out of range.
func (g *Grid) index(x, y, z uint32) (int, bool) {
	if x >= g.dim || y >= g.dim || z >= g.dim {
		return 0, false
	}
	d := uint64(g.dim)
	i := uint64(x)*d*d + uint64(y)*d + uint64(z)
	if i >= uint64(len(g.voxels)) {
		return 0, false
	}
	return int(i), true
}

// Get returns the voxel at (x, y, z).
//
// Parameters:
//   - x, y, z: cell coordinate
//
// Returns:
//   - Voxel: the voxel value
//   - bool: false if the coordinate lies outside the grid
func (g *Grid) Get(x, y, z uint32) (Voxel, bool) {
	i, ok := g.index(x, y, z)
	if !ok {
		return 0, false
	}
	return g.voxels[i], true
}

// GetMut returns a pointer to the voxel at (x, y, z) for in-place edits.
//
// Parameters:
//   - x, y, z: cell coordinate
//
// Returns:
//   - *Voxel: pointer into the grid's storage
//   - bool: false if the coordinate lies outside the grid
func (g *Grid) GetMut(x, y, z uint32) (*Voxel, bool) {
	i, ok := g.index(x, y, z)
	if !ok {
		return nil, false
	}
	return &g.voxels[i], true
}

// Set stores v at (x, y, z) and reports whether the coordinate was in range.
func (g *Grid) Set(x, y, z uint32, v Voxel) bool {
	p, ok := g.GetMut(x, y, z)
	if ok {
		*p = v
	}
	return ok
}

// Total returns the number of cells, dim³.
func (g *Grid) Total() int {
	return len(g.voxels)
}

// Dim returns the grid edge length.
func (g *Grid) Dim() uint32 {
	return g.dim
}

// Voxels returns the flat row-major voxel slice. The slice aliases the grid's storage.
func (g *Grid) Voxels() []Voxel {
	return g.voxels
}

// Position returns the grid's world-space origin.
func (g *Grid) Position() mgl32.Vec3 {
	return g.pos
}

// SetPosition moves the grid's world-space origin.
func (g *Grid) SetPosition(pos mgl32.Vec3) {
	g.pos = pos
}

// Selected returns the selected cell, or NoSelection.
func (g *Grid) Selected() mgl32.Vec3 {
	return g.selected
}

// SetSelected sets the selected cell.
func (g *Grid) SetSelected(selected mgl32.Vec3) {
	g.selected = selected
}

// Normal returns the face normal of the selection.
func (g *Grid) Normal() mgl32.Vec3 {
	return g.normal
}

// SetNormal sets the face normal of the selection.
func (g *Grid) SetNormal(normal mgl32.Vec3) {
	g.normal = normal
}

// Fill visits every cell in index order and stores the value returned by fill for each
// cell it accepts. Cells it rejects are left untouched.
//
// Parameters:
//   - fill: the fill predicate
func (g *Grid) Fill(fill FillFunc) {
	d := g.dim
	i := 0
	for x := range d {
		for y := range d {
			for z := range d {
				if v, ok := fill(x, y, z, d); ok {
					g.voxels[i] = v
				}
				i++
			}
		}
	}
}

// ForEachOccupied calls fn for every non-empty cell in index order.
func (g *Grid) ForEachOccupied(fn func(x, y, z uint32, v Voxel)) {
	d := g.dim
	for i, v := range g.voxels {
		if v.Empty() {
			continue
		}
		x, y, z := coordinate(uint64(i), d)
		fn(x, y, z, v)
	}
}

// coordinate is the inverse of index. The arithmetic is 64-bit since dim³ exceeds 32 bits
// past dim 1625.
func coordinate(i uint64, dim uint32) (x, y, z uint32) {
	d := uint64(dim)
	return uint32(i / (d * d)), uint32((i / d) % d), uint32(i % d)
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int {
	n := 0
	for _, v := range g.voxels {
		if !v.Empty() {
			n++
		}
	}
	return n
}

// Checksum returns an xxhash digest of the marshalled grid. Two grids with equal
// checksums hold the same header and voxels.
func (g *Grid) Checksum() uint64 {
	return xxhash.Sum64(g.Marshal())
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	c.voxels = make([]Voxel, len(g.voxels))
	copy(c.voxels, g.voxels)
	return &c
}
