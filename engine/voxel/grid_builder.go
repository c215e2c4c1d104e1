package voxel

import "github.com/go-gl/mathgl/mgl32"

// GridBuilderOption is a functional option for configuring a Grid at construction.
type GridBuilderOption func(*Grid)

// WithPosition sets the grid's world-space origin.
//
// Parameters:
//   - pos: the origin of cell (0, 0, 0)
//
// Returns:
//   - GridBuilderOption: option function to apply
func WithPosition(pos mgl32.Vec3) GridBuilderOption {
	return func(g *Grid) {
		g.pos = pos
	}
}

// WithSelected sets the initial selected cell. The default (-1, -1, -1) means no selection.
//
// Parameters:
//   - selected: the selected cell coordinate
//
// Returns:
//   - GridBuilderOption: option function to apply
func WithSelected(selected mgl32.Vec3) GridBuilderOption {
	return func(g *Grid) {
		g.selected = selected
	}
}

// WithNormal sets the initial surface normal scratch value.
func WithNormal(normal mgl32.Vec3) GridBuilderOption {
	return func(g *Grid) {
		g.normal = normal
	}
}

// WithFill runs the fill routine over every cell once the voxels are allocated.
//
// Parameters:
//   - fill: the fill predicate
//
// Returns:
//   - GridBuilderOption: option function to apply
func WithFill(fill FillFunc) GridBuilderOption {
	return func(g *Grid) {
		g.fill = fill
	}
}
