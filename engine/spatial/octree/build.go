package octree

import (
	"github.com/Carmen-Shannon/voxel-go/engine/spatial/morton"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
)

// FromCoordinates builds an octree from the given cells, inserted in Morton order so
// nodes sharing a path are created back to back. coords is sorted in place.
// Cells outside the octree's extent are skipped.
//
// Parameters:
//   - coords: occupied cells
//
// Returns:
//   - *Octree: the populated tree
//   - int: the number of cells skipped for being out of range
func FromCoordinates(coords [][3]uint32) (*Octree, int) {
	morton.Sort(coords)
	o := New()
	skipped := 0
	for _, c := range coords {
		if _, ok := o.Insert(c[0], c[1], c[2]); !ok {
			skipped++
		}
	}
	return o, skipped
}

// FromGrid builds an octree holding every non-empty cell of g.
func FromGrid(g *voxel.Grid) (*Octree, int) {
	coords := make([][3]uint32, 0, g.Occupied())
	g.ForEachOccupied(func(x, y, z uint32, _ voxel.Voxel) {
		coords = append(coords, [3]uint32{x, y, z})
	})
	return FromCoordinates(coords)
}
