// Package octree implements a sparse voxel octree over a 256³ coordinate space.
//
// Each level consumes one bit of every axis, least significant first, so the path to a
// cell is its Morton code read three bits at a time. Nodes store only populated octants.
// The tree is append-only.
package octree

// MaxDepth is the number of levels below the root.
const MaxDepth = 8

// Extent is the exclusive upper bound of every axis, 2^MaxDepth.
const Extent = 1 << MaxDepth

// Octree is a sparse occupancy tree. The root exclusively owns its children, and so on
// down; nodes are never shared.
type Octree struct {
	root  Node
	depth int
}

// New returns an empty octree.
func New() *Octree {
	return &Octree{}
}

// octant combines bit level of x, y and z into an octant index.
func octant(x, y, z uint32, level int) uint8 {
	return uint8((x>>level)&1 | ((y>>level)&1)<<1 | ((z>>level)&1)<<2)
}

// Get reports whether (x, y, z) is present. Coordinates outside [0, Extent) are never present.
//
// Parameters:
//   - x, y, z: cell coordinate
//
// Returns:
//   - bool: true if the cell has been inserted
func (o *Octree) Get(x, y, z uint32) bool {
	if x >= Extent || y >= Extent || z >= Extent {
		return false
	}

	current := &o.root
	for level := range MaxDepth {
		c, ok := current.child(octant(x, y, z, level))
		if !ok {
			return false
		}
		if c.Leaf() {
			return true
		}
		current = c
	}
	return true
}

// Insert marks (x, y, z) as present, creating any missing nodes along its path. Inserting
// the same coordinate again creates nothing.
//
// Parameters:
//   - x, y, z: cell coordinate
//
// Returns:
//   - uint32: the traversal code, octant index of level l at bits 3l..3l+2
//   - bool: false if the coordinate is outside [0, Extent) and nothing was inserted
func (o *Octree) Insert(x, y, z uint32) (uint32, bool) {
	if x >= Extent || y >= Extent || z >= Extent {
		return 0, false
	}

	current := &o.root
	var code uint32
	for level := range MaxDepth {
		idx := octant(x, y, z, level)
		c, ok := current.child(idx)
		if !ok {
			c = &Node{}
			current.setChild(idx, c)
		}
		current = c
		code |= uint32(idx) << (3 * level)
		o.depth = max(o.depth, level+1)
	}
	return code, true
}

// Depth returns the deepest level reached by any insert.
func (o *Octree) Depth() int {
	return o.depth
}

// Nodes returns the total node count, root included.
func (o *Octree) Nodes() int {
	return o.root.count()
}

// Root returns the root node.
func (o *Octree) Root() *Node {
	return &o.root
}
