package octree

import "math/bits"

// Node is an octree node. Only populated octants are stored: bit i of bitmask marks octant i
// as present, and children holds those octants densely packed in octant order, so
// len(children) == popcount(bitmask) at all times.
type Node struct {
	bitmask  uint8
	children []*Node
}

// childIndex returns the packed position of octant i: the number of populated octants
// below i. Indices above 7 yield the total child count.
func (n *Node) childIndex(i uint8) int {
	if i > 7 {
		return bits.OnesCount8(n.bitmask)
	}
	return bits.OnesCount8(n.bitmask & (1<<i - 1))
}

// child returns the node stored for octant i, if present.
func (n *Node) child(i uint8) (*Node, bool) {
	if i > 7 || n.bitmask&(1<<i) == 0 {
		return nil, false
	}
	return n.children[n.childIndex(i)], true
}

// setChild marks octant i as present and inserts c at its packed position.
// An existing child for the same octant is replaced.
func (n *Node) setChild(i uint8, c *Node) {
	if i > 7 {
		return
	}
	idx := n.childIndex(i)
	if n.bitmask&(1<<i) != 0 {
		n.children[idx] = c
		return
	}
	n.bitmask |= 1 << i
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = c
}

// Bitmask returns the populated-octant mask.
func (n *Node) Bitmask() uint8 {
	return n.bitmask
}

// Leaf reports whether the node has no children. A leaf reached during a lookup marks its
// whole subtree as present.
func (n *Node) Leaf() bool {
	return len(n.children) == 0
}

// count returns the number of nodes in the subtree rooted at n, n included.
func (n *Node) count() int {
	total := 1
	for _, c := range n.children {
		total += c.count()
	}
	return total
}
