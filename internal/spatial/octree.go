// Package spatial provides a point index over path nodes built as an
// inverted octree: the tree starts at a single leaf and grows upward
// by replacing its root, so no global bounds are needed in advance.
package spatial

import (
	"github.com/veinworks/cavemesh/internal/geom"
)

// Index answers "which node indices lie within radius R of a point"
// as a conservative superset: false positives are possible, false
// negatives are not. Leaves have a fixed side length of
// 2 × maxInfluenceRadius, so results are whole leaf buckets whose
// box intersects the query sphere.
type Index struct {
	leafHalf float64
	root     *treeNode
	count    int
}

type treeNode struct {
	bounds   geom.AABB
	half     float64
	items    []int         // populated on leaves only
	children [8]*treeNode  // populated on internal nodes only
}

// NewIndex creates an empty index. maxInfluenceRadius fixes the leaf
// half-width; larger values mean coarser buckets and more false
// positives, never missed results.
func NewIndex(maxInfluenceRadius float64) *Index {
	return &Index{leafHalf: maxInfluenceRadius}
}

// Len returns the number of inserted items.
func (ix *Index) Len() int { return ix.count }

// Insert adds an item index at the given position. The first insert
// creates a single leaf centered on the point; later inserts outside
// the current bounds grow the tree by doubling the root.
func (ix *Index) Insert(pos geom.Vec3, item int) {
	if ix.root == nil {
		ix.root = newLeaf(pos, ix.leafHalf)
		ix.root.items = append(ix.root.items, item)
		ix.count++
		return
	}

	for !ix.root.bounds.Contains(pos) {
		ix.root = ix.grow(pos)
	}

	n := ix.root
	for n.half > ix.leafHalf {
		oct := octant(n.bounds.Center(), pos)
		child := n.children[oct]
		if child == nil {
			child = newChild(n, oct)
			n.children[oct] = child
		}
		n = child
	}
	n.items = append(n.items, item)
	ix.count++
}

// WithinRadius returns every item whose leaf box intersects the
// sphere of the given radius around pos. Panics if called before any
// insert: there is no meaningful empty-index answer and the misuse
// is structural.
func (ix *Index) WithinRadius(pos geom.Vec3, radius float64) []int {
	if ix.root == nil {
		panic("spatial: WithinRadius on empty index")
	}
	var out []int
	ix.root.collect(pos, radius*radius, &out)
	return out
}

// grow replaces the root with one twice the size, the old root
// becoming the child octant nearest its own center. The new root is
// shifted toward pos so repeated growth converges on containing it.
func (ix *Index) grow(pos geom.Vec3) *treeNode {
	old := ix.root
	oldCenter := old.bounds.Center()

	var newCenter geom.Vec3
	for i := 0; i < 3; i++ {
		if pos[i] >= oldCenter[i] {
			newCenter[i] = oldCenter[i] + old.half
		} else {
			newCenter[i] = oldCenter[i] - old.half
		}
	}

	root := &treeNode{
		bounds: geom.CubeAround(newCenter, old.half*2),
		half:   old.half * 2,
	}
	root.children[octant(newCenter, oldCenter)] = old
	return root
}

func newLeaf(center geom.Vec3, half float64) *treeNode {
	return &treeNode{bounds: geom.CubeAround(center, half), half: half}
}

func newChild(parent *treeNode, oct int) *treeNode {
	q := parent.half / 2
	c := parent.bounds.Center()
	for i := 0; i < 3; i++ {
		if oct&(1<<i) != 0 {
			c[i] += q
		} else {
			c[i] -= q
		}
	}
	return &treeNode{bounds: geom.CubeAround(c, q), half: q}
}

// octant maps a point to the child slot index relative to a center:
// bit 0 = +x, bit 1 = +y, bit 2 = +z.
func octant(center, pos geom.Vec3) int {
	oct := 0
	for i := 0; i < 3; i++ {
		if pos[i] >= center[i] {
			oct |= 1 << i
		}
	}
	return oct
}

func (n *treeNode) collect(pos geom.Vec3, radiusSq float64, out *[]int) {
	if n.bounds.DistSqToPoint(pos) > radiusSq {
		return
	}
	if n.items != nil {
		*out = append(*out, n.items...)
		return
	}
	for _, c := range n.children {
		if c != nil {
			c.collect(pos, radiusSq, out)
		}
	}
}

// walk visits every node, used by tests to check structural
// invariants.
func (ix *Index) walk(fn func(bounds geom.AABB, half float64, leaf bool)) {
	var rec func(n *treeNode)
	rec = func(n *treeNode) {
		leaf := n.half <= ix.leafHalf
		fn(n.bounds, n.half, leaf)
		for _, c := range n.children {
			if c != nil {
				rec(c)
			}
		}
	}
	if ix.root != nil {
		rec(ix.root)
	}
}
