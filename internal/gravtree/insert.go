package gravtree

import (
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Insert places particle pid into the tree, starting the descent at
// start (ROOT in serial mode; a top-tree leaf in parallel mode, per spec
// §4.5.2). It is iterative, not recursive (spec §4.4.2): an explicit loop
// walks down, and indices — never pointers — are carried across the
// Acquire calls that may grow the pool.
func (t *Tree) Insert(c *particle.Container, pid int, start int32) error {
	current := start
	depth := 0

	for {
		n := t.Pool.Node(current)

		if !n.Flags.Has(treenode.Leaf) {
			idx := childOctant(c, pid, n, t.Dim)
			if n.Children[idx] == treenode.NotExist {
				return t.attachLeafChild(current, idx, pid, c)
			}
			current = n.Children[idx]
			depth++
			if depth > MaxSplitDepth {
				return &SplitDepthExceededError{ParticleA: pid, Depth: depth}
			}
			continue
		}

		if !n.Flags.Has(treenode.HasParticle) {
			n.Pid = int32(pid)
			n.Flags |= treenode.HasParticle
			return nil
		}

		resident := int(n.Pid)
		if samePosition(c, pid, resident) {
			return &DegenerateInsertionError{ParticleA: pid, ParticleB: resident, Position: c.Position(pid)}
		}

		if err := t.subdivide(current, resident, c); err != nil {
			return err
		}
		depth++
		if depth > MaxSplitDepth {
			return &SplitDepthExceededError{ParticleA: pid, ParticleB: resident, Depth: depth}
		}
		// Re-enter the loop at the same node, now a non-leaf, to place pid.
	}
}

// childOctant computes the Z-order child index: bit k is set iff the
// particle's coordinate on axis k is at or above the node's center, so a
// coordinate equal to the center lands in the upper child, whose half-open
// cell [center, center+width/2) contains it.
func childOctant(c *particle.Container, pid int, n *treenode.Node, dim int) int {
	idx := 0
	for k := 0; k < dim; k++ {
		if c.Pos[k][pid] >= n.Center[k] {
			idx |= 1 << k
		}
	}
	return idx
}

// attachLeafChild acquires a new LEAF child of parent holding pid, in the
// octant addressed by idx.
func (t *Tree) attachLeafChild(parent int32, idx int, pid int, c *particle.Container) error {
	childIdx, err := t.Pool.Acquire(1)
	if err != nil {
		return err
	}
	p := t.Pool.Node(parent) // re-resolve: Acquire may have grown the pool
	child := t.Pool.Node(childIdx)

	child.Flags = treenode.Leaf | treenode.HasParticle
	child.Width = p.Width / 2
	child.Pid = int32(pid)
	setChildCenter(p, child, idx, t.Dim)

	p.Children[idx] = childIdx
	return nil
}

// subdivide turns the LEAF at current holding resident into a non-leaf,
// re-homing resident into its own new child (spec §4.4.2: "clear LEAF and
// HAS_PARTICLE ... create a child for j using get_index(N, x_j)").
func (t *Tree) subdivide(current int32, resident int, c *particle.Container) error {
	n := t.Pool.Node(current)
	residentIdx := childOctant(c, resident, n, t.Dim)

	childIdx, err := t.Pool.Acquire(1)
	if err != nil {
		return err
	}
	n = t.Pool.Node(current) // re-resolve after Acquire
	for i := range n.Children {
		n.Children[i] = treenode.NotExist
	}
	n.Flags &^= treenode.Leaf | treenode.HasParticle

	child := t.Pool.Node(childIdx)
	child.Flags = treenode.Leaf | treenode.HasParticle
	child.Width = n.Width / 2
	child.Pid = int32(resident)
	setChildCenter(n, child, residentIdx, t.Dim)

	n.Children[residentIdx] = childIdx
	return nil
}

func setChildCenter(parent, child *treenode.Node, idx, dim int) {
	half := parent.Width / 4
	for k := 0; k < dim; k++ {
		if idx&(1<<k) != 0 {
			child.Center[k] = parent.Center[k] + half
		} else {
			child.Center[k] = parent.Center[k] - half
		}
	}
}

func samePosition(c *particle.Container, a, b int) bool {
	for k := 0; k < c.Dim; k++ {
		if c.Pos[k][a] != c.Pos[k][b] {
			return false
		}
	}
	return true
}
