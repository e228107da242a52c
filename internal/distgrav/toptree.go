// Package distgrav is the parallel gravity tree of spec §4.5: top-tree
// replication from a load-balance tree, remote-moment exchange over the
// Remote-Node Table, and the bounded-buffer export/import walk with
// round-trip termination detection.
package distgrav

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/loadbalance"
	"github.com/san-kum/gravtree/internal/remotetable"
	"github.com/san-kum/gravtree/internal/treenode"
)

// ReplicateTopTree is spec §4.5.1: copy the load-balance tree's structure
// into pool, reordering each parent's children from Hilbert order to
// Z-order via the load-balance tree's own permutation, flagging every
// copied node TOP_TREE and every load-balance leaf TOP_TREE_LEAF. It
// returns the gravity-tree root and a freshly populated Remote-Node Table
// with one row per load-balance leaf, already in (owning_rank, SFC-key)
// order because rank ownership is contiguous in leaf-array order.
func ReplicateTopTree(pool *treenode.Pool, lb loadbalance.Tree, dim, localRank int) (int32, *remotetable.Table, error) {
	pool.Reset()

	leafToPool := make([]int32, lb.NumLeaves())
	root, err := copyTopTreeNode(pool, lb, lb.Root(), leafToPool)
	if err != nil {
		return treenode.NotExist, nil, err
	}

	table, err := remotetable.New(dim, lb.NumLeaves())
	if err != nil {
		return treenode.NotExist, nil, err
	}
	for i := 0; i < lb.NumLeaves(); i++ {
		table.Map[i] = leafToPool[i]
		table.Proc[i] = lb.LeafRank(i)
		n := pool.Node(leafToPool[i])
		n.RemoteRow = int32(i)
		if table.Proc[i] != localRank {
			n.Flags |= treenode.TopTreeLeafRemote | treenode.SkipBranch
		}
	}

	markSkipBranch(pool, root)
	return root, table, nil
}

func copyTopTreeNode(pool *treenode.Pool, lb loadbalance.Tree, lbNode int32, leafToPool []int32) (int32, error) {
	idx, err := pool.Acquire(1)
	if err != nil {
		return treenode.NotExist, err
	}
	center := lb.Center(lbNode)
	width := lb.Width(lbNode)

	if lb.IsLeaf(lbNode) {
		n := pool.Node(idx)
		n.Flags = treenode.Leaf | treenode.TopTree | treenode.TopTreeLeaf
		copy(n.Center[:], center)
		n.Width = width
		n.Pid = treenode.NotExist
		for i := range n.Children {
			n.Children[i] = treenode.NotExist
		}
		leafToPool[lb.LeafArrayIndex(lbNode)] = idx
		return idx, nil
	}

	childrenStart := lb.ChildrenStart(lbNode)
	perm := lb.ZorderToHilbert(lbNode)
	childIdx := make([]int32, len(perm))
	for z, hilbertOffset := range perm {
		ci, err := copyTopTreeNode(pool, lb, childrenStart+int32(hilbertOffset), leafToPool)
		if err != nil {
			return treenode.NotExist, err
		}
		childIdx[z] = ci
	}

	n := pool.Node(idx) // re-resolve: the recursion above may have grown the pool
	n.Flags = treenode.TopTree
	copy(n.Center[:], center)
	n.Width = width
	n.Pid = treenode.NotExist
	for i := range n.Children {
		n.Children[i] = treenode.NotExist
	}
	for z, ci := range childIdx {
		n.Children[z] = ci
	}
	return idx, nil
}

// markSkipBranch is the post-order half of spec §3's SKIP_BRANCH invariant:
// set on a non-leaf iff every descendant leaf is TOP_TREE_LEAF_REMOTE. It
// runs once, immediately after replication, over the build-time Children
// thread (update_moments has not run yet).
func markSkipBranch(pool *treenode.Pool, idx int32) bool {
	n := pool.Node(idx)
	if n.Flags.Has(treenode.Leaf) {
		return n.Flags.Has(treenode.SkipBranch)
	}
	allSkip := true
	for _, c := range n.Children {
		if c == treenode.NotExist {
			continue
		}
		if !markSkipBranch(pool, c) {
			allSkip = false
		}
	}
	if allSkip {
		pool.Node(idx).Flags |= treenode.SkipBranch
	}
	return allSkip
}

// TopLeafFor is spec §4.5.2: translate a particle's SFC key to the pool
// index of the gravity-tree node it must be inserted under, by way of the
// load-balance tree's own find_leaf and the Remote-Node Table's map column.
func TopLeafFor(lb loadbalance.Tree, table *remotetable.Table, key uint64) (int32, error) {
	leaf, ok := lb.FindLeaf(key)
	if !ok {
		return treenode.NotExist, fmt.Errorf("distgrav: key %d has no owning leaf", key)
	}
	return table.Map[leaf.ArrayIndex], nil
}
