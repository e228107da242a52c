package gravtree

import (
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
	"github.com/san-kum/gravtree/internal/vecmath"
)

// UpdateMoments is the single recursive post-order pass of spec §4.4.3. It
// computes, for every populated child slot in Z-order, the node index of
// the next populated slot as that child's NextSibling (the last inherits
// sibling), then overwrites the moment payload with the aggregated
// mass/com and FirstChild = smallest populated child index. A LEAF's
// moment comes straight from its resident particle, or zero if it has
// none.
func (t *Tree) UpdateMoments(c *particle.Container, idx, sibling int32) {
	n := t.Pool.Node(idx)

	if n.Flags.Has(treenode.Leaf) {
		n.FirstChild = treenode.NotExist
		n.NextSibling = sibling
		if n.Flags.Has(treenode.HasParticle) {
			pid := int(n.Pid)
			n.Mass = c.Mass[pid]
			for k := 0; k < t.Dim; k++ {
				n.COM[k] = c.Pos[k][pid]
			}
		} else {
			n.Mass = 0
			n.COM = [3]float64{}
		}
		return
	}

	populated := populatedChildren(n, t.Dim)
	for i, ch := range populated {
		childSibling := sibling
		if i+1 < len(populated) {
			childSibling = populated[i+1]
		}
		t.UpdateMoments(c, ch, childSibling)
	}

	mass, com, skip := aggregate(t.Pool, populated, t.Dim)
	n.Mass = mass
	n.COM = com
	n.FirstChild = populated[0]
	n.NextSibling = sibling
	if skip {
		n.Flags |= treenode.SkipBranch
	}
}

// UpdateRemoteMoments is the post-build refresh of spec §4.5.3 step 4: any
// node that is not a TopTreeLeaf is recomputed bottom-up from its children;
// TopTreeLeaf nodes keep the moments they just received from the all-gather
// as authoritative and are not descended into. Children are found through
// the FirstChild/NextSibling thread UpdateMoments laid down.
func (t *Tree) UpdateRemoteMoments(idx int32) {
	n := t.Pool.Node(idx)
	if n.Flags.Has(treenode.TopTreeLeaf) || n.Flags.Has(treenode.Leaf) {
		return
	}

	var populated []int32
	for ch := n.FirstChild; ch != n.NextSibling; ch = t.Pool.Node(ch).NextSibling {
		populated = append(populated, ch)
	}
	for _, ch := range populated {
		t.UpdateRemoteMoments(ch)
	}

	mass, com, _ := aggregate(t.Pool, populated, t.Dim)
	n.Mass = mass
	n.COM = com
}

func populatedChildren(n *treenode.Node, dim int) []int32 {
	populated := make([]int32, 0, 1<<dim)
	for _, ch := range n.Children[:1<<dim] {
		if ch != treenode.NotExist {
			populated = append(populated, ch)
		}
	}
	return populated
}

// aggregate sums mass and mass-weighted COM across the given children (spec
// §3: mass(N)=Σmass(child), com(N)=Σmass(child)·com(child)/mass(N)), and
// reports whether every child carries SkipBranch.
func aggregate(pool *treenode.Pool, children []int32, dim int) (mass float64, com [3]float64, allSkip bool) {
	allSkip = true
	sum := make([]float64, dim)
	for _, ch := range children {
		cn := pool.Node(ch)
		mass += cn.Mass
		if dim == 3 {
			vecmath.WeightedAccumulate3(sum, cn.Mass, cn.COM[:3])
		} else {
			vecmath.WeightedAccumulate(sum, cn.Mass, cn.COM[:dim])
		}
		if !cn.Flags.Has(treenode.SkipBranch) {
			allSkip = false
		}
	}
	if mass > 0 {
		vecmath.Scale(1/mass, sum)
	}
	for k := 0; k < dim; k++ {
		com[k] = sum[k]
	}
	return mass, com, allSkip
}
