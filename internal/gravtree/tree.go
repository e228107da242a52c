package gravtree

import (
	"fmt"
	"math"

	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// MaxSplitDepth bounds the sibling-collision recursion of Insert (spec
// §4.4.2's recommended cap).
const MaxSplitDepth = 64

// Tree is the local oct/quad tree: a node pool plus the dimension and
// domain it was built over. The zero value is not usable; construct with
// New.
type Tree struct {
	Dim  int
	Pool *treenode.Pool
	Root int32

	domainMin, domainMax []float64
}

// New validates dim (spec §7: dim ∉ {2,3} is a configuration error) and
// returns a tree with a pool preallocated for initialCapacity nodes.
func New(dim, initialCapacity int) (*Tree, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dim must be 2 or 3, got %d", ErrConfiguration, dim)
	}
	return &Tree{
		Dim:  dim,
		Pool: treenode.NewPool(initialCapacity),
		Root: treenode.NotExist,
	}, nil
}

// Adopt wraps a pool and root an external builder already populated — the
// parallel path, where internal/distgrav replicates the top tree before any
// particle is inserted, rather than Tree growing its own pool from scratch.
func Adopt(dim int, pool *treenode.Pool, root int32) *Tree {
	return &Tree{Dim: dim, Pool: pool, Root: root}
}

// CreateRoot resets the pool and acquires the ROOT node spanning
// [domainMin,domainMax] (spec §4.4.1): width is the largest axis extent,
// center is the domain midpoint, and ROOT starts life as an empty LEAF.
func (t *Tree) CreateRoot(domainMin, domainMax []float64) error {
	t.Pool.Reset()
	t.domainMin, t.domainMax = domainMin, domainMax

	idx, err := t.Pool.Acquire(1)
	if err != nil {
		return err
	}
	root := t.Pool.Node(idx)
	root.Flags = treenode.Leaf
	width := 0.0
	for k := 0; k < t.Dim; k++ {
		if extent := domainMax[k] - domainMin[k]; extent > width {
			width = extent
		}
	}
	root.Width = width
	for k := 0; k < t.Dim; k++ {
		root.Center[k] = (domainMin[k] + domainMax[k]) / 2
	}
	root.Pid = treenode.NotExist
	t.Root = idx
	return nil
}

// boundsPadding inflates a tight particle bounding box by a small relative
// margin so the half-open containment test (spec §3/§8 invariant 4) never
// fails for a particle that happens to sit exactly on the bounding box's
// own extremum — otherwise the particle defining the upper bound on an axis
// would never satisfy x < hi at any depth, since a "+" child inherits its
// parent's upper edge verbatim.
const boundsPadding = 1e-9

// Build resets the tree, creates ROOT from the container's bounds (no
// domain override), inserts every particle — Real and Ghost alike (spec
// §3: ghosts participate in construction, they are only skipped by the
// interaction walker) — and aggregates moments bottom-up.
func (t *Tree) Build(c *particle.Container) error {
	min, max := c.Bounds()
	for k := range min {
		margin := boundsPadding * math.Max(1, max[k]-min[k])
		min[k] -= margin
		max[k] += margin
	}
	return t.BuildInDomain(c, min, max)
}

// BuildInDomain is Build with an explicit domain, used by parallel builds
// where every rank must agree on the same bounds for the top tree to be
// byte-identical (spec §4.5.1).
func (t *Tree) BuildInDomain(c *particle.Container, domainMin, domainMax []float64) error {
	if err := t.CreateRoot(domainMin, domainMax); err != nil {
		return err
	}
	for i := 0; i < c.N(); i++ {
		if err := t.Insert(c, i, t.Root); err != nil {
			return err
		}
	}
	t.UpdateMoments(c, t.Root, treenode.RootSibling)
	return nil
}
