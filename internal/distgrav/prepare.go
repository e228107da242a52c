package distgrav

import (
	"github.com/san-kum/gravtree/internal/gravtree"
	"github.com/san-kum/gravtree/internal/loadbalance"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/remotetable"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Prepare is spec §4.5.1-§4.5.2 plus the first, local half of §4.4.3: it
// replicates the top tree from lb, then inserts every particle in c —
// assumed already resident on localRank by the caller's own domain
// decomposition — starting at its own top-tree leaf rather than ROOT, and
// aggregates local moments. The caller still owes ExchangeRemoteMoments and
// Tree.UpdateRemoteMoments before the tree's moments are final, since those
// need a transport endpoint Prepare has no business holding.
func Prepare(pool *treenode.Pool, lb loadbalance.Tree, localRank, dim int, c *particle.Container) (*gravtree.Tree, *remotetable.Table, error) {
	root, table, err := ReplicateTopTree(pool, lb, dim, localRank)
	if err != nil {
		return nil, nil, err
	}
	tree := gravtree.Adopt(dim, pool, root)
	for i := 0; i < c.N(); i++ {
		start, err := TopLeafFor(lb, table, c.Key[i])
		if err != nil {
			return nil, nil, err
		}
		if err := tree.Insert(c, i, start); err != nil {
			return nil, nil, err
		}
	}
	tree.UpdateMoments(c, root, treenode.RootSibling)
	return tree, table, nil
}
