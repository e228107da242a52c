package distgrav

import (
	"github.com/san-kum/gravtree/internal/interaction"
	"github.com/san-kum/gravtree/internal/remotetable"
	"github.com/san-kum/gravtree/internal/splitter"
	"github.com/san-kum/gravtree/internal/treenode"
)

// ExportRecord is one entry of the bounded export buffer: a local particle
// whose walk needs a remote top-tree leaf's actual mass distribution rather
// than the leaf's already-known aggregate. Row is the Remote-Node Table row
// the triggering TOP_TREE_LEAF_REMOTE node carries in RemoteRow (spec §9
// open question (a)) — it, not just the destination rank, is what the
// importer needs: a rank can own several top-tree leaves, and each must be
// walked as its own disjoint subtree or the importer would recount mass
// shared between them.
type ExportRecord struct {
	Particle int
	Rank     int
	Row      int32
}

// ExportWalker is the export side of spec §4.5.4's table, with the
// bounded-buffer pause/resume spec §4.5.4 requires: the walker has no stack,
// so suspending it is just remembering which pool index to resume at.
//
// Callers must call Bind on the splitter and interaction before Run, the
// same contract gravtree.Walk has; ExportWalker only drives advance/interact
// and Focus, it never binds.
type ExportWalker struct {
	pool      *treenode.Pool
	table     *remotetable.Table
	root      int32
	splitter  splitter.Splitter
	ia        interaction.Interaction
	maxExport int
	buffer    []ExportRecord
	index     int32
}

func NewExportWalker(pool *treenode.Pool, table *remotetable.Table, root int32, s splitter.Splitter, ia interaction.Interaction, maxExport int) *ExportWalker {
	return &ExportWalker{
		pool:      pool,
		table:     table,
		root:      root,
		splitter:  s,
		ia:        ia,
		maxExport: maxExport,
		index:     treenode.RootSibling,
	}
}

// Run resumes (or starts) the export walk and drives it until either the
// buffer fills to maxExport or every local particle has been walked to
// completion. The returned slice is only valid until the next Run call.
func (w *ExportWalker) Run() (records []ExportRecord, exhausted bool) {
	w.buffer = w.buffer[:0]
	for {
		if w.index == treenode.RootSibling {
			if !w.ia.Advance() {
				return w.buffer, true
			}
			w.splitter.Focus(w.ia.Current())
			w.index = w.root
		}

		n := w.pool.Node(w.index)
		if n.Flags.Has(treenode.Leaf) {
			if n.Flags.Has(treenode.TopTreeLeafRemote) {
				if w.splitter.Split(n) {
					w.buffer = append(w.buffer, ExportRecord{
						Particle: w.ia.Current(),
						Rank:     w.table.Proc[n.RemoteRow],
						Row:      n.RemoteRow,
					})
					w.index = n.NextSibling
					if len(w.buffer) >= w.maxExport {
						return w.buffer, false
					}
					continue
				}
			}
			w.ia.Interact(n)
			w.index = n.NextSibling
			continue
		}

		if w.splitter.Split(n) {
			w.index = n.FirstChild
		} else {
			w.ia.Interact(n)
			w.index = n.NextSibling
		}
	}
}

// ImportWalkOne runs every particle bound into ia through exactly the
// subtree rooted at start, and no further — the disjoint piece of the tree
// the corresponding TOP_TREE_LEAF_REMOTE node represented to the exporter
// (spec §4.5.4 "Correctness": "sees exactly the subtree it would have
// traversed had it been resident on r"). Because the tree is threaded rather
// than recursive, the subtree's exit point is not ROOT_SIBLING but start's
// own NextSibling, captured once before the particle loop begins.
func ImportWalkOne(pool *treenode.Pool, start int32, s splitter.Splitter, ia interaction.Interaction) {
	stop := pool.Node(start).NextSibling
	for ia.Advance() {
		s.Focus(ia.Current())
		index := start
		for index != stop {
			n := pool.Node(index)
			switch {
			case n.Flags.Has(treenode.Leaf):
				ia.Interact(n)
				index = n.NextSibling
			case s.Split(n):
				index = n.FirstChild
			default:
				ia.Interact(n)
				index = n.NextSibling
			}
		}
	}
}
