package gravtree

import (
	"github.com/san-kum/gravtree/internal/interaction"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/splitter"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Walk is the serial threaded traversal of spec §4.4.4: bind the
// interaction, then for every non-ghost particle, descend from ROOT
// following FirstChild when the splitter opens a node, NextSibling
// otherwise, interacting at LEAVES and at any node the splitter declines to
// open. The walk has no stack — it is the whole point of threading the
// tree in UpdateMoments.
func (t *Tree) Walk(c *particle.Container, s splitter.Splitter, ia interaction.Interaction) {
	s.Bind(c)
	ia.Bind(c)

	for ia.Advance() {
		s.Focus(ia.Current())

		index := t.Root
		for index != treenode.RootSibling {
			n := t.Pool.Node(index)
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
