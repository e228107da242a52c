// Package interaction implements the polymorphic per-particle accumulator
// of spec §4.3: bind a particle container, iterate particles skipping
// ghosts, and consume nodes via Interact. It plays the same role for the
// walker that internal/dynamo.Metric plays for the teacher's simulator loop
// — a small interface the hot loop calls without a virtual dispatch per
// node body, advanced one particle at a time with its own cursor.
package interaction

import (
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Interaction binds to a particle container, advances a cursor over its
// non-ghost particles, and accumulates node contributions onto whichever
// particle is currently focused.
type Interaction interface {
	Bind(c *particle.Container)
	Advance() bool
	Interact(n *treenode.Node)
	Done() bool
	// Current returns the index of the particle currently focused, valid
	// only between a true Advance() and the next Advance()/Done() call.
	Current() int
}
