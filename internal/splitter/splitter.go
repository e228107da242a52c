// Package splitter implements the polymorphic opening test of spec §4.2:
// given a node and the particle currently being walked, decide whether the
// node must be opened (recurse into its children) or accepted as a single
// monopole. It is a small capability interface in the same spirit as
// internal/dynamo.Controller/Integrator in the teacher — one method deep,
// swappable without touching the walker.
package splitter

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Splitter binds to a particle container, focuses on one particle at a
// time, and answers Split for nodes the walker visits while that particle
// is focused.
type Splitter interface {
	Bind(c *particle.Container)
	Focus(pid int)
	Split(n *treenode.Node) bool
}

// Kind names a configured splitter instance, used by gconfig to select one
// at configure-time.
type Kind string

const (
	BarnesHutKind    Kind = "barnes-hut"
	AccelerationKind Kind = "acceleration"
)

// New builds the splitter instance named by kind. theta is required by
// BarnesHutKind (and used as AccelerationKind's fallback, per REDESIGN (b)
// in SPEC_FULL.md); minAccel is required by AccelerationKind.
func New(kind Kind, theta, minAccel, g float64) (Splitter, error) {
	switch kind {
	case BarnesHutKind:
		return NewBarnesHut(theta)
	case AccelerationKind:
		return NewAcceleration(theta, minAccel, g)
	default:
		return nil, fmt.Errorf("splitter: unknown kind %q", kind)
	}
}
