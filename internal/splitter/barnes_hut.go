package splitter

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/graverr"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// BarnesHut is the classic opening criterion: a node of width s at squared
// distance d² from the focused particle is opened iff s² >= d²·θ². The
// squared form avoids a square root on the hot path (spec §4.2).
type BarnesHut struct {
	theta2 float64

	c   *particle.Container
	pid int
}

// NewBarnesHut validates θ ∈ (0,1] (spec §7 configuration error) and
// returns a ready splitter.
func NewBarnesHut(theta float64) (*BarnesHut, error) {
	if theta <= 0 || theta > 1 {
		return nil, fmt.Errorf("%w: theta must be in (0,1], got %f", graverr.ErrConfiguration, theta)
	}
	return &BarnesHut{theta2: theta * theta}, nil
}

func (b *BarnesHut) Bind(c *particle.Container) { b.c = c }
func (b *BarnesHut) Focus(pid int)              { b.pid = pid }

func (b *BarnesHut) Split(n *treenode.Node) bool {
	d2 := 0.0
	for k := 0; k < b.c.Dim; k++ {
		dx := b.c.Pos[k][b.pid] - n.COM[k]
		d2 += dx * dx
	}
	s2 := n.Width * n.Width
	return s2 >= d2*b.theta2
}
