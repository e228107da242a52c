package splitter

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/graverr"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Acceleration is the "acceleration criterion" MAC referenced but left
// unspecified by spec §4.2/§9 open question (b): a node is opened iff the
// contribution it would otherwise contribute as a monopole exceeds a
// configured minimum acceleration, G·mass(node)/d² > minAccel. When
// minAccel <= 0 it falls back to the Barnes–Hut test with the configured
// theta, so a single splitter kind can always be constructed even if the
// caller only supplies theta.
type Acceleration struct {
	g        float64
	minAccel float64
	fallback *BarnesHut

	c   *particle.Container
	pid int
}

// NewAcceleration validates minAccel (must be non-negative) and theta
// (required for the fallback), then returns a ready splitter.
func NewAcceleration(theta, minAccel, g float64) (*Acceleration, error) {
	if minAccel < 0 {
		return nil, fmt.Errorf("%w: minAccel must be >= 0, got %f", graverr.ErrConfiguration, minAccel)
	}
	fb, err := NewBarnesHut(theta)
	if err != nil {
		return nil, err
	}
	return &Acceleration{g: g, minAccel: minAccel, fallback: fb}, nil
}

func (a *Acceleration) Bind(c *particle.Container) {
	a.c = c
	a.fallback.Bind(c)
}

func (a *Acceleration) Focus(pid int) {
	a.pid = pid
	a.fallback.Focus(pid)
}

func (a *Acceleration) Split(n *treenode.Node) bool {
	if a.minAccel <= 0 {
		return a.fallback.Split(n)
	}
	d2 := 0.0
	for k := 0; k < a.c.Dim; k++ {
		dx := a.c.Pos[k][a.pid] - n.COM[k]
		d2 += dx * dx
	}
	if d2 == 0 {
		return true
	}
	return a.g*n.Mass/d2 > a.minAccel
}
