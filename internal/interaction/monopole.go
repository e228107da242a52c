package interaction

import (
	"math"

	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/treenode"
	"github.com/san-kum/gravtree/internal/vecmath"
)

// Monopole is the plain Newtonian 1/r² gravity kernel of spec §4.3. An
// optional Softening (REDESIGN (c) in SPEC_FULL.md, following spec §9(c))
// turns it into a Plummer kernel a_k += m·dr_k/(r²+ε²)^{3/2}; Softening==0
// reduces exactly to the unsoftened spec §4.3 kernel.
type Monopole struct {
	G         float64
	Softening float64

	c       *particle.Container
	cursor  int
	dr      []float64
}

// NewMonopole returns a monopole kernel with gravitational constant g and
// no softening.
func NewMonopole(g float64) *Monopole {
	return &Monopole{G: g}
}

func (m *Monopole) Bind(c *particle.Container) {
	m.c = c
	m.cursor = -1
	m.dr = make([]float64, c.Dim)
}

// Advance moves to the next non-ghost particle, zeroing its accelerator
// column (spec §6: "Acceleration columns are zeroed per particle at the
// start of that particle's traversal"), and reports whether one was found.
func (m *Monopole) Advance() bool {
	for m.cursor++; m.cursor < m.c.N(); m.cursor++ {
		if m.c.IsReal(m.cursor) {
			m.c.ZeroAcceleration(m.cursor)
			return true
		}
	}
	return false
}

func (m *Monopole) Done() bool    { return m.cursor >= m.c.N() }
func (m *Monopole) Current() int  { return m.cursor }

// Interact accumulates node n's contribution onto the currently focused
// particle. A LEAF whose resident particle is the focused particle itself
// is skipped (self-interaction is geometrically identified, not by index
// comparison, because the walker never knows which pid a node holds once
// it has passed through update_moments).
func (m *Monopole) Interact(n *treenode.Node) {
	i := m.cursor
	if n.Flags.Has(treenode.Leaf) && m.insideCell(i, n) {
		return
	}

	dim := m.c.Dim
	for k := 0; k < dim; k++ {
		m.dr[k] = n.COM[k] - m.c.Pos[k][i]
	}
	r2 := vecmath.SquaredNorm(m.dr) + m.Softening*m.Softening
	if r2 == 0 {
		return
	}
	rInv := 1.0 / math.Sqrt(r2)
	r3Inv := rInv * rInv * rInv
	f := m.G * n.Mass * r3Inv
	for k := 0; k < dim; k++ {
		m.c.Acc[k][i] += f * m.dr[k]
	}
}

func (m *Monopole) insideCell(i int, n *treenode.Node) bool {
	half := n.Width / 2
	for k := 0; k < m.c.Dim; k++ {
		x := m.c.Pos[k][i]
		lo := n.Center[k] - half
		hi := n.Center[k] + half
		if !(x >= lo && x < hi) {
			return false
		}
	}
	return true
}
