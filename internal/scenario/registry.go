// Package scenario is a map-of-constructors registry, the shape of the
// teacher's internal/experiment/registry.go (model/integrator/controller
// name -> constructor func), holding the literal scenarios spec §8 names
// instead of dynsim's physical models.
package scenario

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/particle"
)

// Registry resolves a scenario name to the particle.Container it builds
// and the domain it should be inserted into.
type Registry struct {
	scenarios map[string]func() (*particle.Container, []float64, []float64, error)
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]func() (*particle.Container, []float64, []float64, error))}
	r.scenarios["single-particle"] = singleParticle
	r.scenarios["two-corners"] = twoCorners
	r.scenarios["square-four"] = squareFour
	return r
}

// Build returns the named scenario's particle container and the domain
// bounds it was designed for.
func (r *Registry) Build(name string) (c *particle.Container, domainMin, domainMax []float64, err error) {
	fn, ok := r.scenarios[name]
	if !ok {
		return nil, nil, nil, fmt.Errorf("scenario: unknown scenario %q", name)
	}
	return fn()
}

// Names lists every registered scenario.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	return names
}

// singleParticle is spec §8 scenario 1: one particle, a unit cube; the
// walk must produce zero acceleration (self-interaction skipped).
func singleParticle() (*particle.Container, []float64, []float64, error) {
	c, err := particle.New(3, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	c.SetPosition(0, []float64{0.5, 0.5, 0.5})
	c.Mass[0] = 1
	return c, []float64{0, 0, 0}, []float64{1, 1, 1}, nil
}

// twoCorners is spec §8 scenario 2: two unit masses at opposite corners of
// the unit cube.
func twoCorners() (*particle.Container, []float64, []float64, error) {
	c, err := particle.New(3, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	c.SetPosition(0, []float64{0.25, 0.25, 0.25})
	c.Mass[0] = 1
	c.SetPosition(1, []float64{0.75, 0.75, 0.75})
	c.Mass[1] = 1
	return c, []float64{0, 0, 0}, []float64{1, 1, 1}, nil
}

// squareFour is spec §8 scenario 3: four co-planar unit masses forming a
// square, dim=2.
func squareFour() (*particle.Container, []float64, []float64, error) {
	c, err := particle.New(2, 4)
	if err != nil {
		return nil, nil, nil, err
	}
	positions := [][]float64{{.25, .25}, {.75, .25}, {.25, .75}, {.75, .75}}
	for i, p := range positions {
		c.SetPosition(i, p)
		c.Mass[i] = 1
	}
	return c, []float64{0, 0}, []float64{1, 1}, nil
}
