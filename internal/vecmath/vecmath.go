// Package vecmath wires gonum's vector helpers into the hot paths of the
// gravity solver: gonum.org/v1/gonum/spatial/r3 for the 3D case (the
// dimension spec.md's scenarios exercise almost exclusively) and
// gonum.org/v1/gonum/floats for the small dimension-agnostic reductions the
// 2D case still needs. Neither the interaction kernel nor the moment pass
// hand-rolls a dot product or an axis-wise accumulation where gonum already
// has one (grounded on pthm-soup, the one repo in the retrieval pack that
// imports gonum.org/v1/gonum).
package vecmath

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// SquaredNorm returns dot(v, v) via gonum/floats, used by the monopole
// kernel's r².
func SquaredNorm(v []float64) float64 { return floats.Dot(v, v) }

// Sub writes a-b into dst and returns it, dimension-agnostic (2D or 3D).
func Sub(dst, a, b []float64) []float64 {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
	return dst
}

// Vec3 lifts a 3-element slice into a gonum r3.Vec.
func Vec3(v []float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// FromVec3 writes a gonum r3.Vec back into a 3-element slice.
func FromVec3(dst []float64, v r3.Vec) {
	dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
}

// WeightedAccumulate3 adds mass*pos onto sum in place using r3.Vec
// arithmetic, the 3D fast path for the moment pass's center-of-mass
// reduction (spec §3's com(N) = Σ mass(child)·com(child)).
func WeightedAccumulate3(sum []float64, mass float64, pos []float64) {
	s := Vec3(sum)
	s = r3.Add(s, r3.Scale(mass, Vec3(pos)))
	FromVec3(sum, s)
}

// WeightedAccumulate is the dimension-agnostic fallback (2D, or 3D without
// the r3.Vec fast path) used by the moment pass when dim != 3.
func WeightedAccumulate(sum []float64, mass float64, pos []float64) {
	for k := range sum {
		sum[k] += mass * pos[k]
	}
}

// Scale multiplies every element of v by c in place via floats.Scale; the
// moment pass uses it for both dim==2 and dim==3.
func Scale(c float64, v []float64) { floats.Scale(c, v) }
