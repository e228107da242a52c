// Package gravtree builds and walks the local oct/quad tree of spec §4.4:
// root creation, non-recursive insertion, bottom-up moment aggregation, and
// the threaded serial walk. Parallel concerns (top-tree replication, remote
// moments, the export/import walk) live in internal/distgrav, which is
// built on top of this package rather than folded into it, the way the
// teacher keeps internal/sim generic and lets internal/physics supply the
// domain-specific Dynamics.
package gravtree

import (
	"fmt"

	"github.com/san-kum/gravtree/internal/graverr"
)

// Sentinel errors for the spec §7 error kinds that are detected without
// extra context, mirroring internal/dynamo/errors.go's sentinel-var style.
// They live in internal/graverr, not here, so internal/splitter and
// internal/gconfig can wrap them without importing internal/gravtree (which
// itself imports internal/splitter for the Walk signature — a cycle this
// package avoids by depending on graverr instead).
var (
	ErrConfiguration    = graverr.ErrConfiguration
	ErrProtocolMismatch = graverr.ErrProtocolMismatch
)

// DegenerateInsertionError reports two distinct Real particles at
// byte-identical coordinates (spec §4.4.2 edge case): the tree cannot
// separate them and the gravity kernel would divide by zero.
type DegenerateInsertionError struct {
	ParticleA, ParticleB int
	Position              []float64
}

func (e *DegenerateInsertionError) Error() string {
	return fmt.Sprintf("gravtree: particles %d and %d occupy identical position %v; cannot subdivide", e.ParticleA, e.ParticleB, e.Position)
}

// SplitDepthExceededError reports the sibling-collision depth cap (spec
// §4.4.2, recommended 64 splits) being exceeded while separating two
// particles that are not byte-identical but are pathologically close.
type SplitDepthExceededError struct {
	ParticleA, ParticleB int
	Depth                 int
}

func (e *SplitDepthExceededError) Error() string {
	return fmt.Sprintf("gravtree: exceeded split depth %d separating particles %d and %d", e.Depth, e.ParticleA, e.ParticleB)
}
