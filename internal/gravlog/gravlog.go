// Package gravlog is structured logging for the distributed solver, one
// logrus entry per rank carrying "rank"/"round"/"phase" fields, the way
// netobserv-flowlogs-pipeline's pkg/pipeline/transform/netobserv/meta.go
// holds a package-level logrus.WithFields entry and refines it per call
// site rather than formatting strings by hand. internal/gravtree stays a
// plain library with no logging of its own (the teacher's own lower layers,
// e.g. internal/physics, don't log either — only internal/sim's orchestration
// does); distgrav.Round holds a *logrus.Entry (internal/simrank attaches
// one per rank) and refines it with WithRound/WithPhase per call, while
// cmd/gravtree only sets the formatter through ConfigureDefault.
package gravlog

import "github.com/sirupsen/logrus"

func New(rank int) *logrus.Entry {
	return logrus.WithField("rank", rank)
}

// WithRound refines e with the current round number (distgrav.Round.Step
// callers pass this in before logging export/import counts).
func WithRound(e *logrus.Entry, round int) *logrus.Entry {
	return e.WithField("round", round)
}

// WithPhase refines e with one of the phase names below.
func WithPhase(e *logrus.Entry, phase string) *logrus.Entry {
	return e.WithField("phase", phase)
}

const (
	PhaseReplicate = "replicate"
	PhaseInsert    = "insert"
	PhaseMoments   = "moments"
	PhaseExport    = "export"
	PhaseImport    = "import"
	PhaseReturn    = "return"
	PhaseVote      = "vote"
)

// ConfigureDefault sets the package-wide logrus formatter dynsim never had
// to (it has no logging library at all — see game/logging.go in pthm-soup
// for the ad hoc fmt.Println alternative this repo deliberately does not
// follow), matching flowlogs2metrics/cmd/flowlogs2metrics/main.go's
// TextFormatter call.
func ConfigureDefault(level logrus.Level) {
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, PadLevelText: true})
}
