// Package simrank is the in-process SPMD harness: it runs the P ranks spec
// §4.5 assumes as P goroutines sharing one transport.Network rather than P
// OS processes talking over MPI, the way internal/sim.Ensemble in the
// teacher fans independent runs out over goroutines and a WaitGroup — here
// the goroutines are not independent, they rendezvous every round.
package simrank

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/gravtree/internal/distgrav"
	"github.com/san-kum/gravtree/internal/gravlog"
	"github.com/san-kum/gravtree/internal/interaction"
	"github.com/san-kum/gravtree/internal/loadbalance"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/splitter"
	"github.com/san-kum/gravtree/internal/transport"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Config is the subset of spec §7's configure() that a rank needs to run
// one force evaluation: dimension, opening criterion, and the bound on the
// export buffer's memory footprint per round.
type Config struct {
	Dim                  int
	NumRanks             int
	SplitKind            splitter.Kind
	Theta                float64
	MinAccel             float64
	G                    float64
	MaxExport            int
	InitialPoolCapacity  int
}

// NewInteraction returns the monopole kernel Run wires every rank's export
// and import walks to, with softening applied per spec §9 open question (c).
func (cfg Config) NewInteraction(softening float64) func() interaction.Interaction {
	return func() interaction.Interaction {
		m := interaction.NewMonopole(cfg.G)
		m.Softening = softening
		return m
	}
}

// Run is one full force evaluation: every rank replicates the top tree,
// inserts its own locally resident particles, exchanges remote moments, then
// walks to completion, writing results into each rank's own entry of
// perRank's acceleration columns. perRank[r] must already hold exactly the
// particles the load-balance tree assigns to rank r, each with Key set
// (spec §6's partition precondition — simrank does not partition particles
// itself, that responsibility belongs to the load-balance tree's owner).
// Run is identical to calling RunWithEvents with a nil channel.
func Run(ctx context.Context, cfg Config, lb loadbalance.Tree, perRank []*particle.Container, softening float64) error {
	return RunWithEvents(ctx, cfg, lb, perRank, softening, nil)
}

// RunWithEvents is Run, plus every rank's Round publishes its RoundEvents to
// events (internal/graviz's live monitor is the intended subscriber). A nil
// events channel disables publishing entirely, same as Run.
func RunWithEvents(ctx context.Context, cfg Config, lb loadbalance.Tree, perRank []*particle.Container, softening float64, events chan<- distgrav.RoundEvent) error {
	if len(perRank) != cfg.NumRanks {
		return fmt.Errorf("simrank: got %d rank containers, Config.NumRanks is %d", len(perRank), cfg.NumRanks)
	}
	net, err := transport.NewNetwork(cfg.NumRanks)
	if err != nil {
		return fmt.Errorf("simrank: %w", err)
	}

	newIA := cfg.NewInteraction(softening)

	group, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < cfg.NumRanks; rank++ {
		rank := rank
		group.Go(func() error {
			c := perRank[rank]
			pool := treenode.NewPool(cfg.InitialPoolCapacity)

			tree, table, err := distgrav.Prepare(pool, lb, rank, cfg.Dim, c)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}

			ep, err := net.Endpoint(rank)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			if err := distgrav.ExchangeRemoteMoments(gctx, ep, pool, table); err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			tree.UpdateRemoteMoments(tree.Root)

			s, err := splitter.New(cfg.SplitKind, cfg.Theta, cfg.MinAccel, cfg.G)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}

			round := distgrav.NewRound(pool, table, tree.Root, c, s, newIA, cfg.MaxExport)
			round.SetLogger(gravlog.New(rank))
			if events != nil {
				round.SetEvents(rank, events)
			}
			if err := round.RunToCompletion(gctx, ep); err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			return nil
		})
	}
	return group.Wait()
}
