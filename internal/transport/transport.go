// Package transport emulates the MPI-style collectives spec §2/§4.5.3
// assume (all-gather, all-to-all, paired exchange, all-reduce) over Go
// channels, so internal/simrank can run P ranks as goroutines inside one
// process instead of requiring a real MPI runtime. The pairwise Exchange
// and AllToAll implementations follow the hypercube partner pattern of
// original_source/phd/utils/exchange_particles.py: partner = rank ^ ngrp
// for every ngrp from 1 up to, but excluding, the smallest power of two at
// or above the rank count.
package transport

import (
	"context"
	"fmt"
)

// Network is the shared fabric every rank's Endpoint talks through. It
// owns one buffered channel per ordered (src,dst) pair for Exchange/AllToAll,
// plus the rendezvous state for the barrier collectives.
type Network struct {
	size  int
	links [][]chan []byte

	gather chan *gatherRound
	reduce chan *reduceRound
}

// NewNetwork allocates a fabric for size ranks. Endpoints are obtained with
// Endpoint.
func NewNetwork(size int) (*Network, error) {
	if size < 1 {
		return nil, fmt.Errorf("transport: size must be >= 1, got %d", size)
	}
	links := make([][]chan []byte, size)
	for a := range links {
		links[a] = make([]chan []byte, size)
		for b := range links[a] {
			links[a][b] = make(chan []byte, 1)
		}
	}
	n := &Network{
		size:   size,
		links:  links,
		gather: make(chan *gatherRound, 1),
		reduce: make(chan *reduceRound, 1),
	}
	n.gather <- &gatherRound{input: make([][]byte, size), done: make(chan struct{})}
	n.reduce <- &reduceRound{done: make(chan struct{})}
	return n, nil
}

// Size reports the number of ranks in the fabric.
func (n *Network) Size() int { return n.size }

// Endpoint returns the rank'th participant's handle onto the fabric.
func (n *Network) Endpoint(rank int) (*Endpoint, error) {
	if rank < 0 || rank >= n.size {
		return nil, fmt.Errorf("transport: rank %d out of range [0,%d)", rank, n.size)
	}
	return &Endpoint{net: n, rank: rank}, nil
}

// Collective is the set of MPI-style group operations spec §6 assumes a
// transport provides. internal/distgrav is written against this interface,
// not *Endpoint or *Network, so a real MPI or gRPC transport can stand in
// for this package's in-process channel fabric without any change to the
// solver (see SPEC_FULL.md's Supplemented features).
type Collective interface {
	Rank() int
	Size() int
	AllToAll(ctx context.Context, send [][]byte) ([][]byte, error)
	AllGatherVarying(ctx context.Context, send []byte) ([][]byte, error)
	AllReduceSum(ctx context.Context, values []float64) ([]float64, error)
}

// Endpoint is one rank's view of the Network: the comm object the rest of
// this module's distributed packages are written against.
type Endpoint struct {
	net  *Network
	rank int
}

var _ Collective = (*Endpoint)(nil)

func (e *Endpoint) Rank() int { return e.rank }
func (e *Endpoint) Size() int { return e.net.size }

// Exchange is the pairwise primitive of exchange_particles.py's Sendrecv:
// send bytes to partner and block until partner's own Exchange call to us
// delivers its reply.
func (e *Endpoint) Exchange(ctx context.Context, partner int, send []byte) ([]byte, error) {
	if partner == e.rank {
		return send, nil
	}
	if partner < 0 || partner >= e.net.size {
		return nil, fmt.Errorf("transport: partner %d out of range [0,%d)", partner, e.net.size)
	}
	select {
	case e.net.links[e.rank][partner] <- send:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case recv := <-e.net.links[partner][e.rank]:
		return recv, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hypercubeSteps returns ptask such that size <= 1<<ptask, the number of
// rounds exchange_particles.py's outer loop needs to reach every rank.
func hypercubeSteps(size int) int {
	ptask := 0
	for size > (1 << ptask) {
		ptask++
	}
	return ptask
}

// AllToAll is MPI_Alltoall: send[j] goes to rank j, and the returned slice's
// j'th entry is what rank j sent to us. Implemented with the same
// rank^ngrp partner schedule as the hypercube Sendrecv loop, so every pair
// of ranks communicates directly rather than through a relay.
func (e *Endpoint) AllToAll(ctx context.Context, send [][]byte) ([][]byte, error) {
	if len(send) != e.net.size {
		return nil, fmt.Errorf("transport: AllToAll needs one entry per rank, got %d for size %d", len(send), e.net.size)
	}
	recv := make([][]byte, e.net.size)
	recv[e.rank] = send[e.rank]
	ptask := hypercubeSteps(e.net.size)
	for ngrp := 1; ngrp < (1 << ptask); ngrp++ {
		partner := e.rank ^ ngrp
		if partner >= e.net.size {
			continue
		}
		got, err := e.Exchange(ctx, partner, send[partner])
		if err != nil {
			return nil, err
		}
		recv[partner] = got
	}
	return recv, nil
}

type gatherRound struct {
	arrived int
	input   [][]byte
	result  [][]byte
	done    chan struct{}
}

// AllGatherVarying is MPI_Allgatherv: every rank contributes a variable-size
// payload, every rank receives the full, rank-ordered set. Ranks rendezvous
// on a shared round object; the rank that completes it resets the fabric for
// the next call so AllGatherVarying can be called repeatedly across rounds.
func (e *Endpoint) AllGatherVarying(ctx context.Context, send []byte) ([][]byte, error) {
	round := <-e.net.gather
	round.input[e.rank] = send
	round.arrived++
	if round.arrived == e.net.size {
		round.result = append([][]byte(nil), round.input...)
		e.net.gather <- &gatherRound{input: make([][]byte, e.net.size), done: make(chan struct{})}
		close(round.done)
	} else {
		e.net.gather <- round
	}
	select {
	case <-round.done:
		return round.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type reduceRound struct {
	arrived int
	sum     []float64
	result  []float64
	done    chan struct{}
}

// AllReduceSum is MPI_Allreduce with SUM: every rank contributes a
// same-length vector, every rank receives the elementwise sum across ranks
// (spec §4.5.4's export-buffer-empty termination vote is a degenerate,
// length-1 case of this).
func (e *Endpoint) AllReduceSum(ctx context.Context, values []float64) ([]float64, error) {
	round := <-e.net.reduce
	if round.sum == nil {
		round.sum = make([]float64, len(values))
	}
	for i, v := range values {
		round.sum[i] += v
	}
	round.arrived++
	if round.arrived == e.net.size {
		round.result = round.sum
		e.net.reduce <- &reduceRound{done: make(chan struct{})}
		close(round.done)
	} else {
		e.net.reduce <- round
	}
	select {
	case <-round.done:
		return round.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
