package distgrav

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/gravtree/internal/gravlog"
	"github.com/san-kum/gravtree/internal/graverr"
	"github.com/san-kum/gravtree/internal/interaction"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/remotetable"
	"github.com/san-kum/gravtree/internal/splitter"
	"github.com/san-kum/gravtree/internal/transport"
	"github.com/san-kum/gravtree/internal/treenode"
)

// Round drives a bound gravity tree and local particle container through
// spec §4.5.4's round loop: export walk, particle exchange, import walk,
// acceleration exchange, scatter, termination vote. One Round.Step call is
// one iteration of the export buffer filling and draining — callers loop
// (RunToCompletion) until every rank's export walk has nothing left.
type Round struct {
	pool           *treenode.Pool
	table          *remotetable.Table
	root           int32
	c              *particle.Container
	splitter       splitter.Splitter
	newInteraction func() interaction.Interaction
	export         *ExportWalker

	log      *logrus.Entry
	roundNum int
	rank     int
	events   chan<- RoundEvent
}

// SetLogger attaches a rank-scoped entry (gravlog.New(rank)); Step refines
// it with the round number and phase on every call. Unset by default — a
// Round with no logger attached logs nothing.
func (r *Round) SetLogger(e *logrus.Entry) { r.log = e }

// RoundEvent is one Step call's telemetry, published to whatever channel
// SetEvents was given — internal/graviz's live monitor is the one consumer
// today, but the channel is a plain Go primitive so anything can subscribe.
type RoundEvent struct {
	Rank     int
	Round    int
	Exported int
	Imported int
	Exhausted bool
}

// SetEvents attaches rank and a sink for RoundEvents; sends are
// non-blocking, so a slow or absent subscriber never stalls the solver.
func (r *Round) SetEvents(rank int, ch chan<- RoundEvent) {
	r.rank = rank
	r.events = ch
}

func (r *Round) publish(ev RoundEvent) {
	if r.events == nil {
		return
	}
	ev.Rank = r.rank
	ev.Round = r.roundNum
	select {
	case r.events <- ev:
	default:
	}
}

// NewRound binds the splitter and a fresh interaction instance to c and
// constructs the export walker. newInteraction must return a new, unbound
// Interaction of the kernel in use (e.g. func() interaction.Interaction {
// return interaction.NewMonopole(g) }) — Round needs further, independent
// instances per round for each imported row group, which cannot share the
// export side's cursor.
func NewRound(pool *treenode.Pool, table *remotetable.Table, root int32, c *particle.Container, s splitter.Splitter, newInteraction func() interaction.Interaction, maxExport int) *Round {
	exportIA := newInteraction()
	s.Bind(c)
	exportIA.Bind(c)
	return &Round{
		pool:           pool,
		table:          table,
		root:           root,
		c:              c,
		splitter:       s,
		newInteraction: newInteraction,
		export:         NewExportWalker(pool, table, root, s, exportIA, maxExport),
	}
}

// Rounds reports how many Step calls this Round has completed so far —
// spec §8's termination scenario asserts this against the local tree depth.
func (r *Round) Rounds() int { return r.roundNum }

// Step runs exactly one export/exchange/import/exchange-back cycle and
// reports whether this rank's export walk has nothing further to do. The
// caller must keep calling Step (every rank, every round, even once this
// rank reports exhausted — other ranks may still address particles to it)
// until the termination vote over all ranks' exhausted flags is unanimous.
func (r *Round) Step(ctx context.Context, ep transport.Collective) (exhausted bool, err error) {
	r.roundNum++
	if r.log != nil {
		gravlog.WithPhase(gravlog.WithRound(r.log, r.roundNum), gravlog.PhaseExport).Debug("export walk")
	}

	records, exhausted := r.export.Run()

	sort.SliceStable(records, func(i, j int) bool { return records[i].Rank < records[j].Rank })

	groups := make([][]ExportRecord, ep.Size())
	for _, rec := range records {
		groups[rec.Rank] = append(groups[rec.Rank], rec)
	}

	send := make([][]byte, ep.Size())
	for dst, recs := range groups {
		if len(recs) == 0 {
			continue
		}
		send[dst] = encodeExportBatch(r.c, recs)
	}
	recv, err := ep.AllToAll(ctx, send)
	if err != nil {
		return false, fmt.Errorf("distgrav: particle exchange: %w", err)
	}

	imported, srcOf, idxOf, rowOf, recvCounts, err := decodeExportBatches(r.c.Dim, recv)
	if err != nil {
		return false, fmt.Errorf("distgrav: decoding exported particles: %w", err)
	}

	if r.log != nil {
		gravlog.WithPhase(gravlog.WithRound(r.log, r.roundNum), gravlog.PhaseImport).
			WithField("exported", len(records)).WithField("imported", imported.N()).Debug("particle exchange")
	}

	if imported.N() > 0 {
		byRow := make(map[int32][]int)
		for i, row := range rowOf {
			byRow[row] = append(byRow[row], i)
		}
		rows := make([]int32, 0, len(byRow))
		for row := range byRow {
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

		for _, row := range rows {
			idxs := byRow[row]
			sub := imported.Slice(idxs)
			importIA := r.newInteraction()
			importIA.Bind(sub)
			r.splitter.Bind(sub)
			start := r.table.Map[row]
			ImportWalkOne(r.pool, start, r.splitter, importIA)
			for li, gi := range idxs {
				for k := 0; k < r.c.Dim; k++ {
					imported.Acc[k][gi] = sub.Acc[k][li]
				}
			}
		}
		// The splitter is shared with the export walker: hand it back bound
		// to the local container and focused on the particle a paused export
		// walk resumes with.
		r.splitter.Bind(r.c)
		r.splitter.Focus(r.export.ia.Current())
	}

	sendBack := make([][]byte, ep.Size())
	accBySrc := make([][][]float64, ep.Size())
	for src, n := range recvCounts {
		if n == 0 {
			continue
		}
		accBySrc[src] = make([][]float64, r.c.Dim)
		for k := 0; k < r.c.Dim; k++ {
			accBySrc[src][k] = make([]float64, n)
		}
	}
	for i := range srcOf {
		src, localIdx := srcOf[i], idxOf[i]
		for k := 0; k < r.c.Dim; k++ {
			accBySrc[src][k][localIdx] = imported.Acc[k][i]
		}
	}
	for src, n := range recvCounts {
		if n == 0 {
			continue
		}
		sendBack[src] = encodeAccBatch(r.c.Dim, accBySrc[src], n)
	}

	returned, err := ep.AllToAll(ctx, sendBack)
	if err != nil {
		return false, fmt.Errorf("distgrav: acceleration exchange: %w", err)
	}

	for dst, recs := range groups {
		if len(recs) == 0 {
			continue
		}
		accs, decErr := decodeAccPayload(r.c.Dim, returned[dst])
		if decErr != nil {
			return false, fmt.Errorf("distgrav: decoding accelerations from rank %d: %w", dst, decErr)
		}
		if len(accs) != len(recs) {
			return false, fmt.Errorf("%w: distgrav: rank %d returned %d accelerations, expected %d", graverr.ErrProtocolMismatch, dst, len(accs), len(recs))
		}
		for i, rec := range recs {
			for k := 0; k < r.c.Dim; k++ {
				r.c.Acc[k][rec.Particle] += accs[i][k]
			}
		}
	}

	localDone := exhausted && len(records) == 0
	r.publish(RoundEvent{Exported: len(records), Imported: imported.N(), Exhausted: localDone})
	return localDone, nil
}

// RunToCompletion drives Step in a loop, voting on a shared AllReduceSum
// each round, until every rank agrees it has nothing left to export.
func (r *Round) RunToCompletion(ctx context.Context, ep transport.Collective) error {
	for {
		localExhausted, err := r.Step(ctx, ep)
		if err != nil {
			return err
		}
		signal := 0.0
		if !localExhausted {
			signal = 1
		}
		sum, err := ep.AllReduceSum(ctx, []float64{signal})
		if err != nil {
			return fmt.Errorf("distgrav: termination vote: %w", err)
		}
		if r.log != nil {
			gravlog.WithPhase(gravlog.WithRound(r.log, r.roundNum), gravlog.PhaseVote).
				WithField("still_active", int(sum[0])).Debug("termination vote")
		}
		if sum[0] == 0 {
			return nil
		}
	}
}

// encodeExportBatch packs one destination rank's share of an export buffer:
// per particle, the triggering Remote-Node Table row (so the importer knows
// which disjoint subtree to walk), its position, and its mass. The layout
// never leaves the process, so a plain little-endian binary record is
// enough — the same choice remote_moments.go makes, grounded on gotetra's
// binary particle arrays.
func encodeExportBatch(c *particle.Container, recs []ExportRecord) []byte {
	stride := 4 + (c.Dim+1)*8
	buf := make([]byte, len(recs)*stride)
	for i, rec := range recs {
		off := i * stride
		binary.LittleEndian.PutUint32(buf[off:], uint32(rec.Row))
		for k := 0; k < c.Dim; k++ {
			binary.LittleEndian.PutUint64(buf[off+4+k*8:], math.Float64bits(c.Pos[k][rec.Particle]))
		}
		binary.LittleEndian.PutUint64(buf[off+4+c.Dim*8:], math.Float64bits(c.Mass[rec.Particle]))
	}
	return buf
}

// decodeExportBatches flattens every source rank's received batch into one
// particle.Container, alongside parallel arrays recording each entry's
// origin rank, its index within that rank's batch, and its Remote-Node
// Table row — everything the import side and the return trip need.
func decodeExportBatches(dim int, recv [][]byte) (imported *particle.Container, srcOf, idxOf []int, rowOf []int32, recvCounts []int, err error) {
	stride := 4 + (dim+1)*8
	recvCounts = make([]int, len(recv))
	total := 0
	for src, buf := range recv {
		if stride == 0 || len(buf)%stride != 0 {
			return nil, nil, nil, nil, nil, fmt.Errorf("payload from rank %d has length %d, not a multiple of stride %d", src, len(buf), stride)
		}
		recvCounts[src] = len(buf) / stride
		total += recvCounts[src]
	}

	imported, err = particle.New(dim, total)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	srcOf = make([]int, total)
	idxOf = make([]int, total)
	rowOf = make([]int32, total)

	gi := 0
	for src, buf := range recv {
		for li := 0; li < recvCounts[src]; li++ {
			off := li * stride
			rowOf[gi] = int32(binary.LittleEndian.Uint32(buf[off:]))
			for k := 0; k < dim; k++ {
				imported.Pos[k][gi] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+4+k*8:]))
			}
			imported.Mass[gi] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+4+dim*8:]))
			imported.Tag[gi] = particle.Real
			srcOf[gi] = src
			idxOf[gi] = li
			gi++
		}
	}
	return imported, srcOf, idxOf, rowOf, recvCounts, nil
}

// encodeAccBatch packs n accelerations, little-endian, one particle after
// another, for the return leg of the round trip.
func encodeAccBatch(dim int, acc [][]float64, n int) []byte {
	stride := dim * 8
	buf := make([]byte, n*stride)
	for i := 0; i < n; i++ {
		off := i * stride
		for k := 0; k < dim; k++ {
			binary.LittleEndian.PutUint64(buf[off+k*8:], math.Float64bits(acc[k][i]))
		}
	}
	return buf
}

func decodeAccPayload(dim int, buf []byte) ([][]float64, error) {
	stride := dim * 8
	if stride == 0 || len(buf)%stride != 0 {
		return nil, fmt.Errorf("acceleration payload length %d is not a multiple of stride %d", len(buf), stride)
	}
	n := len(buf) / stride
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		off := i * stride
		v := make([]float64, dim)
		for k := 0; k < dim; k++ {
			v[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+k*8:]))
		}
		out[i] = v
	}
	return out, nil
}
