package distgrav

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/san-kum/gravtree/internal/graverr"
	"github.com/san-kum/gravtree/internal/remotetable"
	"github.com/san-kum/gravtree/internal/transport"
	"github.com/san-kum/gravtree/internal/treenode"
)

// ExchangeRemoteMoments is spec §4.5.3 steps 1-3: copy each locally owned
// row's mass/com out of the pool, all-gather every rank's rows, and scatter
// the combined table back into every row's pool node. Step 4 (the post-order
// refresh over non-TOP_TREE_LEAF nodes) is gravtree.Tree.UpdateRemoteMoments,
// left to the caller since it needs no knowledge of the wire format below.
func ExchangeRemoteMoments(ctx context.Context, ep transport.Collective, pool *treenode.Pool, table *remotetable.Table) error {
	localRank := ep.Rank()
	ownRows := table.RowsOwnedBy(localRank)
	for _, row := range ownRows {
		n := pool.Node(table.Map[row])
		table.Mass[row] = n.Mass
		for k := 0; k < table.Dim; k++ {
			table.COM[k][row] = n.COM[k]
		}
	}

	payload := encodeRows(table, ownRows)
	gathered, err := ep.AllGatherVarying(ctx, payload)
	if err != nil {
		return fmt.Errorf("distgrav: remote moment all-gather: %w", err)
	}

	for rank := 0; rank < ep.Size(); rank++ {
		rows := table.RowsOwnedBy(rank)
		masses, coms, err := decodeRows(table.Dim, gathered[rank])
		if err != nil {
			return fmt.Errorf("distgrav: decoding rank %d's rows: %w", rank, err)
		}
		if len(masses) != len(rows) {
			return fmt.Errorf("%w: distgrav: rank %d sent %d rows, load-balance tree expects %d", graverr.ErrProtocolMismatch, rank, len(masses), len(rows))
		}
		for i, row := range rows {
			table.Mass[row] = masses[i]
			n := pool.Node(table.Map[row])
			n.Mass = masses[i]
			for k := 0; k < table.Dim; k++ {
				table.COM[k][row] = coms[i][k]
				n.COM[k] = coms[i][k]
			}
		}
	}
	return nil
}

// encodeRows packs the (mass, com[dim]) tuple of each row in rows, in order,
// as little-endian float64s — a plain binary layout, grounded the way
// gotetra's catalog reader/writer packs its particle arrays, since this
// payload never leaves the process and needs no cross-language wire format.
func encodeRows(table *remotetable.Table, rows []int) []byte {
	stride := 1 + table.Dim
	buf := make([]byte, len(rows)*stride*8)
	for i, row := range rows {
		off := i * stride * 8
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(table.Mass[row]))
		for k := 0; k < table.Dim; k++ {
			binary.LittleEndian.PutUint64(buf[off+(k+1)*8:], math.Float64bits(table.COM[k][row]))
		}
	}
	return buf
}

func decodeRows(dim int, buf []byte) ([]float64, [][]float64, error) {
	stride := (1 + dim) * 8
	if len(buf)%stride != 0 {
		return nil, nil, fmt.Errorf("distgrav: payload length %d is not a multiple of row stride %d", len(buf), stride)
	}
	n := len(buf) / stride
	masses := make([]float64, n)
	coms := make([][]float64, n)
	for i := 0; i < n; i++ {
		off := i * stride
		masses[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		com := make([]float64, dim)
		for k := 0; k < dim; k++ {
			com[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+(k+1)*8:]))
		}
		coms[i] = com
	}
	return masses, coms, nil
}
