// Package remotetable implements the Remote-Node Table of spec §3/§4.5.3:
// a dense, per-top-tree-leaf row in (owning_rank, SFC-key) order, used both
// as the all-gather exchange buffer for remote moments and as the lookup
// from a load-balance leaf to the local gravity-tree node it was copied
// into. It is pure data plus the counts/displacements arithmetic the
// all-gather needs; the gather/scatter orchestration against a pool lives
// in internal/distgrav, the caller that owns both the table and the tree.
package remotetable

import "fmt"

// Table is a struct-of-arrays over rows, one per top-tree leaf globally,
// the columnar shape the rest of this module (particle.Container,
// treenode.Pool) uses throughout.
type Table struct {
	Dim int

	// Map[i] is the local pool node index the i'th row corresponds to.
	Map []int32
	// Proc[i] is the owning rank of row i's partition leaf.
	Proc []int
	Mass []float64
	COM  [][]float64 // COM[k][i], k in [0,Dim)
}

// New allocates a table with n rows, sorted order left to the caller
// (top-tree replication builds rows already in (proc, SFC-key) order).
func New(dim, n int) (*Table, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("remotetable: dim must be 2 or 3, got %d", dim)
	}
	t := &Table{
		Dim:  dim,
		Map:  make([]int32, n),
		Proc: make([]int, n),
		Mass: make([]float64, n),
		COM:  make([][]float64, dim),
	}
	for k := 0; k < dim; k++ {
		t.COM[k] = make([]float64, n)
	}
	return t, nil
}

// Len reports the number of rows (the global top-tree leaf count).
func (t *Table) Len() int { return len(t.Proc) }

// SendCounts returns, for each of numRanks, how many contiguous rows in the
// table belong to that rank — the send_counts of spec §4.5.3/§3, valid only
// because rows are already grouped by Proc.
func (t *Table) SendCounts(numRanks int) []int {
	counts := make([]int, numRanks)
	for _, p := range t.Proc {
		counts[p]++
	}
	return counts
}

// SendDisplacements returns the prefix-sum offsets for the contiguous
// per-rank blocks SendCounts describes.
func SendDisplacements(counts []int) []int {
	disp := make([]int, len(counts))
	for i := 1; i < len(counts); i++ {
		disp[i] = disp[i-1] + counts[i-1]
	}
	return disp
}

// RowsOwnedBy returns the row indices whose Proc equals rank, used to
// select which rows a rank must fill in before the all-gather (spec
// §4.5.3 step 1: "For each row r ... where proc == local_rank").
func (t *Table) RowsOwnedBy(rank int) []int {
	var rows []int
	for i, p := range t.Proc {
		if p == rank {
			rows = append(rows, i)
		}
	}
	return rows
}
