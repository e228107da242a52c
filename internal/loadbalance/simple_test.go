package loadbalance

import "testing"

func TestSimpleTreeLeafCountAndRanks(t *testing.T) {
	tree, err := NewSimple(3, []float64{0, 0, 0}, []float64{1, 1, 1}, 2, 3)
	if err != nil {
		t.Fatalf("NewSimple: %v", err)
	}
	if got := tree.NumLeaves(); got != 64 {
		t.Fatalf("NumLeaves = %d, want 64", got)
	}
	// 64 leaves over 3 ranks: 22,21,21
	counts := map[int]int{}
	for i := 0; i < tree.NumLeaves(); i++ {
		counts[tree.LeafRank(i)]++
	}
	if counts[0] != 22 || counts[1] != 21 || counts[2] != 21 {
		t.Errorf("rank distribution = %v, want {0:22,1:21,2:21}", counts)
	}
}

func TestSimpleTreeFindLeafRoundTrip(t *testing.T) {
	tree, err := NewSimple(2, []float64{0, 0}, []float64{4, 4}, 2, 2)
	if err != nil {
		t.Fatalf("NewSimple: %v", err)
	}
	pos := []float64{3.1, 0.2}
	key := tree.Key(pos)
	leaf, ok := tree.FindLeaf(key)
	if !ok {
		t.Fatalf("FindLeaf(%d) not found", key)
	}
	if leaf.ArrayIndex != int(key) {
		t.Errorf("ArrayIndex = %d, want %d", leaf.ArrayIndex, key)
	}

	// re-deriving the key for any point inside the same leaf's cell must
	// land on the same leaf.
	root := tree.Root()
	n := root
	for !tree.IsLeaf(n) {
		bit := 0
		center := tree.Center(n)
		for k := 0; k < 2; k++ {
			if pos[k] > center[k] {
				bit |= 1 << k
			}
		}
		n = tree.ChildrenStart(n) + int32(bit)
	}
	if tree.LeafArrayIndex(n) != leaf.ArrayIndex {
		t.Errorf("manual descent landed on leaf %d, Key gave %d", tree.LeafArrayIndex(n), leaf.ArrayIndex)
	}
}

func TestSimpleTreeRejectsBadDim(t *testing.T) {
	if _, err := NewSimple(1, []float64{0}, []float64{1}, 1, 1); err == nil {
		t.Error("expected error for dim=1")
	}
}

func TestSimpleTreeFindLeafOutOfRange(t *testing.T) {
	tree, err := NewSimple(2, []float64{0, 0}, []float64{1, 1}, 1, 1)
	if err != nil {
		t.Fatalf("NewSimple: %v", err)
	}
	if _, ok := tree.FindLeaf(uint64(tree.NumLeaves())); ok {
		t.Error("expected FindLeaf to report miss for out-of-range key")
	}
}
