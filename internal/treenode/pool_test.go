package treenode

import "testing"

func TestPoolAcquireGrows(t *testing.T) {
	p := NewPool(2)

	first, err := p.Acquire(1)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if first != 0 {
		t.Errorf("expected first index 0, got %d", first)
	}

	// Force growth past the initial capacity of 2.
	idx, err := p.Acquire(4)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected second acquire to start at 1, got %d", idx)
	}
	if p.Capacity() < 5 {
		t.Errorf("expected capacity to have grown past 5, got %d", p.Capacity())
	}
	if p.Used() != 5 {
		t.Errorf("expected used=5, got %d", p.Used())
	}
}

func TestPoolReset(t *testing.T) {
	p := NewPool(4)
	if _, err := p.Acquire(3); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	capBefore := p.Capacity()

	p.Reset()
	if p.Used() != 0 {
		t.Errorf("expected used=0 after reset, got %d", p.Used())
	}
	if p.Capacity() != capBefore {
		t.Errorf("reset should not release capacity: before=%d after=%d", capBefore, p.Capacity())
	}
}

func TestPoolAcquireZeroesSlot(t *testing.T) {
	p := NewPool(2)
	idx, _ := p.Acquire(1)
	n := p.Node(idx)
	n.Pid = 7
	n.Flags = Leaf | HasParticle

	p.Reset()
	idx2, _ := p.Acquire(1)
	n2 := p.Node(idx2)
	if n2.Pid != NotExist {
		t.Errorf("expected fresh slot to have Pid=NotExist, got %d", n2.Pid)
	}
	if n2.Flags != 0 {
		t.Errorf("expected fresh slot to have no flags, got %v", n2.Flags)
	}
}

func TestPoolCountLeaves(t *testing.T) {
	p := NewPool(4)
	i0, _ := p.Acquire(1)
	i1, _ := p.Acquire(1)
	i2, _ := p.Acquire(1)

	p.Node(i0).Flags = Leaf
	p.Node(i1).Flags = 0
	p.Node(i2).Flags = Leaf | HasParticle

	if got := p.CountLeaves(); got != 2 {
		t.Errorf("expected 2 leaves, got %d", got)
	}
}

func TestPoolAcquireRejectsNonPositive(t *testing.T) {
	p := NewPool(2)
	if _, err := p.Acquire(0); err == nil {
		t.Error("expected error for zero-count acquire")
	}
	if _, err := p.Acquire(-1); err == nil {
		t.Error("expected error for negative-count acquire")
	}
}
