package transport

import (
	"context"
	"reflect"
	"sync"
	"testing"
)

func TestExchangePairwise(t *testing.T) {
	net, err := NewNetwork(2)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	e0, _ := net.Endpoint(0)
	e1, _ := net.Endpoint(1)

	var got0, got1 []byte
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		got0, _ = e0.Exchange(context.Background(), 1, []byte("from0"))
	}()
	go func() {
		defer wg.Done()
		got1, _ = e1.Exchange(context.Background(), 0, []byte("from1"))
	}()
	wg.Wait()

	if string(got0) != "from1" {
		t.Errorf("rank 0 received %q, want %q", got0, "from1")
	}
	if string(got1) != "from0" {
		t.Errorf("rank 1 received %q, want %q", got1, "from0")
	}
}

func TestAllToAllFourRanks(t *testing.T) {
	const size = 4
	net, err := NewNetwork(size)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	recv := make([][][]byte, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ep, _ := net.Endpoint(rank)
			send := make([][]byte, size)
			for dst := 0; dst < size; dst++ {
				send[dst] = []byte{byte(rank), byte(dst)}
			}
			got, err := ep.AllToAll(context.Background(), send)
			if err != nil {
				t.Errorf("rank %d AllToAll: %v", rank, err)
				return
			}
			recv[rank] = got
		}(r)
	}
	wg.Wait()

	for rank := 0; rank < size; rank++ {
		for src := 0; src < size; src++ {
			want := []byte{byte(src), byte(rank)}
			if !reflect.DeepEqual(recv[rank][src], want) {
				t.Errorf("recv[%d][%d] = %v, want %v", rank, src, recv[rank][src], want)
			}
		}
	}
}

func TestAllGatherVaryingRendezvousAndReset(t *testing.T) {
	const size = 3
	net, err := NewNetwork(size)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	run := func() [][][]byte {
		results := make([][][]byte, size)
		var wg sync.WaitGroup
		for r := 0; r < size; r++ {
			wg.Add(1)
			go func(rank int) {
				defer wg.Done()
				ep, _ := net.Endpoint(rank)
				got, err := ep.AllGatherVarying(context.Background(), []byte{byte(rank), byte(rank)})
				if err != nil {
					t.Errorf("rank %d AllGatherVarying: %v", rank, err)
					return
				}
				results[rank] = got
			}(r)
		}
		wg.Wait()
		return results
	}

	for round := 0; round < 2; round++ {
		results := run()
		for rank := 0; rank < size; rank++ {
			if len(results[rank]) != size {
				t.Fatalf("round %d rank %d: got %d entries, want %d", round, rank, len(results[rank]), size)
			}
			for src := 0; src < size; src++ {
				want := []byte{byte(src), byte(src)}
				if !reflect.DeepEqual(results[rank][src], want) {
					t.Errorf("round %d rank %d entry %d = %v, want %v", round, rank, src, results[rank][src], want)
				}
			}
		}
	}
}

func TestAllReduceSum(t *testing.T) {
	const size = 4
	net, err := NewNetwork(size)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	results := make([][]float64, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ep, _ := net.Endpoint(rank)
			got, err := ep.AllReduceSum(context.Background(), []float64{float64(rank), 1})
			if err != nil {
				t.Errorf("rank %d AllReduceSum: %v", rank, err)
				return
			}
			results[rank] = got
		}(r)
	}
	wg.Wait()

	wantSum := []float64{0 + 1 + 2 + 3, 4}
	for rank := 0; rank < size; rank++ {
		if !reflect.DeepEqual(results[rank], wantSum) {
			t.Errorf("rank %d result = %v, want %v", rank, results[rank], wantSum)
		}
	}
}

func TestEndpointRejectsOutOfRangeRank(t *testing.T) {
	net, _ := NewNetwork(2)
	if _, err := net.Endpoint(5); err == nil {
		t.Error("expected error for out-of-range rank")
	}
}
