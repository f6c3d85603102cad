package strip

import (
	"sync"
	"testing"
)

func TestCache_EmitsInAscendingOrderDespiteOutOfOrderCompletion(t *testing.T) {
	const numStrips = 4
	const tilesPerRow = 2

	var mu sync.Mutex
	var emitted []int
	cache := NewCache(numStrips, tilesPerRow, 8, func(stripIndex int, data []byte) error {
		mu.Lock()
		emitted = append(emitted, stripIndex)
		mu.Unlock()
		return nil
	})

	// Finish strips out of order: 2 before 1 before 0, each needing
	// tilesPerRow CompositeTile calls.
	order := []int{2, 2, 1, 0, 1, 0, 3, 3}
	for _, idx := range order {
		if err := cache.CompositeTile(idx, func(buf []byte) {}); err != nil {
			t.Fatalf("CompositeTile(%d): %v", idx, err)
		}
	}

	want := []int{0, 1, 2, 3}
	if len(emitted) != len(want) {
		t.Fatalf("emitted = %v, want %v", emitted, want)
	}
	for i, idx := range want {
		if emitted[i] != idx {
			t.Errorf("emitted[%d] = %d, want %d", i, emitted[i], idx)
		}
	}
}

func TestCache_CompositeTileRejectsOutOfRangeIndex(t *testing.T) {
	cache := NewCache(2, 1, 4, func(int, []byte) error { return nil })
	if err := cache.CompositeTile(5, func([]byte) {}); err == nil {
		t.Error("expected an error for an out-of-range strip index")
	}
}

func TestCache_DoesNotEmitUntilEveryTileArrives(t *testing.T) {
	emittedCount := 0
	cache := NewCache(1, 3, 4, func(int, []byte) error {
		emittedCount++
		return nil
	})
	cache.CompositeTile(0, func([]byte) {})
	cache.CompositeTile(0, func([]byte) {})
	if emittedCount != 0 {
		t.Fatalf("expected no emission before all tiles arrive, got %d", emittedCount)
	}
	cache.CompositeTile(0, func([]byte) {})
	if emittedCount != 1 {
		t.Errorf("expected exactly one emission once the row completed, got %d", emittedCount)
	}
}

func TestPool_ReusesFreedBuffer(t *testing.T) {
	p := &Pool{}
	b := p.Get(16)
	p.Put(b)
	b2 := p.Get(8)
	if &b2.Data[0] != &b.Data[0] {
		t.Error("expected Get to reuse the freed buffer's backing array")
	}
}
