// Package strip implements the decompress-side strip cache of spec
// §4.9: one buffer per horizontal tile-row, composited from its
// constituent tiles as they finish out of order, and serialized to a
// user pixel callback in ascending strip-index order. Grounded on
// `_examples/original_source/src/lib/core/cache/StripCache.h`'s
// BufPool/Strip/StripCache shape (heap-keyed-by-index plus a buffer
// pool behind a mutex).
package strip

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
)

// Buffer is one pooled strip buffer.
type Buffer struct {
	Data []byte
}

// Pool recycles strip buffers by linear first-fit over previously freed
// buffers, grounded on the original source's BufPool::get/put (a small
// pool scanned for the first buffer with enough capacity).
type Pool struct {
	mu   sync.Mutex
	free []Buffer
}

// Get returns a buffer with at least size bytes, reusing a freed one
// when available.
func (p *Pool) Get(size int) Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.free {
		if cap(b.Data) >= size {
			p.free = append(p.free[:i], p.free[i+1:]...)
			b.Data = b.Data[:size]
			return b
		}
	}
	return Buffer{Data: make([]byte, size)}
}

// Put returns a buffer to the pool for reuse.
func (p *Pool) Put(b Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, b)
}

// Callback receives one fully composited strip's pixel bytes, invoked
// in strictly ascending strip-index order (spec §5: "strip emission to
// the user callback is strictly strip-index-ascending").
type Callback func(stripIndex int, data []byte) error

// strip tracks one horizontal tile-row's in-progress composite.
type strip struct {
	buf         Buffer
	tileCounter atomic.Int32
}

type stripEntry struct {
	index int
	buf   Buffer
}

type stripHeap []stripEntry

func (h stripHeap) Len() int            { return len(h) }
func (h stripHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h stripHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *stripHeap) Push(x interface{}) { *h = append(*h, x.(stripEntry)) }
func (h *stripHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Cache maintains one buffer per horizontal tile-row (spec §4.9).
type Cache struct {
	pool         *Pool
	callback     Callback
	tileRowWidth int
	strips       []*strip

	serializeMu sync.Mutex
	ready       stripHeap
	next        int
}

// NewCache creates a strip cache for an image with numStrips horizontal
// tile-rows, each composited from tileRowWidth tiles of stripSize bytes,
// invoking cb once per strip in ascending index order.
func NewCache(numStrips, tileRowWidth, stripSize int, cb Callback) *Cache {
	c := &Cache{
		pool:         &Pool{},
		callback:     cb,
		tileRowWidth: tileRowWidth,
		strips:       make([]*strip, numStrips),
	}
	for i := range c.strips {
		c.strips[i] = &strip{buf: c.pool.Get(stripSize)}
	}
	return c
}

// CompositeTile interleaves one finished tile's pixels into its strip's
// buffer via interleave (the spec's composite_interleaved step; exact
// pixel layout belongs to the caller), then advances the strip's atomic
// tile counter. Once every tile in the row has contributed, the strip
// is handed to the serialization path.
func (c *Cache) CompositeTile(stripIndex int, interleave func(buf []byte)) error {
	if stripIndex < 0 || stripIndex >= len(c.strips) {
		return fmt.Errorf("strip: index %d out of range [0,%d)", stripIndex, len(c.strips))
	}
	s := c.strips[stripIndex]
	interleave(s.buf.Data)
	if s.tileCounter.Add(1) != int32(c.tileRowWidth) {
		return nil
	}
	return c.enqueue(stripEntry{index: stripIndex, buf: s.buf})
}

// enqueue pushes a finished strip onto the ordering heap and drains
// every now-contiguous prefix starting at the next expected index,
// invoking the callback for each. Holding serializeMu across the
// callback call (rather than handing drained strips to a separate
// goroutine) is what gives ascending-order delivery across concurrent
// CompositeTile callers without a dedicated serialization goroutine.
func (c *Cache) enqueue(e stripEntry) error {
	c.serializeMu.Lock()
	defer c.serializeMu.Unlock()

	heap.Push(&c.ready, e)
	for len(c.ready) > 0 && c.ready[0].index == c.next {
		next := heap.Pop(&c.ready).(stripEntry)
		if err := c.callback(next.index, next.buf.Data); err != nil {
			return err
		}
		c.pool.Put(next.buf)
		c.next++
	}
	return nil
}
