// Package depth implements the bounded top-of-book depth cache (spec
// component D) and the owner-writes/many-readers depth publisher (spec
// component H).
package depth

import "sync"

// MaxLevels bounds how many price levels the cache retains per side
// (spec.md §3, §4.3).
const MaxLevels = 20

// Level is one aggregated [price, total_qty] entry.
type Level struct {
	Price uint32
	Qty   uint32
}

// Snapshot is a value copy of the top-N depth, stamped with the publish
// generation it was built under.
type Snapshot struct {
	Bids         []Level
	Asks         []Level
	LastUpdateID uint64
}

// Cache holds the bounded top-MaxLevels aggregate per side. It is owned
// exclusively by the matching loop: Rebuild is only ever called from
// there. Read returns a copy safe to hand to any reader.
type Cache struct {
	bids       [MaxLevels]Level
	asks       [MaxLevels]Level
	nBids      int
	nAsks      int
	dirty      bool
	generation uint64
}

// NewCache creates an empty, dirty cache.
func NewCache() *Cache {
	return &Cache{dirty: true}
}

// MarkDirty flags the cache for rebuild on next read and bumps the
// generation counter (spec.md §4.3: every mutation bumps the depth
// generation).
func (c *Cache) MarkDirty() {
	c.dirty = true
	c.generation++
}

// Dirty reports whether the cache needs a rebuild before it can be read.
func (c *Cache) Dirty() bool {
	return c.dirty
}

// Generation returns the current monotone generation counter.
func (c *Cache) Generation() uint64 {
	return c.generation
}

// RebuildFunc is supplied by the order book: it must write up to
// MaxLevels [price,qty] bid levels (high to low) and ask levels (low to
// high) into the given slices and return the counts actually written.
type RebuildFunc func(bids, asks *[MaxLevels]Level) (nBids, nAsks int)

// Rebuild refreshes the cache from the order book and clears the dirty
// bit. Only ever called from the matching loop.
func (c *Cache) Rebuild(fn RebuildFunc) {
	c.nBids, c.nAsks = fn(&c.bids, &c.asks)
	c.dirty = false
}

// Snapshot copies out the first min(limit, count) entries per side,
// stamped with the current generation.
func (c *Cache) Snapshot(limit int) Snapshot {
	if limit <= 0 || limit > MaxLevels {
		limit = MaxLevels
	}
	nb := min(limit, c.nBids)
	na := min(limit, c.nAsks)

	out := Snapshot{
		Bids:         make([]Level, nb),
		Asks:         make([]Level, na),
		LastUpdateID: c.generation,
	}
	copy(out.Bids, c.bids[:nb])
	copy(out.Asks, c.asks[:na])
	return out
}

// Publisher is the shared cell holding the last-published Snapshot: single
// writer (the matching loop), many readers (HTTP handlers; the WebSocket
// hub does not read it). Readers take a brief RLock, copy out the snapshot, and
// release — they never block the writer for longer than a memcpy.
type Publisher struct {
	mu   sync.RWMutex
	last Snapshot
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish overwrites the shared snapshot. Only the matching loop may call
// this.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
}

// Read returns the last published snapshot. Safe for concurrent callers.
func (p *Publisher) Read() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
