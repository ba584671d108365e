// Package trade holds the ephemeral trade-emission buffer (spec component
// F): a fixed-capacity scratch area the matching loop fills during a
// single taker's match and flushes, in order, at the event boundary.
package trade

// DefaultCapacity is the trade buffer's default size (spec.md §6).
const DefaultCapacity = 64

// Record is one maker/taker fill, timestamped once per triggering event
// (spec.md §4.3 "Timestamp semantics").
type Record struct {
	Price        uint32
	Quantity     uint32
	MakerOrderID uint32
	TakerOrderID uint32
	TimestampMS  int64
}

// Buffer accumulates Records within a single match_limit_order call. It
// grows past its initial capacity rather than drop trades if a single
// event produces more than Capacity fills — the spec forbids silent
// drops — but a well-tuned Capacity keeps the common case allocation-free.
type Buffer struct {
	records []Record
}

// NewBuffer creates a Buffer pre-sized to capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{records: make([]Record, 0, capacity)}
}

// Append adds a trade to the buffer.
func (b *Buffer) Append(r Record) {
	b.records = append(b.records, r)
}

// Records returns the buffer's current contents in emission order. The
// returned slice is only valid until the next Reset.
func (b *Buffer) Records() []Record {
	return b.records
}

// Len reports how many trades are currently buffered.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Reset empties the buffer for reuse, keeping its backing array.
func (b *Buffer) Reset() {
	b.records = b.records[:0]
}
