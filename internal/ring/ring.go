// Package ring implements the ingress queue (spec component A): a bounded,
// single-producer single-consumer ring buffer with non-blocking push and
// pop. There is no lock-free bounded SPSC queue among this repository's
// reference dependencies, so this is built directly on sync/atomic — see
// DESIGN.md for why no third-party queue could serve this concern.
package ring

import (
	"sync/atomic"

	"clobd/internal/model"
)

// DefaultCapacity is the ingress ring's default size (spec.md §6). Must be
// a power of two; Ring panics in New if it is not.
const DefaultCapacity = 65536

// Ring is a bounded SPSC ring buffer of model.OrderEvent. The zero value is
// not usable; construct with New.
type Ring struct {
	buf  []model.OrderEvent
	mask uint64

	// head is advanced only by the consumer; tail only by the producer.
	// Padding-free: correctness doesn't depend on avoiding false sharing,
	// only throughput would.
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a Ring with the given capacity, which must be a power of two.
func New(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &Ring{
		buf:  make([]model.OrderEvent, capacity),
		mask: uint64(capacity - 1),
	}
}

// Push appends evt to the ring. Returns false if the ring is full; the
// caller (producer) must retry after yielding or fail the submission to
// its own client. Push never blocks.
func (r *Ring) Push(evt model.OrderEvent) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = evt
	r.tail.Store(tail + 1)
	return true
}

// Pop removes and returns the oldest event. Returns false if the ring is
// empty. Pop never blocks.
func (r *Ring) Pop() (model.OrderEvent, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return model.OrderEvent{}, false
	}
	evt := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return evt, true
}

// Len reports the number of events currently queued. Safe to call from
// either side; the result is a snapshot and may be stale by the time it's
// read.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Empty reports whether the ring currently holds no events.
func (r *Ring) Empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Cap reports the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
