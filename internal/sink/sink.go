// Package sink defines the two egress boundaries the matching loop hands
// side effects across without ever blocking (spec components F, G): a
// lossless, back-pressured persistence sink and a best-effort broadcaster
// sink. Concrete implementations live in internal/persistence (Postgres)
// and internal/ws (WebSocket fan-out); this package also ships simple
// in-process defaults good enough to run the matcher standalone.
package sink

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"clobd/internal/model"
)

// PersistSink is the durable, append-only channel the matcher emits
// PersistEvents to. The sink's consumer may reorder completions
// internally but must apply events in submission order per order id
// (spec.md §4.6). Submit must never block the matching loop.
type PersistSink interface {
	Submit(evt model.PersistEvent) error
}

// BroadcastSink is the best-effort byte fan-out the matcher hands every
// trade's wire-encoded bytes to. Loss of a slow subscriber must never
// impact matcher latency (spec.md §4.5).
type BroadcastSink interface {
	Publish(data []byte)
}

// ChannelPersistSink is the default PersistSink: a buffered channel
// drained by a single worker goroutine (Run) supervised by a tomb.Tomb, the
// same lifecycle idiom the teacher repo used for its TCP connection workers.
// Submit rejects an event with an error when the buffer is full; the engine
// logs the rejection and continues — in-memory state remains authoritative
// (spec.md §4.6, §7).
type ChannelPersistSink struct {
	events  chan model.PersistEvent
	applier func(model.PersistEvent)
}

// NewChannelPersistSink creates a sink with the given channel buffer depth
// and a per-event applier (e.g. a Postgres write, or just a log line).
// bufferSize should be generous: the sink must be sufficiently provisioned
// that the matcher never blocks.
func NewChannelPersistSink(bufferSize int, applier func(model.PersistEvent)) *ChannelPersistSink {
	if applier == nil {
		applier = func(model.PersistEvent) {}
	}
	return &ChannelPersistSink{
		events:  make(chan model.PersistEvent, bufferSize),
		applier: applier,
	}
}

// Submit enqueues evt without blocking. Returns an error if the buffer is
// full rather than stalling the matcher — a full persistence buffer means
// the worker has fallen critically behind.
func (s *ChannelPersistSink) Submit(evt model.PersistEvent) error {
	select {
	case s.events <- evt:
		return nil
	default:
		return errPersistBufferFull
	}
}

// Run drains events until the tomb is dying, applying each one in
// submission order. Intended to be supervised with t.Go(sink.Run).
func (s *ChannelPersistSink) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			s.drainRemaining()
			return nil
		case evt := <-s.events:
			s.apply(evt)
		}
	}
}

func (s *ChannelPersistSink) drainRemaining() {
	for {
		select {
		case evt := <-s.events:
			s.apply(evt)
		default:
			return
		}
	}
}

func (s *ChannelPersistSink) apply(evt model.PersistEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("persistence applier panicked; continuing")
		}
	}()
	s.applier(evt)
}

var errPersistBufferFull = persistBufferFullError{}

type persistBufferFullError struct{}

func (persistBufferFullError) Error() string { return "sink: persistence buffer full" }

// LoggingApplier is a PersistSink applier that just logs every event via
// zerolog — the teacher's preferred way of making side effects visible
// before a real store is wired in.
func LoggingApplier(evt model.PersistEvent) {
	switch evt.Kind {
	case model.PersistNewOrder:
		log.Info().
			Uint32("order_id", evt.Order.OrderID).
			Uint32("price", evt.Order.Price).
			Uint32("quantity", evt.Order.Quantity).
			Str("side", evt.Order.Side.String()).
			Msg("persist: new order")
	case model.PersistOrderDeleted:
		log.Info().Uint32("order_id", evt.OrderID).Msg("persist: order deleted")
	case model.PersistTradeExecuted:
		log.Info().
			Uint32("price", evt.Price).
			Uint32("quantity", evt.Quantity).
			Uint32("maker_order_id", evt.MakerOrderID).
			Uint32("taker_order_id", evt.TakerOrderID).
			Msg("persist: trade executed")
	}
}

// NoopBroadcastSink discards every message. Useful when no subscribers
// are configured.
type NoopBroadcastSink struct{}

func (NoopBroadcastSink) Publish([]byte) {}

// StaticPersistSink is a PersistSink that always rejects — used to
// exercise the "persistence send failure: log and continue" path
// (spec.md §7) in tests without standing up a worker.
type StaticPersistSink struct{}

func (StaticPersistSink) Submit(model.PersistEvent) error { return errPersistBufferFull }
