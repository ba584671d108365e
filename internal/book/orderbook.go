// Package book implements the price-indexed order book and the matching
// algorithm (spec components B and C): two price-ordered maps of
// PriceLevel keyed by side, an order-id to location index for O(1)
// cancellation, and price-time-priority matching. Grounded on the
// teacher's internal/engine/orderbook.go, which used
// github.com/tidwall/btree.BTreeG for the same ordered-map shape; this
// generalizes that sketch with the tombstone/location-index machinery and
// the uint32-tick data model spec.md requires.
package book

import (
	"fmt"

	"github.com/tidwall/btree"

	"clobd/internal/depth"
	"clobd/internal/model"
	"clobd/internal/trade"
)

// OrderLocation lets DeleteOrder find a live resting order in O(1).
type OrderLocation struct {
	Side  model.Side
	Price uint32
	Index int
}

// OrderBook is the aggregate owned exclusively by the matching loop: bids
// (high to low), asks (low to high), and the order-id location index.
type OrderBook struct {
	bids      *btree.BTreeG[*PriceLevel]
	asks      *btree.BTreeG[*PriceLevel]
	locations map[uint32]OrderLocation
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price > b.Price // descending: best bid first
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price < b.Price // ascending: best ask first
		}),
		locations: make(map[uint32]OrderLocation),
	}
}

// MatchLimitOrder matches taker against the opposite side under strict
// price-time priority (spec.md §4.3), appending every resulting fill into
// buf in emission order. If the taker still has quantity left after the
// sweep, it rests on its own side and MatchLimitOrder returns the resting
// order and true; otherwise it returns the zero Order and false.
//
// nowMS is captured once by the caller at the start of the event and
// reused for every trade this call produces (spec.md "Timestamp
// semantics").
func (ob *OrderBook) MatchLimitOrder(taker model.Order, buf *trade.Buffer, nowMS int64) (model.Order, bool) {
	if taker.Quantity == 0 {
		panic("book: taker quantity must be > 0; reject upstream of the matcher")
	}

	var opposite *btree.BTreeG[*PriceLevel]
	switch taker.Side {
	case model.Buy:
		opposite = ob.asks
	case model.Sell:
		opposite = ob.bids
	}

	for taker.Quantity > 0 {
		level, ok := opposite.MinMut()
		if !ok {
			break
		}
		if !crosses(taker, level) {
			break
		}

		for i := level.headIndex(); i != -1 && taker.Quantity > 0; i = level.headIndex() {
			makerQty := level.QuantityAt(i)
			makerID := level.OrderIDAt(i)

			traded := min(taker.Quantity, makerQty)
			taker.Quantity -= traded

			buf.Append(trade.Record{
				Price:        level.Price,
				Quantity:     traded,
				MakerOrderID: makerID,
				TakerOrderID: taker.OrderID,
				TimestampMS:  nowMS,
			})

			if traded == makerQty {
				level.RemoveAt(i)
				delete(ob.locations, makerID)
			} else {
				level.ReduceAt(i, makerQty-traded)
			}
		}

		// The level must be dropped from the tree before the next outer
		// iteration, or MinMut would keep handing back the same drained
		// level forever.
		if level.IsEmpty() {
			opposite.Delete(level)
		}
	}

	if taker.Quantity == 0 {
		return model.Order{}, false
	}

	ob.rest(taker)
	return taker, true
}

// crosses reports whether level is within the taker's limit.
func crosses(taker model.Order, level *PriceLevel) bool {
	switch taker.Side {
	case model.Buy:
		return level.Price <= taker.Price
	default:
		return level.Price >= taker.Price
	}
}

// rest appends the residual taker onto its own side, creating the price
// level if absent, and records its location.
func (ob *OrderBook) rest(o model.Order) {
	own := ob.bids
	if o.Side == model.Sell {
		own = ob.asks
	}

	level, ok := own.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		level = NewPriceLevel(o.Price)
		own.Set(level)
	}
	idx := level.Push(o.OrderID, o.UserID, o.Quantity)
	ob.locations[o.OrderID] = OrderLocation{Side: o.Side, Price: o.Price, Index: idx}
}

// DeleteOrder removes a resting order by id. Returns false if the id is
// unknown (an idempotent no-op, not an error — spec.md §4.3, §7).
func (ob *OrderBook) DeleteOrder(orderID uint32) bool {
	loc, ok := ob.locations[orderID]
	if !ok {
		return false
	}

	side := ob.asks
	if loc.Side == model.Buy {
		side = ob.bids
	}

	level, ok := side.GetMut(&PriceLevel{Price: loc.Price})
	if !ok {
		panic(fmt.Sprintf("book: location index points at missing level for order %d", orderID))
	}
	level.RemoveAt(loc.Index)
	if level.IsEmpty() {
		side.Delete(level)
	}

	delete(ob.locations, orderID)
	return true
}

// BestBid returns the highest resting bid price, if any.
func (ob *OrderBook) BestBid() (uint32, bool) {
	l, ok := ob.bids.Min()
	if !ok {
		return 0, false
	}
	return l.Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (ob *OrderBook) BestAsk() (uint32, bool) {
	l, ok := ob.asks.Min()
	if !ok {
		return 0, false
	}
	return l.Price, true
}

// FillDepth implements depth.RebuildFunc: it scans bids high to low and
// asks low to high, writing up to depth.MaxLevels [price,qty] entries per
// side.
func (ob *OrderBook) FillDepth(bids, asks *[depth.MaxLevels]depth.Level) (nBids, nAsks int) {
	ob.bids.Scan(func(l *PriceLevel) bool {
		if nBids >= depth.MaxLevels {
			return false
		}
		bids[nBids] = depth.Level{Price: l.Price, Qty: l.TotalQty()}
		nBids++
		return true
	})
	ob.asks.Scan(func(l *PriceLevel) bool {
		if nAsks >= depth.MaxLevels {
			return false
		}
		asks[nAsks] = depth.Level{Price: l.Price, Qty: l.TotalQty()}
		nAsks++
		return true
	})
	return nBids, nAsks
}

// LevelCount exposes the number of resting price levels per side, mostly
// useful for tests and diagnostics.
func (ob *OrderBook) LevelCount() (bids, asks int) {
	return ob.bids.Len(), ob.asks.Len()
}
