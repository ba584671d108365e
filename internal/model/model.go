// Package model holds the data types shared across the matching pipeline:
// the order identity, the wire-level event union the matcher consumes, and
// the persistence event union it emits. None of these types carry any
// mutex or channel — they are plain values copied freely between packages.
package model

// Side is a two-valued tag for which book an order rests on.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is the identity plus mutable residual quantity of a resting or
// in-flight limit order. Price is an integer market tick; there is no
// floating point anywhere in this system.
type Order struct {
	OrderID  uint32
	UserID   uint32
	Price    uint32
	Quantity uint32
	Side     Side
}

// EventKind discriminates the OrderEvent union the matcher consumes.
type EventKind uint8

const (
	EventNewOrder EventKind = iota
	EventDeleteOrder
)

// OrderEvent is the tagged union the matcher reads off the ingress queue:
// either a NewOrder (Price/Quantity/Side populated) or a DeleteOrder (only
// OrderID populated). Kept as a single flat struct, not an interface, so it
// can sit in the ring buffer's backing array without an allocation.
type OrderEvent struct {
	Kind     EventKind
	OrderID  uint32
	UserID   uint32
	Price    uint32
	Quantity uint32
	Side     Side
}

// NewOrderEvent builds the NewOrder variant.
func NewOrderEvent(orderID, userID, price, quantity uint32, side Side) OrderEvent {
	return OrderEvent{
		Kind:     EventNewOrder,
		OrderID:  orderID,
		UserID:   userID,
		Price:    price,
		Quantity: quantity,
		Side:     side,
	}
}

// DeleteOrderEvent builds the DeleteOrder variant.
func DeleteOrderEvent(orderID uint32) OrderEvent {
	return OrderEvent{Kind: EventDeleteOrder, OrderID: orderID}
}

// PersistKind discriminates the PersistEvent union emitted to the durable
// sink.
type PersistKind uint8

const (
	PersistNewOrder PersistKind = iota
	PersistOrderDeleted
	PersistTradeExecuted
)

// PersistEvent is the only form the matcher emits to the persistence sink.
// Fields unused by a given Kind are left zero.
type PersistEvent struct {
	Kind PersistKind

	// PersistNewOrder
	Order Order

	// PersistOrderDeleted
	OrderID uint32

	// PersistTradeExecuted
	TradeID       [16]byte
	Price         uint32
	Quantity      uint32
	MakerOrderID  uint32
	TakerOrderID  uint32
	TimestampUnix int64 // ms since epoch
}

// NewOrderPersisted builds the NewOrder persistence variant for a residual
// order that actually rested on the book.
func NewOrderPersisted(o Order) PersistEvent {
	return PersistEvent{Kind: PersistNewOrder, Order: o}
}

// OrderDeletedPersisted builds the OrderDeleted persistence variant.
func OrderDeletedPersisted(orderID uint32) PersistEvent {
	return PersistEvent{Kind: PersistOrderDeleted, OrderID: orderID}
}

// TradeExecutedPersisted builds the TradeExecuted persistence variant.
func TradeExecutedPersisted(tradeID [16]byte, price, quantity, makerOrderID, takerOrderID uint32, timestampUnixMS int64) PersistEvent {
	return PersistEvent{
		Kind:          PersistTradeExecuted,
		TradeID:       tradeID,
		Price:         price,
		Quantity:      quantity,
		MakerOrderID:  makerOrderID,
		TakerOrderID:  takerOrderID,
		TimestampUnix: timestampUnixMS,
	}
}
