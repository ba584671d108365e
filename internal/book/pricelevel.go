package book

// PriceLevel holds every resting order at one price on one side, in
// arrival order. Entries are appended, never reordered; removal sets a
// tombstone and adjusts the cached total rather than compacting the
// slices, so partial fills and cancels stay O(1) (spec.md §4.2).
type PriceLevel struct {
	Price      uint32
	orderIDs   []uint32
	userIDs    []uint32
	quantities []uint32
	tombstoned []bool
	totalQty   uint32
}

// NewPriceLevel creates an empty level at price.
func NewPriceLevel(price uint32) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Push appends a live entry and grows the cached total.
func (l *PriceLevel) Push(orderID, userID, quantity uint32) int {
	l.orderIDs = append(l.orderIDs, orderID)
	l.userIDs = append(l.userIDs, userID)
	l.quantities = append(l.quantities, quantity)
	l.tombstoned = append(l.tombstoned, false)
	l.totalQty += quantity
	return len(l.orderIDs) - 1
}

// RemoveAt tombstones the entry at i. A no-op if already tombstoned.
func (l *PriceLevel) RemoveAt(i int) {
	if l.tombstoned[i] {
		return
	}
	l.tombstoned[i] = true
	l.totalQty -= l.quantities[i]
}

// ReduceAt lowers the live quantity at i to newQty, which must be strictly
// less than the current quantity (a full fill goes through RemoveAt
// instead).
func (l *PriceLevel) ReduceAt(i int, newQty uint32) {
	old := l.quantities[i]
	if newQty >= old {
		panic("book: ReduceAt requires newQty < current quantity")
	}
	l.totalQty -= old - newQty
	l.quantities[i] = newQty
}

// IsEmpty reports whether every live entry has been tombstoned away.
func (l *PriceLevel) IsEmpty() bool {
	return l.totalQty == 0
}

// TotalQty returns the cached sum of live residual quantities.
func (l *PriceLevel) TotalQty() uint32 {
	return l.totalQty
}

// Len returns the number of entries ever pushed onto this level, including
// tombstoned ones.
func (l *PriceLevel) Len() int {
	return len(l.orderIDs)
}

// OrderIDAt returns the order id stored at index i, regardless of
// tombstone state.
func (l *PriceLevel) OrderIDAt(i int) uint32 {
	return l.orderIDs[i]
}

// QuantityAt returns the live residual quantity at index i.
func (l *PriceLevel) QuantityAt(i int) uint32 {
	return l.quantities[i]
}

// UserIDAt returns the owning user id at index i.
func (l *PriceLevel) UserIDAt(i int) uint32 {
	return l.userIDs[i]
}

// Tombstoned reports whether the entry at index i has been removed.
func (l *PriceLevel) Tombstoned(i int) bool {
	return l.tombstoned[i]
}

// headIndex returns the index of the head-most non-tombstoned entry, the
// next one eligible to match, or -1 if the level is empty.
func (l *PriceLevel) headIndex() int {
	for i, dead := range l.tombstoned {
		if !dead {
			return i
		}
	}
	return -1
}
