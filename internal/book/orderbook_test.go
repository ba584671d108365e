package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clobd/internal/depth"
	"clobd/internal/model"
	"clobd/internal/trade"
)

func newTestBook() (*OrderBook, *trade.Buffer) {
	return NewOrderBook(), trade.NewBuffer(trade.DefaultCapacity)
}

// S1 — passive rest: empty book, one buy limit order rests with no trades.
func TestS1_PassiveRest(t *testing.T) {
	ob, buf := newTestBook()

	resting, didRest := ob.MatchLimitOrder(model.Order{OrderID: 1, UserID: 10, Price: 100, Quantity: 5, Side: model.Buy}, buf, 1000)

	assert.True(t, didRest)
	assert.Equal(t, uint32(1), resting.OrderID)
	assert.Equal(t, 0, buf.Len())

	bids, asks := ob.LevelCount()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 0, asks)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint32(100), bid)
}

// S2 — exact match, full: resting buy fully consumed by an equal sell.
func TestS2_ExactMatchFull(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, UserID: 10, Price: 100, Quantity: 5, Side: model.Buy}, buf, 1000)
	buf.Reset()

	_, didRest := ob.MatchLimitOrder(model.Order{OrderID: 2, UserID: 20, Price: 100, Quantity: 5, Side: model.Sell}, buf, 1001)

	assert.False(t, didRest)
	require.Equal(t, 1, buf.Len())
	tr := buf.Records()[0]
	assert.Equal(t, uint32(100), tr.Price)
	assert.Equal(t, uint32(5), tr.Quantity)
	assert.Equal(t, uint32(1), tr.MakerOrderID)
	assert.Equal(t, uint32(2), tr.TakerOrderID)

	bids, asks := ob.LevelCount()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 0, asks)
}

// S3 — partial taker, remainder rests across two crossing ask levels.
func TestS3_PartialTakerRemainderRests(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 3, Side: model.Sell}, buf, 1000)
	buf.Reset()
	ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 101, Quantity: 2, Side: model.Sell}, buf, 1000)
	buf.Reset()

	resting, didRest := ob.MatchLimitOrder(model.Order{OrderID: 3, Price: 102, Quantity: 10, Side: model.Buy}, buf, 1000)

	require.True(t, didRest)
	assert.Equal(t, uint32(5), resting.Quantity)
	require.Len(t, buf.Records(), 2)
	assert.Equal(t, uint32(100), buf.Records()[0].Price)
	assert.Equal(t, uint32(3), buf.Records()[0].Quantity)
	assert.Equal(t, uint32(1), buf.Records()[0].MakerOrderID)
	assert.Equal(t, uint32(101), buf.Records()[1].Price)
	assert.Equal(t, uint32(2), buf.Records()[1].Quantity)
	assert.Equal(t, uint32(2), buf.Records()[1].MakerOrderID)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint32(102), bid)
	_, asksLeft := ob.LevelCount()
	assert.Equal(t, 0, asksLeft)
}

// S4 — price-time priority: two resting buys at the same price, earlier
// arrival fills first.
func TestS4_PriceTimePriority(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 2, Side: model.Buy}, buf, 1000)
	buf.Reset()
	ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 100, Quantity: 3, Side: model.Buy}, buf, 1000)
	buf.Reset()

	_, didRest := ob.MatchLimitOrder(model.Order{OrderID: 3, Price: 100, Quantity: 4, Side: model.Sell}, buf, 1000)

	assert.False(t, didRest)
	require.Len(t, buf.Records(), 2)
	assert.Equal(t, uint32(1), buf.Records()[0].MakerOrderID)
	assert.Equal(t, uint32(2), buf.Records()[0].Quantity)
	assert.Equal(t, uint32(2), buf.Records()[1].MakerOrderID)
	assert.Equal(t, uint32(2), buf.Records()[1].Quantity)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint32(100), bid)
}

// S5 — cancel before match: cancelled order leaves no trace.
func TestS5_CancelBeforeMatch(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 5, Side: model.Buy}, buf, 1000)

	deleted := ob.DeleteOrder(1)
	assert.True(t, deleted)

	bids, asks := ob.LevelCount()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 0, asks)

	buf.Reset()
	_, didRest := ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 100, Quantity: 5, Side: model.Sell}, buf, 1000)
	assert.True(t, didRest)
	assert.Equal(t, 0, buf.Len())
}

// S6 — level cleanup: a fully filled resting order's level is reaped.
func TestS6_LevelCleanupOnFullFill(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 5, Side: model.Sell}, buf, 1000)
	buf.Reset()
	ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 101, Quantity: 5, Side: model.Sell}, buf, 1000)
	buf.Reset()

	ob.MatchLimitOrder(model.Order{OrderID: 3, Price: 100, Quantity: 5, Side: model.Buy}, buf, 1000)

	_, asks := ob.LevelCount()
	assert.Equal(t, 1, asks)
	bestAsk, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint32(101), bestAsk)
}

func TestDeleteOrderUnknownIsNoop(t *testing.T) {
	ob := NewOrderBook()
	assert.False(t, ob.DeleteOrder(999))
	// Idempotent under repetition.
	assert.False(t, ob.DeleteOrder(999))
}

func TestNoCrossInvariant(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 5, Side: model.Buy}, buf, 1000)
	buf.Reset()
	ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 105, Quantity: 5, Side: model.Sell}, buf, 1000)

	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if hasBid && hasAsk {
		assert.Less(t, bid, ask)
	}
}

func TestPartialFillReducesLevelTotal(t *testing.T) {
	ob, buf := newTestBook()
	ob.MatchLimitOrder(model.Order{OrderID: 1, Price: 100, Quantity: 10, Side: model.Sell}, buf, 1000)
	buf.Reset()

	ob.MatchLimitOrder(model.Order{OrderID: 2, Price: 100, Quantity: 4, Side: model.Buy}, buf, 1000)

	bestAsk, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint32(100), bestAsk)

	var bids, asks [depth.MaxLevels]depth.Level
	_, nAsks := ob.FillDepth(&bids, &asks)
	require.Equal(t, 1, nAsks)
	assert.Equal(t, uint32(6), asks[0].Qty)
}
