package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"clobd/internal/model"
	"clobd/internal/ring"
	"clobd/internal/sink"
)

type recordingPersist struct {
	mu     sync.Mutex
	events []model.PersistEvent
}

func (r *recordingPersist) Submit(evt model.PersistEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPersist) snapshot() []model.PersistEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PersistEvent, len(r.events))
	copy(out, r.events)
	return out
}

type recordingBroadcast struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recordingBroadcast) Publish(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, data)
}

func (r *recordingBroadcast) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func runEngine(t *testing.T, e *Engine) (*tomb.Tomb, func()) {
	t.Helper()
	var tb tomb.Tomb
	tb.Go(func() error { return e.Run(&tb) })
	return &tb, func() {
		tb.Kill(nil)
		require.NoError(t, tb.Wait())
	}
}

func TestEngineMatchesRestAndTrade(t *testing.T) {
	r := ring.New(64)
	persist := &recordingPersist{}
	broadcast := &recordingBroadcast{}

	cfg := DefaultConfig()
	cfg.IdleSpinIterations = 2
	e := New(r, persist, broadcast, nil, cfg)

	require.True(t, r.Push(model.NewOrderEvent(1, 10, 100, 5, model.Buy)))
	require.True(t, r.Push(model.NewOrderEvent(2, 20, 100, 5, model.Sell)))

	_, stop := runEngine(t, e)
	defer stop()

	assert.Eventually(t, func() bool {
		return broadcast.count() == 1
	}, time.Second, time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, evt := range persist.snapshot() {
			if evt.Kind == model.PersistTradeExecuted {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestEngineDeleteOrderPersistsOnlyWhenKnown(t *testing.T) {
	r := ring.New(64)
	persist := &recordingPersist{}
	broadcast := sink.NoopBroadcastSink{}

	cfg := DefaultConfig()
	cfg.IdleSpinIterations = 2
	e := New(r, persist, broadcast, nil, cfg)

	require.True(t, r.Push(model.DeleteOrderEvent(999)))

	_, stop := runEngine(t, e)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	for _, evt := range persist.snapshot() {
		assert.NotEqual(t, model.PersistOrderDeleted, evt.Kind)
	}
}

func TestEngineDrainsRingBeforeFinalDepthPublishOnShutdown(t *testing.T) {
	const numOrders = 50

	r := ring.New(128)
	persist := &recordingPersist{}
	broadcast := sink.NoopBroadcastSink{}

	cfg := DefaultConfig()
	cfg.BatchEvents = 1 // force many outer-loop iterations, one event at a time
	e := New(r, persist, broadcast, nil, cfg)

	for i := uint32(0); i < numOrders; i++ {
		require.True(t, r.Push(model.NewOrderEvent(i+1, 1, 100+i, 1, model.Buy)))
	}

	var tb tomb.Tomb
	tb.Go(func() error { return e.Run(&tb) })
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	assert.Equal(t, 0, r.Len(), "shutdown must drain the ring to empty before exiting")

	rested := 0
	for _, evt := range persist.snapshot() {
		if evt.Kind == model.PersistNewOrder {
			rested++
		}
	}
	assert.Equal(t, numOrders, rested, "every queued order must be processed, not dropped, on shutdown")

	snap := e.DepthPublisher().Read()
	assert.Len(t, snap.Bids, 20) // depth cache caps at MaxLevels per side
}

func TestEnginePublishesDepthOnStop(t *testing.T) {
	r := ring.New(64)
	persist := &recordingPersist{}
	broadcast := sink.NoopBroadcastSink{}

	e := New(r, persist, broadcast, nil, DefaultConfig())
	require.True(t, r.Push(model.NewOrderEvent(1, 10, 100, 5, model.Buy)))

	_, stop := runEngine(t, e)
	stop()

	snap := e.DepthPublisher().Read()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, uint32(100), snap.Bids[0].Price)
}
