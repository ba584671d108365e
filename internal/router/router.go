// Package router implements the multi-market collaborator (spec.md §1):
// one matching engine handle per market, addressed by MarketID. Everything
// here is wiring — the router never touches order-book state itself.
package router

import (
	"fmt"
	"sync"

	"clobd/internal/depth"
	"clobd/internal/model"
	"clobd/internal/ring"
)

// MarketID names one independent order book. The matching pipeline
// itself is single-market (spec.md §1); this type is purely a routing key.
type MarketID string

// Handle is everything a caller needs to submit orders to, and read
// depth from, one market's engine without reaching into its internals.
type Handle struct {
	ID       MarketID
	Ring     *ring.Ring
	DepthPub *depth.Publisher
}

// Router owns one Handle per configured market.
type Router struct {
	mu      sync.RWMutex
	markets map[MarketID]*Handle
}

// New builds an empty Router.
func New() *Router {
	return &Router{markets: make(map[MarketID]*Handle)}
}

// AddMarket registers a market's ingress ring and depth publisher under id.
// Returns an error if id is already registered.
func (r *Router) AddMarket(id MarketID, in *ring.Ring, depthPub *depth.Publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.markets[id]; exists {
		return fmt.Errorf("router: market %q already registered", id)
	}
	r.markets[id] = &Handle{ID: id, Ring: in, DepthPub: depthPub}
	return nil
}

// Markets lists every registered market id.
func (r *Router) Markets() []MarketID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MarketID, 0, len(r.markets))
	for id := range r.markets {
		out = append(out, id)
	}
	return out
}

// Handle looks up a market's handle.
func (r *Router) Handle(id MarketID) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.markets[id]
	return h, ok
}

// Submit pushes evt onto the named market's ingress ring. Returns an
// error if the market is unknown or the ring is full — the router never
// blocks, matching the ingress queue's own back-pressure contract
// (spec.md §4.1).
func (r *Router) Submit(id MarketID, evt model.OrderEvent) error {
	h, ok := r.Handle(id)
	if !ok {
		return fmt.Errorf("router: unknown market %q", id)
	}
	if !h.Ring.Push(evt) {
		return fmt.Errorf("router: market %q ingress queue full", id)
	}
	return nil
}

// Depth reads the named market's last published depth snapshot.
func (r *Router) Depth(id MarketID) (depth.Snapshot, error) {
	h, ok := r.Handle(id)
	if !ok {
		return depth.Snapshot{}, fmt.Errorf("router: unknown market %q", id)
	}
	return h.DepthPub.Read(), nil
}
