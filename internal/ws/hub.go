// Package ws implements the WebSocket broadcaster sink (spec component G):
// every connected subscriber receives every trade's wire-encoded bytes,
// best-effort and non-blocking. Modeled on the original implementation's
// actix Broadcaster (worker/ws.rs): a mutex-guarded slice of subscribers,
// held only long enough to copy it out before fanning a message out.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// subscriber is one connected client's outbound queue. A full queue means
// the client is too slow; the hub drops the message rather than block the
// broadcaster (spec.md §4.5).
type subscriber struct {
	id   uint64
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans trade broadcasts out to every connected WebSocket client. It
// satisfies sink.BroadcastSink.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      uint64

	outboxDepth int
}

// NewHub builds an empty Hub. outboxDepth bounds each subscriber's
// per-connection send queue.
func NewHub(outboxDepth int) *Hub {
	if outboxDepth <= 0 {
		outboxDepth = 32
	}
	return &Hub{
		subscribers: make(map[uint64]*subscriber),
		outboxDepth: outboxDepth,
	}
}

// Publish fans data out to every current subscriber without blocking.
// Slow subscribers silently drop the message (spec.md §4.5, §7).
func (h *Hub) Publish(data []byte) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.out <- data:
		default:
			log.Warn().Uint64("subscriber_id", s.id).Msg("ws: subscriber outbox full, dropping message")
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection as a subscriber until it disconnects. Inbound frames are
// read and discarded: this is a publish-only feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	s := h.register(conn)
	defer h.unregister(s.id)
	defer conn.Close()

	done := make(chan struct{})
	go h.writeLoop(s, done)
	h.readLoop(conn, done)
}

func (h *Hub) register(conn *websocket.Conn) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &subscriber{id: h.nextID, conn: conn, out: make(chan []byte, h.outboxDepth)}
	h.subscribers[s.id] = s
	return s
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subscribers[id]; ok {
		close(s.out)
		delete(h.subscribers, id)
	}
}

func (h *Hub) writeLoop(s *subscriber, done chan struct{}) {
	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SubscriberCount reports how many clients are currently connected.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
