// Package httpapi implements the HTTP ingress component the spec leaves
// as an external collaborator: it accepts orders over HTTP, assigns
// order ids, and pushes OrderEvents onto the matching engine's ingress
// ring. Built on gin.
package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"clobd/internal/depth"
	"clobd/internal/metrics"
	"clobd/internal/model"
	"clobd/internal/ring"
)

// Server is the HTTP ingress for one market: it owns the order-id
// counter and the handle to that market's ingress ring and depth
// publisher. It never touches the order book directly.
type Server struct {
	ring       *ring.Ring
	depthPub   *depth.Publisher
	reg        *metrics.Registry
	limiter    *perCallerLimiter
	nextOrder  atomic.Uint32
	engineName string
}

// perCallerLimiter keeps one token-bucket limiter per remote address, so
// one abusive client can't exhaust the budget shared by every other
// client on the market. Grounded on
// DimaJoyti-ai-agentic-crypto-browser/internal/security/rate_limiter.go's
// map[string]*rate.Limiter keyed by caller.
type perCallerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newPerCallerLimiter(ratePerSecond float64, burst int) *perCallerLimiter {
	return &perCallerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (l *perCallerLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// NewOrderRequest is the JSON body for POST /orders.
type NewOrderRequest struct {
	UserID   uint32 `json:"user_id"`
	Price    uint32 `json:"price"`
	Quantity uint32 `json:"quantity"`
	Side     string `json:"side" binding:"required,oneof=buy sell"`
}

// NewOrderResponse acknowledges acceptance onto the ingress ring. It does
// not mean the order has matched — only that it was enqueued.
type NewOrderResponse struct {
	OrderID uint32 `json:"order_id"`
}

// NewServer builds a Server for a single market. ratePerSecond/burst
// configure a token-bucket limiter (golang.org/x/time/rate) guarding the
// ingress endpoints from overload; pass 0 for ratePerSecond to disable
// limiting.
func NewServer(marketName string, in *ring.Ring, depthPub *depth.Publisher, reg *metrics.Registry, ratePerSecond float64, burst int) *Server {
	var limiter *perCallerLimiter
	if ratePerSecond > 0 {
		limiter = newPerCallerLimiter(ratePerSecond, burst)
	}
	return &Server{
		ring:       in,
		depthPub:   depthPub,
		reg:        reg,
		limiter:    limiter,
		engineName: marketName,
	}
}

// Register mounts the ingress routes onto r.
func (s *Server) Register(r gin.IRouter) {
	r.Use(s.instrument())
	r.POST("/orders", s.postOrder)
	r.DELETE("/orders/:id", s.deleteOrder)
	r.GET("/depth", s.getDepth)
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.reg == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status() / 100 * 100)
		s.reg.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
		s.reg.HTTPLatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
}

func (s *Server) allow(c *gin.Context) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.allow(c.ClientIP()) {
		return true
	}
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	return false
}

func (s *Server) postOrder(c *gin.Context) {
	if !s.allow(c) {
		return
	}

	var req NewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be strictly positive"})
		return
	}

	side := model.Buy
	if req.Side == "sell" {
		side = model.Sell
	}

	orderID := s.nextOrder.Add(1)
	evt := model.NewOrderEvent(orderID, req.UserID, req.Price, req.Quantity, side)

	if !s.ring.Push(evt) {
		log.Warn().Str("market", s.engineName).Msg("httpapi: ingress ring full, rejecting order")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingress queue full, retry"})
		return
	}

	c.JSON(http.StatusAccepted, NewOrderResponse{OrderID: orderID})
}

func (s *Server) deleteOrder(c *gin.Context) {
	if !s.allow(c) {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	evt := model.DeleteOrderEvent(uint32(id))
	if !s.ring.Push(evt) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingress queue full, retry"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "delete submitted"})
}

func (s *Server) getDepth(c *gin.Context) {
	limit := depth.MaxLevels
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > depth.MaxLevels {
		limit = depth.MaxLevels
	}

	snap := s.depthPub.Read()
	if len(snap.Bids) > limit {
		snap.Bids = snap.Bids[:limit]
	}
	if len(snap.Asks) > limit {
		snap.Asks = snap.Asks[:limit]
	}
	c.JSON(http.StatusOK, snap)
}
