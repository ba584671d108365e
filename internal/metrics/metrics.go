// Package metrics wires Prometheus collectors for the matching pipeline
// (orders matched, matching latency, depth broadcasts, trades executed,
// ingress queue depth, HTTP request counts/latency) and a console ticker
// that logs a snapshot every few seconds — the same two-tier observability
// the original Rust implementation's metrics.rs carried: machine-readable
// /metrics plus a human-readable heartbeat in the logs.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry bundles every collector the matching pipeline touches. A zero
// Registry is not usable; build one with NewRegistry.
type Registry struct {
	OrdersMatchedTotal   prometheus.Counter
	TradesExecutedTotal  prometheus.Counter
	DepthBroadcastsTotal prometheus.Counter
	MatchingLatencyMS    prometheus.Histogram
	QueueDepth           prometheus.Gauge

	HTTPRequestsTotal *prometheus.CounterVec
	HTTPLatencyMS     *prometheus.HistogramVec
}

// NewRegistry constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		OrdersMatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "clobd_orders_matched_total",
			Help: "Total number of orders dequeued and processed by the matching loop.",
		}),
		TradesExecutedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "clobd_trades_executed_total",
			Help: "Total number of trades produced by the matching engine.",
		}),
		DepthBroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "clobd_depth_broadcasts_total",
			Help: "Total number of depth snapshots published.",
		}),
		MatchingLatencyMS: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clobd_matching_engine_latency_ms",
			Help:    "Wall-clock time to process a single ingress event, in milliseconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "clobd_ingress_queue_depth",
			Help: "Number of events currently buffered in the ingress ring.",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clobd_http_requests_total",
			Help: "Total HTTP requests handled, by route and status class.",
		}, []string{"route", "status"}),
		HTTPLatencyMS: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clobd_http_latency_ms",
			Help:    "HTTP request handling latency in milliseconds, by route.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"route"}),
	}
}

// ConsoleTicker periodically logs a human-readable snapshot of the
// counters, the way the original implementation's console ticker thread
// did every 5 seconds. Call Run in a supervised goroutine; it returns
// when ctx is cancelled.
type ConsoleTicker struct {
	reg      *Registry
	interval time.Duration
}

// NewConsoleTicker builds a ticker that logs every interval.
func NewConsoleTicker(reg *Registry, interval time.Duration) *ConsoleTicker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ConsoleTicker{reg: reg, interval: interval}
}

// Run blocks, logging a snapshot on every tick, until ctx is done.
func (c *ConsoleTicker) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.logSnapshot()
		}
	}
}

func (c *ConsoleTicker) logSnapshot() {
	log.Info().
		Float64("orders_matched_total", counterValue(c.reg.OrdersMatchedTotal)).
		Float64("trades_executed_total", counterValue(c.reg.TradesExecutedTotal)).
		Float64("depth_broadcasts_total", counterValue(c.reg.DepthBroadcastsTotal)).
		Float64("queue_depth", gaugeValue(c.reg.QueueDepth)).
		Msg("metrics snapshot")
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	_ = g.Write(&m)
	return m.GetGauge().GetValue()
}
