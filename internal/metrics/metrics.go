// Package metrics provides Prometheus instrumentation for the consensus engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts evaluation cycles by outcome (ok, superseded, failed).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whale_consensus_cycles_total",
		Help: "Evaluation cycles by outcome",
	}, []string{"outcome"})

	// CycleDuration tracks wall time of completed cycles.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whale_consensus_cycle_duration_seconds",
		Help:    "Evaluation cycle duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Signals is the size of the latest signal set.
	Signals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "whale_consensus_signals",
		Help: "Number of signals in the latest result",
	})

	// TrackedWallets is the size of the watch list.
	TrackedWallets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "whale_consensus_tracked_wallets",
		Help: "Number of tracked wallets",
	})

	// UpstreamRequests counts provider calls by endpoint and result.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whale_consensus_upstream_requests_total",
		Help: "Upstream data provider requests",
	}, []string{"endpoint", "result"})

	// UpstreamLatency tracks provider call latency by endpoint.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whale_consensus_upstream_latency_seconds",
		Help:    "Upstream request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// CacheLookups counts cache hits and misses by kind.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whale_consensus_cache_lookups_total",
		Help: "Cache lookups by kind and result",
	}, []string{"kind", "result"})

	// WebSocketClients tracks connected stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "whale_consensus_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whale_consensus_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whale_consensus_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
