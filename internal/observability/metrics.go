// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicore/clinicore/internal/inventory"
)

// Metrics holds the registry and the application metric vectors.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	receiptsTotal    *prometheus.CounterVec
	allocationsTotal prometheus.Counter
	allocatedUnits   prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicore_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinicore_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicore_inventory_receipts_total",
		Help: "Committed import receipt mutations by action.",
	}, []string{"action"})
	allocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinicore_inventory_allocations_total",
		Help: "Committed standalone stock allocations.",
	})
	allocatedUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinicore_inventory_allocated_units_total",
		Help: "Units of stock dispensed through standalone allocations.",
	})
	registry.MustRegister(requests, duration, receipts, allocations, allocatedUnits)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		receiptsTotal:    receipts,
		allocationsTotal: allocations,
		allocatedUnits:   allocatedUnits,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ReceiptPosted implements inventory.Notifier.
func (m *Metrics) ReceiptPosted(event inventory.ReceiptPostedEvent) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(event.Action).Inc()
}

// StockAllocated implements inventory.Notifier.
func (m *Metrics) StockAllocated(event inventory.StockAllocatedEvent) {
	if m == nil {
		return
	}
	m.allocationsTotal.Inc()
	m.allocatedUnits.Add(float64(event.Quantity))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

var _ inventory.Notifier = (*Metrics)(nil)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
