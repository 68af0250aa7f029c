// Package metrics holds the planner's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/waveplanner/internal/allocation"
)

const namespace = "waveplanner"

// Metrics holds all planner collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// RPC metrics
	RPCRequestsTotal *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec
	RPCRateLimited   *prometheus.CounterVec

	// Planning metrics
	OrdersEvaluated   prometheus.Counter
	OrdersMatched     prometheus.Counter
	OrdersAssigned    *prometheus.CounterVec
	OrdersUnassigned  *prometheus.CounterVec
	SubWavesPerPlan   prometheus.Histogram
	ComparisonEntries prometheus.Histogram
}

// New creates the collectors and registers them with Go and process
// collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of gRPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	m.RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	m.RPCRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_rate_limited_total",
			Help:      "Total number of gRPC requests rejected by the rate limiter",
		},
		[]string{"method"},
	)

	m.OrdersEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_evaluated_total",
			Help:      "Total number of orders evaluated against condition sequences",
		},
	)

	m.OrdersMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_matched_total",
			Help:      "Total number of orders matched by condition sequences",
		},
	)

	m.OrdersAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_assigned_total",
			Help:      "Total number of orders assigned to a stock point",
		},
		[]string{"mode"},
	)

	m.OrdersUnassigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_unassigned_total",
			Help:      "Total number of matched orders left unassigned, by reason",
		},
		[]string{"mode", "reason"},
	)

	m.SubWavesPerPlan = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_sub_waves",
			Help:      "Number of sub-waves per allocation plan",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.ComparisonEntries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_entries",
			Help:      "Number of strategies per comparison",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		},
	)

	registry.MustRegister(
		m.RPCRequestsTotal,
		m.RPCDuration,
		m.RPCRateLimited,
		m.OrdersEvaluated,
		m.OrdersMatched,
		m.OrdersAssigned,
		m.OrdersUnassigned,
		m.SubWavesPerPlan,
		m.ComparisonEntries,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRPC records one finished unary call.
func (m *Metrics) RecordRPC(method, code string, duration time.Duration) {
	m.RPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRateLimited records a call rejected before reaching the handler.
func (m *Metrics) RecordRateLimited(method string) {
	m.RPCRateLimited.WithLabelValues(method).Inc()
}

// RecordFilter records one filter pass over a pool.
func (m *Metrics) RecordFilter(evaluated, matched int) {
	m.OrdersEvaluated.Add(float64(evaluated))
	m.OrdersMatched.Add(float64(matched))
}

// RecordPlan records the outcome of one allocation run.
func (m *Metrics) RecordPlan(plan *allocation.WavePlan) {
	mode := string(plan.Mode)
	m.OrdersAssigned.WithLabelValues(mode).Add(float64(len(plan.Assignments)))
	for _, u := range plan.Unassigned {
		m.OrdersUnassigned.WithLabelValues(mode, string(u.Reason)).Inc()
	}
	m.SubWavesPerPlan.Observe(float64(len(plan.SubWaves)))
}

// RecordComparison records the size of one comparison.
func (m *Metrics) RecordComparison(entries int) {
	m.ComparisonEntries.Observe(float64(entries))
}
