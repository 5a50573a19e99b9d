// Package metrics exposes Prometheus collectors for the Link chat service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	reconcileDropped *prometheus.CounterVec
	backendRequests  *prometheus.CounterVec
	backendLatency   *prometheus.HistogramVec
	bestEffortFails  *prometheus.CounterVec
	realtimeDropped  prometheus.Counter
	activeChats      prometheus.Gauge
}

// New registers the collectors on reg. Passing prometheus.DefaultRegisterer
// exposes them through promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "link",
			Name:      "reconcile_dropped_total",
			Help:      "Messages removed while merging history with optimistic messages.",
		}, []string{"reason"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "link",
			Name:      "backend_requests_total",
			Help:      "Requests sent to the Link AI backend.",
		}, []string{"endpoint", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "link",
			Name:      "backend_request_seconds",
			Help:      "Latency of Link AI backend requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		bestEffortFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "link",
			Name:      "best_effort_failures_total",
			Help:      "Background writes that failed and were ignored.",
		}, []string{"operation"}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "link",
			Name:      "realtime_dropped_total",
			Help:      "Realtime deliveries dropped because a subscriber was slow.",
		}),
		activeChats: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "link",
			Name:      "active_chats",
			Help:      "Chat controllers currently open.",
		}),
	}

	reg.MustRegister(
		m.reconcileDropped,
		m.backendRequests,
		m.backendLatency,
		m.bestEffortFails,
		m.realtimeDropped,
		m.activeChats,
	)
	return m
}

func (m *Metrics) ReconcileDropped(duplicateIDs, replaced, collapsed int) {
	if m == nil {
		return
	}
	m.reconcileDropped.WithLabelValues("duplicate_id").Add(float64(duplicateIDs))
	m.reconcileDropped.WithLabelValues("replaced").Add(float64(replaced))
	m.reconcileDropped.WithLabelValues("collapsed").Add(float64(collapsed))
}

func (m *Metrics) BackendRequest(endpoint string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.backendLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func (m *Metrics) BestEffortFailed(operation string) {
	if m == nil {
		return
	}
	m.bestEffortFails.WithLabelValues(operation).Inc()
}

func (m *Metrics) RealtimeDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}

func (m *Metrics) ChatOpened() {
	if m == nil {
		return
	}
	m.activeChats.Inc()
}

func (m *Metrics) ChatClosed() {
	if m == nil {
		return
	}
	m.activeChats.Dec()
}
