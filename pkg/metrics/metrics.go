// Package metrics provides Prometheus-based metrics recording for tool
// dispatch, engine retries, and intent routing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"infraops/pkg/locker"
	"infraops/pkg/router"
)

// Recorder owns the process metrics registry. Using a private registry keeps
// tests free of duplicate-registration panics.
type Recorder struct {
	registry *prometheus.Registry

	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	routesTotal      *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
}

// NewRecorder creates a recorder with all instruments registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		dispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infraops_tool_dispatches_total",
				Help: "Total number of tool dispatches by tool and status",
			},
			[]string{"tool", "status"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "infraops_tool_dispatch_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infraops_engine_retries_total",
				Help: "Total number of engine call retries by resource domain",
			},
			[]string{"domain"},
		),
		routesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infraops_intent_routes_total",
				Help: "Total number of routed intents by source (llm or fallback)",
			},
			[]string{"source"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "infraops_sessions_active",
				Help: "Number of currently open chat sessions",
			},
		),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordDispatch implements dispatch.Recorder.
func (r *Recorder) RecordDispatch(tool string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.dispatchesTotal.WithLabelValues(tool, status).Inc()
	r.dispatchDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordRetry implements locker.RetryObserver.
func (r *Recorder) RecordRetry(domain locker.Domain) {
	r.retriesTotal.WithLabelValues(string(domain)).Inc()
}

// RecordRoute counts one routed intent by source.
func (r *Recorder) RecordRoute(source router.Source) {
	r.routesTotal.WithLabelValues(string(source)).Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (r *Recorder) SessionOpened() { r.sessionsActive.Inc() }
func (r *Recorder) SessionClosed() { r.sessionsActive.Dec() }
