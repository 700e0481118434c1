// Package metrics provides Prometheus metrics for the Orbit service.
//
// All recording methods are safe on a nil *Manager so components can be
// built without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every Orbit metric and the registry they live on.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Prediction
	predictions    *prometheus.CounterVec
	predictionHits prometheus.Counter
	rangeFallbacks *prometheus.CounterVec
	presets        *prometheus.CounterVec
	difficultyMiss prometheus.Counter
	modelLatency   prometheus.Histogram

	// Lifecycle
	missionsStarted   prometheus.Counter
	startRejected     *prometheus.CounterVec
	missionsCompleted *prometheus.CounterVec
	payoutCredited    prometheus.Counter
	eventsJournaled   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager on its own registry unless one is
// supplied with WithRegistry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "orbit",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "predictions_total",
		Help:      "Success predictions by outcome (success, failure, degraded)",
	}, []string{"outcome"})

	m.predictionHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "prediction_cache_hits_total",
		Help:      "Predictions served from the prediction cache",
	})

	m.rangeFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "range_fallbacks_total",
		Help:      "Lookups that used a default feature range",
	}, []string{"feature"})

	m.presets = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "presets_generated_total",
		Help:      "Generated mission presets by difficulty",
	}, []string{"difficulty"})

	m.difficultyMiss = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "difficulty_fallbacks_total",
		Help:      "Preset requests with an unknown difficulty label",
	})

	m.modelLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "model_latency_milliseconds",
		Help:      "Model evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.missionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "missions_started_total",
		Help:      "Missions started",
	})

	m.startRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "mission_start_rejected_total",
		Help:      "Rejected mission starts by reason",
	}, []string{"reason"})

	m.missionsCompleted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "missions_completed_total",
		Help:      "Missions moved to a terminal status",
	}, []string{"status"})

	m.payoutCredited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "payout_credited_total",
		Help:      "Total funds credited as mission payout",
	})

	m.eventsJournaled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_journaled_total",
		Help:      "Lifecycle events written to the mission journal",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})
}

// Registry returns the registry the manager registers on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPrediction counts a prediction by outcome.
func (m *Manager) RecordPrediction(outcome string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(outcome).Inc()
}

// RecordPredictionCacheHit counts a cached prediction.
func (m *Manager) RecordPredictionCacheHit() {
	if m == nil {
		return
	}
	m.predictionHits.Inc()
}

// RecordRangeFallback counts use of a default feature range.
func (m *Manager) RecordRangeFallback(feature string) {
	if m == nil {
		return
	}
	m.rangeFallbacks.WithLabelValues(feature).Inc()
}

// RecordPreset counts a generated preset. unknown marks a difficulty label
// that fell back to normal.
func (m *Manager) RecordPreset(difficulty string, unknown bool) {
	if m == nil {
		return
	}
	m.presets.WithLabelValues(difficulty).Inc()
	if unknown {
		m.difficultyMiss.Inc()
	}
}

// ObserveModelLatency records one model evaluation.
func (m *Manager) ObserveModelLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.Observe(float64(d.Microseconds()) / 1000)
}

// RecordMissionStarted counts a started mission.
func (m *Manager) RecordMissionStarted() {
	if m == nil {
		return
	}
	m.missionsStarted.Inc()
}

// RecordStartRejected counts a refused start.
func (m *Manager) RecordStartRejected(reason string) {
	if m == nil {
		return
	}
	m.startRejected.WithLabelValues(reason).Inc()
}

// RecordMissionCompleted counts a terminal transition and its payout.
func (m *Manager) RecordMissionCompleted(status string, payout int64) {
	if m == nil {
		return
	}
	m.missionsCompleted.WithLabelValues(status).Inc()
	if payout > 0 {
		m.payoutCredited.Add(float64(payout))
	}
}

// RecordEventJournaled counts a journaled lifecycle event.
func (m *Manager) RecordEventJournaled() {
	if m == nil {
		return
	}
	m.eventsJournaled.Inc()
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(float64(d.Microseconds()) / 1000)
}
