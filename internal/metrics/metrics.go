// Package metrics exposes Prometheus collectors for quiz generation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Request outcomes recorded by QuizRequests.
const (
	OutcomeCacheHit         = "cache_hit"
	OutcomeGenerated        = "generated"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeGenerationFailed = "generation_failed"
	OutcomePersistFailed    = "persistence_failed"
)

// Metrics groups the collectors. Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	Registry           *prometheus.Registry
	QuizRequests       *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ExtractionDuration prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		QuizRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikiquiz",
			Name:      "quiz_requests_total",
			Help:      "Generate-quiz requests by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wikiquiz",
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the generation service.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wikiquiz",
			Name:      "extraction_duration_seconds",
			Help:      "Time spent fetching and parsing articles.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikiquiz",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wikiquiz",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(
		m.QuizRequests,
		m.GenerationDuration,
		m.ExtractionDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Outcome counts one generate-quiz request.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.QuizRequests.WithLabelValues(outcome).Inc()
}

// ObserveGeneration records how long a generation call took.
func (m *Metrics) ObserveGeneration(start time.Time) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(time.Since(start).Seconds())
}

// ObserveExtraction records how long an extraction took.
func (m *Metrics) ObserveExtraction(start time.Time) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
