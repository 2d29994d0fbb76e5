// Package metrics exposes Prometheus collectors for inference calls and
// review processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
)

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing, which keeps unit tests free of registry setup.
type Metrics struct {
	gatewayCallsTotal    *prometheus.CounterVec
	gatewayCallDuration  *prometheus.HistogramVec
	reviewsCompleted     *prometheus.CounterVec
	commentsAnswered     *prometheus.CounterVec
	effortExtractedTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		gatewayCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codezen_gateway_calls_total",
				Help: "Total number of inference service calls",
			},
			[]string{"provider", "outcome"}, // outcome: success or a gateway error kind
		),
		gatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "codezen_gateway_call_duration_seconds",
				Help: "Time taken by inference service calls",
				// 250ms up to ~8.5 minutes; local models are slow
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
			},
			[]string{"provider"},
		),
		reviewsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codezen_reviews_completed_total",
				Help: "Total number of completed reviews",
			},
			[]string{"outcome"},
		),
		commentsAnswered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codezen_comments_answered_total",
				Help: "Total number of answered review questions",
			},
			[]string{"outcome"},
		),
		effortExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codezen_effort_extraction_total",
				Help: "Effort estimation extraction attempts on inference replies",
			},
			[]string{"found"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.gatewayCallsTotal.Describe(ch)
	m.gatewayCallDuration.Describe(ch)
	m.reviewsCompleted.Describe(ch)
	m.commentsAnswered.Describe(ch)
	m.effortExtractedTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.gatewayCallsTotal.Collect(ch)
	m.gatewayCallDuration.Collect(ch)
	m.reviewsCompleted.Collect(ch)
	m.commentsAnswered.Collect(ch)
	m.effortExtractedTotal.Collect(ch)
}

// RecordGatewayCall records one inference call and how long it took.
func (m *Metrics) RecordGatewayCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.gatewayCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) RecordReviewCompleted(fallback bool) {
	if m == nil {
		return
	}
	m.reviewsCompleted.WithLabelValues(outcome(fallback)).Inc()
}

func (m *Metrics) RecordCommentAnswered(fallback bool) {
	if m == nil {
		return
	}
	m.commentsAnswered.WithLabelValues(outcome(fallback)).Inc()
}

func (m *Metrics) RecordEffortExtraction(found bool) {
	if m == nil {
		return
	}
	label := "false"
	if found {
		label = "true"
	}
	m.effortExtractedTotal.WithLabelValues(label).Inc()
}

func outcome(fallback bool) string {
	if fallback {
		return OutcomeFallback
	}
	return OutcomeSuccess
}
