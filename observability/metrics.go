// Package observability provides the Prometheus metrics and the tracer used by
// the answer engine, the retriever and the summary trigger.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const metricsNamespace = "campusrag"

// TracerName is the instrumentation scope for campusrag spans.
const TracerName = "github.com/smallnest/campusrag"

// Tracer returns the global tracer for campusrag spans.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Answer outcomes.
const (
	OutcomeRAG       = "rag"
	OutcomeNoContext = "no_context"
	OutcomeSmallTalk = "small_talk"
	OutcomeError     = "error"
)

// Metrics holds the campusrag collectors.
type Metrics struct {
	// AnswerRequests counts answer requests by outcome.
	AnswerRequests *prometheus.CounterVec
	// AnswerDuration observes end-to-end answer latency by outcome.
	AnswerDuration *prometheus.HistogramVec
	// StageDuration observes per-stage latency (embed, search, generate).
	StageDuration *prometheus.HistogramVec
	// DegradedRetrievals counts sparse failures recovered as dense-only.
	DegradedRetrievals prometheus.Counter
	// BestScore observes the top fused score of retrievals.
	BestScore prometheus.Histogram
	// SummaryUpdates counts trigger runs by result (updated, skipped, conflict, failed).
	SummaryUpdates *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnswerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Answer requests by outcome.",
		}, []string{"outcome"}),
		AnswerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "End-to-end answer latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "answer",
			Name:      "stage_duration_seconds",
			Help:      "Latency of answer pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		DegradedRetrievals: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Hybrid searches that fell back to dense-only.",
		}),
		BestScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "best_score",
			Help:      "Top fused score per retrieval.",
			Buckets:   []float64{0.005, 0.01, 0.015, 0.02, 0.025, 0.03, 0.035, 0.1, 0.35, 1},
		}),
		SummaryUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "summary",
			Name:      "updates_total",
			Help:      "Rolling summary trigger runs by result.",
		}, []string{"result"}),
	}
}

// ObserveAnswer records one finished answer request.
func (m *Metrics) ObserveAnswer(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AnswerRequests.WithLabelValues(outcome).Inc()
	m.AnswerDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveStage records the latency of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// IncDegraded counts a dense-only fallback.
func (m *Metrics) IncDegraded() {
	if m == nil {
		return
	}
	m.DegradedRetrievals.Inc()
}

// ObserveBestScore records the top fused score of a retrieval.
func (m *Metrics) ObserveBestScore(score float64) {
	if m == nil {
		return
	}
	m.BestScore.Observe(score)
}

// IncSummary counts one trigger run.
func (m *Metrics) IncSummary(result string) {
	if m == nil {
		return
	}
	m.SummaryUpdates.WithLabelValues(result).Inc()
}
