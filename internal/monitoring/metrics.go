// Package monitoring exposes prometheus metrics for the learning core.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for pattern lifecycle and feedback activity.
// A nil *Metrics is valid and records nothing, so wiring is optional in tests.
type Metrics struct {
	PatternsLearned   *prometheus.CounterVec
	PatternsMerged    prometheus.Counter
	PatternsArchived  prometheus.Counter
	FeedbackProcessed *prometheus.CounterVec
	SimilarityScores  prometheus.Histogram
}

// New registers the learning metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PatternsLearned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "patterns",
			Name:      "learned_total",
			Help:      "Patterns created or updated from outcomes, by store and mode.",
		}, []string{"store", "mode"}),
		PatternsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "patterns",
			Name:      "merged_total",
			Help:      "Patterns archived into a primary during consolidation.",
		}),
		PatternsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "patterns",
			Name:      "archived_total",
			Help:      "Patterns archived for any reason.",
		}),
		FeedbackProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "learning",
			Name:      "feedback_total",
			Help:      "Feedback events processed, by helpfulness.",
		}, []string{"helpful"}),
		SimilarityScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "similarity",
			Name:      "score",
			Help:      "Distribution of pattern similarity scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(
		m.PatternsLearned,
		m.PatternsMerged,
		m.PatternsArchived,
		m.FeedbackProcessed,
		m.SimilarityScores,
	)
	return m
}

// ObserveLearned records a learn event. Nil-safe.
func (m *Metrics) ObserveLearned(store, mode string) {
	if m == nil {
		return
	}
	m.PatternsLearned.WithLabelValues(store, mode).Inc()
}

// ObserveMerged records n merged patterns. Nil-safe.
func (m *Metrics) ObserveMerged(n int) {
	if m == nil {
		return
	}
	m.PatternsMerged.Add(float64(n))
	m.PatternsArchived.Add(float64(n))
}

// ObserveFeedback records one feedback event. Nil-safe.
func (m *Metrics) ObserveFeedback(helpful bool) {
	if m == nil {
		return
	}
	label := "false"
	if helpful {
		label = "true"
	}
	m.FeedbackProcessed.WithLabelValues(label).Inc()
}

// ObserveScore records a similarity score. Nil-safe.
func (m *Metrics) ObserveScore(score float64) {
	if m == nil {
		return
	}
	m.SimilarityScores.Observe(score)
}
