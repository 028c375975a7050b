package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

const metricsNamespace = "sitequery"

// Metrics holds the pipeline's collectors. A nil *Metrics records nothing.
type Metrics struct {
	questionsTotal     *prometheus.CounterVec
	outcomesTotal      *prometheus.CounterVec
	refusalsTotal      *prometheus.CounterVec
	fallbackTierTotal  *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		questionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "questions_total",
				Help:      "Questions received, by classified intent",
			},
			[]string{"intent"},
		),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "query_outcomes_total",
				Help:      "Executed statements, by outcome kind",
			},
			[]string{"outcome"},
		),
		refusalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "refusals_total",
				Help:      "Questions refused by the security filter, by checkpoint",
			},
			[]string{"checkpoint"},
		),
		fallbackTierTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallback_tier_total",
				Help:      "Fallback probes, by tier and result",
			},
			[]string{"tier", "result"}, // "found", "empty", "skipped"
		),
		completionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "completion_duration_seconds",
				Help:      "Duration of completion calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
			},
			[]string{"purpose", "status"},
		),
	}
}

func (m *Metrics) CountQuestion(kind models.IntentKind) {
	if m == nil {
		return
	}
	m.questionsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) CountOutcome(kind models.OutcomeKind) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) CountRefusal(checkpoint string) {
	if m == nil {
		return
	}
	m.refusalsTotal.WithLabelValues(checkpoint).Inc()
}

// CountFallback records every attempt of a research pass.
func (m *Metrics) CountFallback(result *models.FallbackResult) {
	if m == nil || result == nil {
		return
	}
	for _, a := range result.Attempts {
		status := "empty"
		switch {
		case a.SkipReason != "":
			status = "skipped"
		case a.Count > 0:
			status = "found"
		}
		m.fallbackTierTotal.WithLabelValues(string(a.Tier), status).Inc()
	}
}

func (m *Metrics) ObserveCompletion(purpose string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.completionDuration.WithLabelValues(purpose, status).Observe(d.Seconds())
}
