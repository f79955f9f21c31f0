package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the wizard's Prometheus collectors.
type Metrics struct {
	StepVisits     *prometheus.CounterVec
	Submissions    *prometheus.CounterVec
	SubmitDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_step_visits_total",
				Help: "Total number of step visits",
			},
			[]string{"step_id", "kind"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_submissions_total",
				Help: "Submissions by outcome",
			},
			[]string{"outcome"},
		),
		SubmitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triage_submit_duration_seconds",
				Help:    "Duration of the submit and fetch report round trip",
				Buckets: prometheus.DefBuckets,
			},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.StepVisits, m.Submissions, m.SubmitDuration)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(strconv.Itoa(e.StepID), string(e.Kind)).Inc()
		},
		OnSubmit: func(_ context.Context, e *domain.SubmitEvent) {
			switch e.Type {
			case domain.EventSubmitComplete:
				m.Submissions.WithLabelValues("ok").Inc()
				m.SubmitDuration.Observe(e.Duration.Seconds())
			case domain.EventSubmitFailed:
				m.Submissions.WithLabelValues("error").Inc()
				m.SubmitDuration.Observe(e.Duration.Seconds())
			}
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
