// Package metrics counts what a batch did. Each Recorder owns its registry so
// a run can export its own textfile for the node exporter.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder methods are no-ops on a nil receiver.
type Recorder struct {
	registry *prometheus.Registry

	DocumentsNormalized *prometheus.CounterVec
	EmptyNormalizations prometheus.Counter
	FieldsMissing       *prometheus.CounterVec
	Upserts             *prometheus.CounterVec
	Decisions           *prometheus.CounterVec
	Failures            *prometheus.CounterVec
	Scores              prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		DocumentsNormalized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidsense_documents_normalized_total",
				Help: "Documents normalized, by declared format and winning strategy",
			},
			[]string{"format", "strategy"},
		),
		EmptyNormalizations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bidsense_empty_normalizations_total",
				Help: "Documents whose normalized text was empty",
			},
		),
		FieldsMissing: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidsense_fields_missing_total",
				Help: "Extracted records where a field fell back to its sentinel",
			},
			[]string{"field"},
		),
		Upserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidsense_upserts_total",
				Help: "Opportunity store writes by outcome",
			},
			[]string{"outcome"},
		),
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidsense_decisions_total",
				Help: "Decisions by tier",
			},
			[]string{"tier"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidsense_failures_total",
				Help: "Records that failed, by stage",
			},
			[]string{"stage"},
		),
		Scores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bidsense_final_score",
				Help:    "Distribution of final scores",
				Buckets: prometheus.LinearBuckets(-50, 25, 10),
			},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveNormalized(format, strategy string, empty bool) {
	if r == nil {
		return
	}
	r.DocumentsNormalized.WithLabelValues(format, strategy).Inc()
	if empty {
		r.EmptyNormalizations.Inc()
	}
}

func (r *Recorder) ObserveMissing(fields ...string) {
	if r == nil {
		return
	}
	for _, f := range fields {
		r.FieldsMissing.WithLabelValues(f).Inc()
	}
}

func (r *Recorder) ObserveUpsert(created bool) {
	if r == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	r.Upserts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveDecision(tier string, score float64) {
	if r == nil {
		return
	}
	r.Decisions.WithLabelValues(tier).Inc()
	r.Scores.Observe(score)
}

func (r *Recorder) ObserveFailure(stage string) {
	if r == nil {
		return
	}
	r.Failures.WithLabelValues(stage).Inc()
}

// WriteTextfile writes the registry in the text exposition format. An empty
// path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
