// Package metrics exposes Prometheus collectors for the engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's collectors.
type Metrics struct {
	featureRuns       *prometheus.CounterVec
	mutationBatches   *prometheus.CounterVec
	stylesheetFetches *prometheus.CounterVec
	preferenceReads   *prometheus.CounterVec
	preferenceWrites  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		featureRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minimalx",
			Name:      "feature_runs_total",
			Help:      "Feature application passes by kind (static, dynamic).",
		}, []string{"kind"}),
		mutationBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minimalx",
			Name:      "mutation_batches_total",
			Help:      "Mutation batches seen by the watcher, by decision (skipped, triggered).",
		}, []string{"decision"}),
		stylesheetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minimalx",
			Name:      "stylesheet_fetches_total",
			Help:      "Remote stylesheet fetches by resource and result.",
		}, []string{"resource", "result"}),
		preferenceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minimalx",
			Name:      "preference_reads_total",
			Help:      "Preference reads by source (stored, fallback).",
		}, []string{"source"}),
		preferenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minimalx",
			Name:      "preference_writes_total",
			Help:      "Preference writes by result (ok, rejected).",
		}, []string{"result"}),
	}
	reg.MustRegister(m.featureRuns, m.mutationBatches, m.stylesheetFetches, m.preferenceReads, m.preferenceWrites)
	return m
}

func (m *Metrics) FeatureRun(kind string) {
	if m == nil {
		return
	}
	m.featureRuns.WithLabelValues(kind).Inc()
}

func (m *Metrics) MutationBatch(decision string) {
	if m == nil {
		return
	}
	m.mutationBatches.WithLabelValues(decision).Inc()
}

func (m *Metrics) StylesheetFetch(resource, result string) {
	if m == nil {
		return
	}
	m.stylesheetFetches.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) PreferenceRead(source string) {
	if m == nil {
		return
	}
	m.preferenceReads.WithLabelValues(source).Inc()
}

func (m *Metrics) PreferenceWrite(result string) {
	if m == nil {
		return
	}
	m.preferenceWrites.WithLabelValues(result).Inc()
}

// FeatureRuns exposes the counter for tests.
func (m *Metrics) FeatureRuns() *prometheus.CounterVec { return m.featureRuns }

// MutationBatches exposes the counter for tests.
func (m *Metrics) MutationBatches() *prometheus.CounterVec { return m.mutationBatches }

// StylesheetFetches exposes the counter for tests.
func (m *Metrics) StylesheetFetches() *prometheus.CounterVec { return m.stylesheetFetches }

// PreferenceReads exposes the counter for tests.
func (m *Metrics) PreferenceReads() *prometheus.CounterVec { return m.preferenceReads }
