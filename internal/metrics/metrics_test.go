package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FeatureRun("static")
		m.MutationBatch("skipped")
		m.StylesheetFetch("main", "ok")
		m.PreferenceRead("stored")
		m.PreferenceWrite("ok")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FeatureRun("dynamic")
	m.FeatureRun("dynamic")
	m.MutationBatch("skipped")
	m.StylesheetFetch("brand", "timeout")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeatureRuns().WithLabelValues("dynamic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationBatches().WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StylesheetFetches().WithLabelValues("brand", "timeout")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}
