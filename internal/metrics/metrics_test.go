package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveResolution(OutcomeOK, time.Second)
	m.AddCitations(1, 2, 3)
	m.ObserveHTTP("GET", "/ping", 200, time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveResolution(OutcomeOK, time.Millisecond)
	m.ObserveResolution(OutcomeFailed, time.Millisecond)
	m.ObserveResolution(OutcomeOK, time.Millisecond)
	m.AddCitations(2, 1, 0)
	m.ObserveHTTP("GET", "/ping", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CitationsTotal.WithLabelValues("rewritten")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ping", "4xx")))
}
