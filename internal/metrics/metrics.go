// Package metrics holds the Prometheus collectors for the chat service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec

	CitationsTotal *prometheus.CounterVec
	MessagesTotal  *prometheus.CounterVec

	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	IngestionJobsTotal *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kbchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		InvocationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_invocations_total",
			Help: "Inference invocations by provider and outcome",
		}, []string{"provider", "outcome"}),
		InvocationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kbchat_invocation_duration_seconds",
			Help:    "Duration of inference invocations in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{"provider"}),

		CitationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_citations_total",
			Help: "Citation markers seen in answers, by rewrite outcome",
		}, []string{"outcome"}),
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_messages_total",
			Help: "Messages appended to conversations",
		}, []string{"role", "shape"}),

		ResolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_media_resolutions_total",
			Help: "Citation media resolutions by outcome",
		}, []string{"outcome"}),
		ResolutionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbchat_media_resolution_duration_seconds",
			Help:    "Time to obtain a signed media URL",
			Buckets: prometheus.DefBuckets,
		}),

		IngestionJobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbchat_ingestion_jobs_total",
			Help: "Knowledge-base ingestion jobs by status transition",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveInvocation(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(provider, outcome).Inc()
	m.InvocationDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) AddCitations(rewritten, dropped, passthrough int) {
	if m == nil {
		return
	}
	m.CitationsTotal.WithLabelValues("rewritten").Add(float64(rewritten))
	m.CitationsTotal.WithLabelValues("dropped").Add(float64(dropped))
	m.CitationsTotal.WithLabelValues("passthrough").Add(float64(passthrough))
}

func (m *Metrics) IncMessage(role, shape string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(role, shape).Inc()
}

func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(d.Seconds())
}

func (m *Metrics) IncIngestion(status string) {
	if m == nil {
		return
	}
	m.IngestionJobsTotal.WithLabelValues(status).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
