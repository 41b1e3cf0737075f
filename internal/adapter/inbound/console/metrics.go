package console

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the console's Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GuardDecisions  *prometheus.CounterVec
	FormSubmissions *prometheus.CounterVec
	ActiveStreams   prometheus.Gauge
}

// NewMetrics creates and registers all console metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Subsystem: "console",
				Name:      "requests_total",
				Help:      "Total number of console HTTP requests",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docdesk",
				Subsystem: "console",
				Name:      "request_duration_seconds",
				Help:      "Console request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		GuardDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Subsystem: "console",
				Name:      "guard_decisions_total",
				Help:      "Route guard decisions by outcome",
			},
			[]string{"outcome"},
		),
		FormSubmissions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Subsystem: "console",
				Name:      "form_submissions_total",
				Help:      "Login and register form submissions by result",
			},
			[]string{"form", "result"}, // result=ok/invalid/rejected/throttled
		),
		ActiveStreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "docdesk",
				Subsystem: "console",
				Name:      "active_streams",
				Help:      "Number of open session event websockets",
			},
		),
	}
}
