package rest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for backend calls.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RefreshTotal        *prometheus.CounterVec
	SessionExpiredTotal prometheus.Counter
}

// NewMetrics creates and registers the metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Total number of backend requests sent, replays included",
			},
			[]string{"method", "outcome"}, // outcome=ok/client_error/server_error/network_error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docdesk",
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Name:      "token_refresh_total",
				Help:      "Token refresh attempts",
			},
			[]string{"result"}, // result=success/failure/shared
		),
		SessionExpiredTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "docdesk",
				Name:      "session_expired_total",
				Help:      "Sessions ended because a 401 could not be recovered",
			},
		),
	}
}

func (m *Metrics) request(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) expired() {
	if m == nil {
		return
	}
	m.SessionExpiredTotal.Inc()
}
