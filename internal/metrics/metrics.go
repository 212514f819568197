package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

// Metrics exports session counters to Prometheus. It implements session.Observer.
type Metrics struct {
	sessions      *prometheus.CounterVec
	bytesReceived *prometheus.CounterVec
	active        prometheus.Gauge
	duration      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tlsbench_sessions_total",
			Help: "Finished transfer sessions by connection type and final state.",
		}, []string{"mode", "state", "acknowledged"}),
		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tlsbench_payload_bytes_received_total",
			Help: "Payload bytes received by connection type.",
		}, []string{"mode"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tlsbench_sessions_active",
			Help: "Sessions currently in progress.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tlsbench_session_duration_seconds",
			Help:    "Session lifetime from accept to close.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"mode"}),
	}
}

func (m *Metrics) SessionStarted(models.SessionEvent) {
	m.active.Inc()
}

func (m *Metrics) SessionFinished(ev models.SessionEvent) {
	m.active.Dec()
	acked := "false"
	if ev.Acknowledged {
		acked = "true"
	}
	mode := string(ev.Mode)
	m.sessions.WithLabelValues(mode, ev.State, acked).Inc()
	m.bytesReceived.WithLabelValues(mode).Add(float64(ev.Received))
	m.duration.WithLabelValues(mode).Observe(ev.Duration)
}
