package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labels(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestMetricsTrackSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	ok := models.SessionEvent{Mode: models.ConnTLS, State: "closed", Received: 1024, Acknowledged: true, Duration: 0.01}
	bad := models.SessionEvent{Mode: models.ConnTCP, State: "error", Received: 10, Duration: 0.001}
	m.SessionStarted(ok)
	m.SessionStarted(bad)
	m.SessionStarted(ok)
	m.SessionFinished(ok)
	m.SessionFinished(bad)

	families := gather(t, reg)
	require.Equal(t, 1.0, families["tlsbench_sessions_active"].GetMetric()[0].GetGauge().GetValue())

	sessions := families["tlsbench_sessions_total"].GetMetric()
	require.Len(t, sessions, 2)
	seen := map[string]float64{}
	for _, s := range sessions {
		l := labels(s)
		seen[l["mode"]+"/"+l["state"]+"/"+l["acknowledged"]] = s.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{"TLS/closed/true": 1, "TCP/error/false": 1}, seen)

	bytesByMode := map[string]float64{}
	for _, b := range families["tlsbench_payload_bytes_received_total"].GetMetric() {
		bytesByMode[labels(b)["mode"]] = b.GetCounter().GetValue()
	}
	require.Equal(t, 1024.0, bytesByMode["TLS"])
	require.Equal(t, 10.0, bytesByMode["TCP"])

	require.Len(t, families["tlsbench_session_duration_seconds"].GetMetric(), 2)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
