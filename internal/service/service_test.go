package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

func TestServiceStats(t *testing.T) {
	s := NewService()
	tcp := models.SessionEvent{SessionID: "a", Mode: models.ConnTCP}
	tls := models.SessionEvent{SessionID: "b", Mode: models.ConnTLS}
	s.SessionStarted(tcp)
	s.SessionStarted(tls)

	stats := s.Stats()
	require.Equal(t, int64(2), stats.Active)
	require.Equal(t, uint64(2), stats.Total)
	require.Nil(t, stats.LastSeen)

	tcp.Acknowledged, tcp.Received, tcp.State = true, 180, "closed"
	tls.Received, tls.State = 12, "error"
	s.SessionFinished(tcp)
	s.SessionFinished(tls)

	stats = s.Stats()
	require.Zero(t, stats.Active)
	require.Equal(t, models.ModeStats{Sessions: 1, Completed: 1, BytesReceived: 180}, stats.ByMode[models.ConnTCP])
	require.Equal(t, models.ModeStats{Sessions: 1, Failed: 1, BytesReceived: 12}, stats.ByMode[models.ConnTLS])
	require.Equal(t, "b", stats.LastSeen.SessionID)
}

func TestStatsReturnsCopy(t *testing.T) {
	s := NewService()
	s.SessionStarted(models.SessionEvent{Mode: models.ConnTCP})
	stats := s.Stats()
	stats.ByMode[models.ConnTCP] = models.ModeStats{}
	require.Equal(t, uint64(1), s.Stats().ByMode[models.ConnTCP].Sessions)
}

func TestGetHostMetrics(t *testing.T) {
	s := NewService()
	m, _ := s.GetHostMetrics()
	require.NotNil(t, m)
	require.GreaterOrEqual(t, s.Uptime(), int64(0))
}
