package service

import (
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

// Service keeps server-wide session statistics and reports host metrics.
// It implements session.Observer.
type Service struct {
	startedAt time.Time
	mu        sync.RWMutex
	stats     models.SessionStats
}

func NewService() *Service {
	return &Service{
		startedAt: time.Now(),
		stats: models.SessionStats{
			ByMode: make(map[models.ConnectionType]models.ModeStats),
		},
	}
}

func (s *Service) Uptime() int64 {
	return int64(time.Since(s.startedAt).Seconds())
}

func (s *Service) SessionStarted(ev models.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Active++
	s.stats.Total++
	ms := s.stats.ByMode[ev.Mode]
	ms.Sessions++
	s.stats.ByMode[ev.Mode] = ms
}

func (s *Service) SessionFinished(ev models.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Active--
	ms := s.stats.ByMode[ev.Mode]
	if ev.Acknowledged {
		ms.Completed++
	} else {
		ms.Failed++
	}
	ms.BytesReceived += ev.Received
	s.stats.ByMode[ev.Mode] = ms
	last := ev
	s.stats.LastSeen = &last
}

// Stats returns a copy safe to hand to other goroutines.
func (s *Service) Stats() models.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.stats
	out.ByMode = make(map[models.ConnectionType]models.ModeStats, len(s.stats.ByMode))
	for k, v := range s.stats.ByMode {
		out.ByMode[k] = v
	}
	if s.stats.LastSeen != nil {
		last := *s.stats.LastSeen
		out.LastSeen = &last
	}
	return out
}

// GetHostMetrics samples CPU, memory and disk usage of the machine running the benchmark.
func (s *Service) GetHostMetrics() (*models.HostMetrics, error) {
	var errs []error
	m := &models.HostMetrics{}
	if cpuPercent, err := cpu.Percent(0, false); err != nil {
		errs = append(errs, err)
	} else if len(cpuPercent) > 0 {
		m.CPUUsage = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err != nil {
		errs = append(errs, err)
	} else {
		m.MemoryUsage = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage("/"); err != nil {
		errs = append(errs, err)
	} else {
		m.DiskUsage = diskStat.UsedPercent
	}
	if hostInfo, err := host.Info(); err != nil {
		errs = append(errs, err)
	} else {
		m.Hostname = hostInfo.Hostname
		m.OS = hostInfo.OS
		m.Uptime = hostInfo.Uptime
	}
	return m, errors.Join(errs...)
}
