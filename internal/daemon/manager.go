package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	kardianos "github.com/kardianos/service"

	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

// sessions still running after this long are abandoned on stop
const stopGrace = 30 * time.Second

// DaemonManager runs the Application under kardianos/service, which also
// translates SIGINT/SIGTERM into Stop when running interactively.
type DaemonManager struct {
	cfg       *config.Config
	app       *Application
	appCtx    context.Context
	appCancel context.CancelFunc
	done      chan struct{}
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		cfg:       cfg,
		app:       app,
		appCtx:    ctx,
		appCancel: cancel,
		done:      make(chan struct{}),
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	if m.app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	return kardianos.New(m, &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Arguments:   m.serviceArguments(),
	})
}

// serviceArguments replays the effective flags so the installed service
// behaves like this invocation would have. Paths are made absolute because
// the service manager starts the binary from its own working directory.
func (m *DaemonManager) serviceArguments() []string {
	args := []string{
		"--host", m.cfg.Host(),
		"--port", strconv.Itoa(m.cfg.Port()),
		"--tls=" + strconv.FormatBool(m.cfg.UseTLS()),
		"--cert", absPath(m.cfg.CertFile()),
		"--key", absPath(m.cfg.KeyFile()),
	}
	if m.cfg.SaveDir() != "" {
		args = append(args, "--save-dir", absPath(m.cfg.SaveDir()))
	}
	if m.cfg.StatusAddr() != "" {
		args = append(args, "--status-addr", m.cfg.StatusAddr())
	}
	return append(args, "run")
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func (m *DaemonManager) Start(s kardianos.Service) error {
	logger.Log.Info("Kardianos starting service", "service", s.String(), "platform", s.Platform())
	if err := m.app.Start(); err != nil {
		return err
	}
	go func() {
		defer close(m.done)
		m.app.Run(m.appCtx)
	}()
	return nil
}

func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", s.String())
	m.appCancel()
	select {
	case <-m.done:
	case <-time.After(stopGrace):
		logger.Log.Warn("Sessions still running at shutdown", "grace", stopGrace.String())
	}
	return nil
}

func (m *DaemonManager) InstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	_ = s.Stop()
	return s.Uninstall()
}

func (m *DaemonManager) StartDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Start()
}

func (m *DaemonManager) StopDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Stop()
}

// RunDaemon blocks until the service manager or an interrupt stops it.
func (m *DaemonManager) RunDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}

// Control dispatches an install/uninstall/start/stop/run command.
func (m *DaemonManager) Control(action string) error {
	switch action {
	case "install":
		return m.InstallDaemon()
	case "uninstall":
		return m.UninstallDaemon()
	case "start":
		return m.StartDaemon()
	case "stop":
		return m.StopDaemon()
	case "", "run":
		return m.RunDaemon()
	default:
		return fmt.Errorf("unknown command %q (want install, uninstall, start, stop or run)", action)
	}
}
