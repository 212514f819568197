package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/analysis"
	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/client"
	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/perflog"
	"github.com/The-Promised-Neverland/tlsbench/internal/service"
	"github.com/The-Promised-Neverland/tlsbench/internal/testfile"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

// Result collects what one benchmark run produced.
type Result struct {
	Samples  []models.PerformanceSample
	Failures int
	Host     *models.HostMetrics
}

// Runner sends the benchmark file BenchRuns times over TCP to port and then
// BenchRuns times over TLS to port+1. Both servers must already be running.
type Runner struct {
	cfg     *config.Config
	service *service.Service
	report  io.Writer
	// GenerateCert regenerates the server key pair before the run.
	GenerateCert bool
}

func NewRunner(cfg *config.Config, report io.Writer) *Runner {
	return &Runner{
		cfg:          cfg,
		service:      service.NewService(),
		report:       report,
		GenerateCert: true,
	}
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if created, err := testfile.EnsurePattern(r.cfg.BenchFile()); err != nil {
		return nil, err
	} else if created {
		logger.Log.Info("Generated test file", "path", r.cfg.BenchFile())
	}
	if err := perflog.Remove(r.cfg.PerfLogFile()); err != nil {
		return nil, err
	}
	if r.GenerateCert {
		logger.Log.Info("Generating self-signed certificate and key for TLS", "cert", r.cfg.CertFile(), "key", r.cfg.KeyFile())
		if err := certs.Generate(r.cfg.CertFile(), r.cfg.KeyFile(), r.cfg.Host(), "127.0.0.1"); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	hostMetrics, err := r.service.GetHostMetrics()
	if err != nil {
		logger.Log.Warn("Partial host metrics", "err", err)
	}
	res.Host = hostMetrics
	logger.Log.Info("Host snapshot", "cpu", hostMetrics.CPUUsage, "memory", hostMetrics.MemoryUsage, "hostname", hostMetrics.Hostname)

	perfLog, err := perflog.Open(r.cfg.PerfLogFile())
	if err != nil {
		return nil, err
	}
	defer perfLog.Close()

	tcpCfg := r.cfg.With(config.WithTLS(false))
	tlsCfg, err := r.tlsConfig()
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Running TCP tests", "runs", r.cfg.BenchRuns(), "port", tcpCfg.Port())
	if err := r.runMode(ctx, client.NewDriver(tcpCfg.Endpoint(), perfLog), res); err != nil {
		return res, err
	}
	logger.Log.Info("TCP tests completed, waiting before TLS tests", "pause", r.cfg.BenchModePause().String())
	if err := sleep(ctx, r.cfg.BenchModePause()); err != nil {
		return res, err
	}
	logger.Log.Info("Running TLS tests", "runs", r.cfg.BenchRuns(), "port", tlsCfg.Port())
	if err := r.runMode(ctx, client.NewDriver(tlsCfg.Endpoint(), perfLog), res); err != nil {
		return res, err
	}

	if r.report != nil {
		samples, err := perflog.Load(r.cfg.PerfLogFile())
		if err != nil {
			return res, err
		}
		analysis.WriteReport(r.report, samples)
	}
	return res, nil
}

// tlsConfig targets port+1 and verifies against the configured CA file, the
// freshly generated certificate, or nothing at all in insecure mode.
func (r *Runner) tlsConfig() (*config.Config, error) {
	cfg := r.cfg.With(config.WithTLS(true), config.WithPort(r.cfg.Port()+1))
	if cfg.Insecure() || cfg.RootCAs() != nil {
		return cfg, nil
	}
	caFile := cfg.CAFile()
	if caFile == "" {
		caFile = cfg.CertFile()
	}
	pool, err := certs.LoadPool(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS trust anchors: %w", err)
	}
	return cfg.With(config.WithRootCAs(pool)), nil
}

func (r *Runner) runMode(ctx context.Context, driver *client.Driver, res *Result) error {
	for i := 0; i < r.cfg.BenchRuns(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample, err := driver.SendPath(ctx, r.cfg.BenchFile())
		if err != nil {
			res.Failures++
			logger.Log.Error("Benchmark run failed", "run", i+1, "err", err)
		} else {
			res.Samples = append(res.Samples, sample)
		}
		if i < r.cfg.BenchRuns()-1 {
			if err := sleep(ctx, r.cfg.BenchPause()); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
