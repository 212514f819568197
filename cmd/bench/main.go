package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/The-Promised-Neverland/tlsbench/internal/analysis"
	"github.com/The-Promised-Neverland/tlsbench/internal/bench"
	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/internal/perflog"
	"github.com/The-Promised-Neverland/tlsbench/internal/testfile"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

func main() {
	base := config.New()
	port := flag.Int("port", base.Port(), "TCP server port; the TLS server is expected on port+1.")
	host := flag.String("host", base.Host(), "Server host.")
	runs := flag.Int("runs", base.BenchRuns(), "Transfers per connection type.")
	file := flag.String("file", base.BenchFile(), "File sent on every run.")
	insecure := flag.Bool("insecure", base.Insecure(), "Skip server certificate verification (debug only).")
	logFile := flag.String("log", base.PerfLogFile(), "Performance log path.")
	outDir := flag.String("dir", ".", "Output directory for genfiles.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] run|analyze|certgen|genfiles\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := base.With(
		config.WithPort(*port),
		config.WithHost(*host),
		config.WithBenchRuns(*runs),
		config.WithBenchFile(*file),
		config.WithInsecure(*insecure),
		config.WithPerfLogFile(*logFile),
	)
	logger.Init(cfg.AppLogFile())

	var err error
	switch flag.Arg(0) {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		var res *bench.Result
		res, err = bench.NewRunner(cfg, os.Stdout).Run(ctx)
		if res != nil {
			logger.Log.Info("All performance tests completed", "samples", len(res.Samples), "failures", res.Failures)
		}
	case "analyze":
		err = analyze(cfg.PerfLogFile())
	case "certgen":
		err = certs.Generate(cfg.CertFile(), cfg.KeyFile(), cfg.Host(), "127.0.0.1")
		if err == nil {
			logger.Log.Info("Generated self-signed certificate", "cert", cfg.CertFile(), "key", cfg.KeyFile())
		}
	case "genfiles":
		err = genFiles(*outDir)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Log.Error("❌ Command failed", "command", flag.Arg(0), "err", err)
		os.Exit(1)
	}
}

func analyze(path string) error {
	samples, err := perflog.Load(path)
	if err != nil {
		return err
	}
	analysis.WriteReport(os.Stdout, samples)
	return nil
}

func genFiles(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := testfile.GeneratePattern(filepath.Join(dir, testfile.DefaultName), testfile.DefaultPattern, testfile.DefaultRepetitions); err != nil {
		return err
	}
	for name, size := range testfile.RandomSizes {
		path := filepath.Join(dir, name)
		if err := testfile.GenerateRandom(path, size); err != nil {
			return err
		}
		logger.Log.Info("Generated random file", "path", path, "bytes", size)
	}
	return nil
}
