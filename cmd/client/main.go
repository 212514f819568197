package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/client"
	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/internal/perflog"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

func main() {
	base := config.New()
	useTLS := flag.Bool("tls", base.UseTLS(), "Enable TLS for the client.")
	port := flag.Int("port", base.Port(), "Port number to connect to the server.")
	host := flag.String("host", base.Host(), "Server host.")
	insecure := flag.Bool("insecure", base.Insecure(), "Skip server certificate verification (debug only, for self-signed certificates).")
	caFile := flag.String("ca", base.CAFile(), "PEM file with certificates trusted for the server.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := base.With(
		config.WithTLS(*useTLS),
		config.WithPort(*port),
		config.WithHost(*host),
		config.WithInsecure(*insecure),
		config.WithCAFile(*caFile),
	)
	logger.Init(cfg.AppLogFile())

	if cfg.UseTLS() && cfg.CAFile() != "" {
		pool, err := certs.LoadPool(cfg.CAFile())
		if err != nil {
			logger.Log.Error("❌ Failed to load CA file", "err", err)
			os.Exit(1)
		}
		cfg = cfg.With(config.WithRootCAs(pool))
	}

	perfLog, err := perflog.Open(cfg.PerfLogFile())
	if err != nil {
		logger.Log.Error("❌ Failed to open performance log", "err", err)
		os.Exit(1)
	}
	defer perfLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := client.NewDriver(cfg.Endpoint(), perfLog)
	if _, err := driver.SendPath(ctx, path); err != nil {
		logger.Log.Error("❌ File transfer failed", "path", path, "err", err)
		perfLog.Close()
		os.Exit(1)
	}
	logger.Log.Info("✅ File transfer completed", "path", path)
}
