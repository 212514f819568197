package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/internal/daemon"
	"github.com/The-Promised-Neverland/tlsbench/internal/storage"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

func main() {
	base := config.New()
	useTLS := flag.Bool("tls", base.UseTLS(), "Enable TLS for the server.")
	port := flag.Int("port", base.Port(), "Port number for the server to listen on.")
	host := flag.String("host", base.Host(), "Host address to bind.")
	certFile := flag.String("cert", base.CertFile(), "TLS certificate file.")
	keyFile := flag.String("key", base.KeyFile(), "TLS private key file.")
	save := flag.Bool("save", false, "Persist received payloads to "+storage.DefaultDir+" when --save-dir is empty.")
	saveDir := flag.String("save-dir", base.SaveDir(), "Persist received payloads to this directory (off when empty).")
	statusAddr := flag.String("status-addr", base.StatusAddr(), "Address of the status API (off when empty).")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [install|uninstall|start|stop|run]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *save && *saveDir == "" {
		*saveDir = storage.DefaultDir
	}

	cfg := base.With(
		config.WithTLS(*useTLS),
		config.WithPort(*port),
		config.WithHost(*host),
		config.WithCertFiles(*certFile, *keyFile),
		config.WithSaveDir(*saveDir),
		config.WithStatusAddr(*statusAddr),
	)
	logger.Init(cfg.AppLogFile())

	app, err := daemon.NewApplication(cfg)
	if err != nil {
		logger.Log.Error("❌ Server setup failed", "err", err)
		os.Exit(1)
	}
	manager := daemon.NewDaemonManager(cfg, app)
	action := flag.Arg(0)
	if err := manager.Control(action); err != nil {
		logger.Log.Error("❌ Service command failed", "command", action, "err", err)
		os.Exit(1)
	}
	if action == "install" {
		logger.Log.Info("✅ Service installed")
	}
}
