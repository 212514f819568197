package daemon

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/The-Promised-Neverland/tlsbench/internal/api"
	"github.com/The-Promised-Neverland/tlsbench/internal/api/handlers"
	"github.com/The-Promised-Neverland/tlsbench/internal/api/routers"
	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/config"
	"github.com/The-Promised-Neverland/tlsbench/internal/listener"
	"github.com/The-Promised-Neverland/tlsbench/internal/metrics"
	"github.com/The-Promised-Neverland/tlsbench/internal/service"
	"github.com/The-Promised-Neverland/tlsbench/internal/session"
	"github.com/The-Promised-Neverland/tlsbench/internal/sse"
	"github.com/The-Promised-Neverland/tlsbench/internal/storage"
	"github.com/The-Promised-Neverland/tlsbench/internal/ws"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

// Application is the benchmark server: the transfer listener plus the
// optional status API, live feeds and certificate reloader around it.
type Application struct {
	config   *config.Config
	service  *service.Service
	hub      *ws.Hub
	events   *sse.Hub
	registry *prometheus.Registry
	reloader *certs.Reloader
	listener *listener.Listener
	status   *api.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		config:   cfg,
		service:  service.NewService(),
		hub:      ws.NewHub(),
		events:   sse.NewHub(),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var tlsConfig *tls.Config
	if cfg.UseTLS() {
		reloader, err := certs.NewReloader(cfg.CertFile(), cfg.KeyFile())
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		app.reloader = reloader
		tlsConfig = reloader.TLSConfig()
	}

	observers := []session.Observer{app.service, metrics.New(app.registry)}
	if cfg.StatusAddr() != "" {
		observers = append(observers, app.hub, app.events)
	}
	opts := []session.Option{
		session.WithBufferSize(cfg.BufferSize()),
		session.WithObserver(session.Observers(observers...)),
	}
	if cfg.SaveDir() != "" {
		sink, err := storage.NewDirSink(cfg.SaveDir())
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithPayloadSink(sink))
	}
	app.listener = listener.New(listener.Options{
		Addr:        cfg.ListenAddr(),
		TLSConfig:   tlsConfig,
		IdleTimeout: cfg.IdleTimeout(),
		MaxSessions: cfg.MaxSessions(),
	}, session.NewHandler(opts...))

	if cfg.StatusAddr() != "" {
		router := routers.NewRouter(
			handlers.NewHandler(app.service),
			handlers.NewWebSocketHandler(app.hub),
			handlers.NewSSEHandler(app.events, app.service),
			app.registry,
		).SetupRouter()
		app.status = api.NewServer(cfg.StatusAddr(), router)
	}
	return app, nil
}

// Start binds every socket so that address errors surface before Run.
func (app *Application) Start() error {
	if err := app.listener.Listen(); err != nil {
		return err
	}
	if app.status != nil {
		if err := app.status.Listen(); err != nil {
			return err
		}
	}
	return nil
}

// Run serves until appCtx ends, then waits for in-flight sessions.
func (app *Application) Run(appCtx context.Context) {
	var wg sync.WaitGroup
	if app.reloader != nil && app.config.WatchCerts() {
		if err := app.reloader.Watch(appCtx); err != nil {
			logger.Log.Warn("Certificate watcher disabled", "err", err)
		}
	}
	if app.status != nil {
		wg.Add(3)
		go func() {
			defer wg.Done()
			app.hub.Run(appCtx)
		}()
		go func() {
			defer wg.Done()
			app.events.Run(appCtx)
		}()
		go func() {
			defer wg.Done()
			if err := app.status.Serve(appCtx); err != nil {
				logger.Log.Error("Status API stopped", "err", err)
			}
		}()
	}
	if err := app.listener.Serve(appCtx); err != nil {
		logger.Log.Error("Listener stopped", "err", err)
	}
	app.listener.Wait()
	wg.Wait()
	if app.reloader != nil {
		app.reloader.Wait()
	}
	logger.Log.Info("Server stopped", "stats", app.service.Stats())
}

func (app *Application) ListenAddr() net.Addr {
	return app.listener.Addr()
}

func (app *Application) StatusAddr() net.Addr {
	if app.status == nil {
		return nil
	}
	return app.status.Addr()
}

func (app *Application) Service() *service.Service {
	return app.service
}
