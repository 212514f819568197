package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/session"
	"github.com/The-Promised-Neverland/tlsbench/internal/transport"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

type Options struct {
	Addr string
	// TLSConfig switches accepted connections to TLS when non-nil.
	TLSConfig   *tls.Config
	IdleTimeout time.Duration
	// MaxSessions caps concurrent sessions. 0 keeps the default of one goroutine
	// per connection without any admission limit, which a flood of clients can
	// use to exhaust memory and file descriptors.
	MaxSessions int
}

// Listener accepts connections and runs one session handler per connection.
type Listener struct {
	opts    Options
	handler *session.Handler
	ln      net.Listener
	slots   chan struct{}
	wg      sync.WaitGroup
}

func New(opts Options, handler *session.Handler) *Listener {
	l := &Listener{
		opts:    opts,
		handler: handler,
	}
	if opts.MaxSessions > 0 {
		l.slots = make(chan struct{}, opts.MaxSessions)
	}
	return l
}

// Listen binds the configured address.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.opts.Addr, err)
	}
	l.ln = ln
	logger.Log.Info("Server listening", "addr", ln.Addr().String(), "tls", l.opts.TLSConfig != nil, "max_sessions", l.opts.MaxSessions)
	return nil
}

func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve accepts until ctx is cancelled, then closes the listening socket and
// returns. Sessions already running are left to finish on their own; use Wait
// to block on them.
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()
	sessionCtx := context.WithoutCancel(ctx)

	var backoff time.Duration
	for {
		raw, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Log.Info("Server shutting down", "addr", l.ln.Addr().String())
				return nil
			}
			backoff = nextBackoff(backoff)
			logger.Log.Warn("Failed to accept connection", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		if !l.acquire(ctx) {
			_ = raw.Close()
			continue
		}
		conn := transport.Wrap(raw, l.opts.TLSConfig, l.opts.IdleTimeout)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.release()
			l.handler.Handle(sessionCtx, conn)
		}()
	}
}

// Wait blocks until every dispatched session has returned.
func (l *Listener) Wait() {
	l.wg.Wait()
}

func (l *Listener) acquire(ctx context.Context) bool {
	if l.slots == nil {
		return true
	}
	select {
	case l.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Listener) release() {
	if l.slots != nil {
		<-l.slots
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
