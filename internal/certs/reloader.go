package certs

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

// Reloader serves the server key pair and swaps it in when the files on disk
// change, so a regenerated certificate takes effect without a restart.
type Reloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate

	fsWatcher     *fsnotify.Watcher
	debounceMu    sync.Mutex
	debounce      *time.Timer
	debounceDelay time.Duration
	reloaded      chan struct{}
	wg            sync.WaitGroup
}

func NewReloader(certFile, keyFile string) (*Reloader, error) {
	r := &Reloader{
		certFile:      certFile,
		keyFile:       keyFile,
		debounceDelay: 500 * time.Millisecond,
		reloaded:      make(chan struct{}, 1),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// Reloaded signals after every successful reload triggered by the watcher.
func (r *Reloader) Reloaded() <-chan struct{} {
	return r.reloaded
}

// Watch starts watching the directories holding the key pair until ctx ends.
func (r *Reloader) Watch(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	r.fsWatcher = fsWatcher
	r.wg.Add(1)
	go r.eventLoop(ctx)
	logger.Log.Info("Certificate watcher started", "cert", r.certFile, "key", r.keyFile)
	return nil
}

func (r *Reloader) eventLoop(ctx context.Context) {
	defer r.wg.Done()
	defer r.fsWatcher.Close()
	for {
		select {
		case <-ctx.Done():
			r.debounceMu.Lock()
			if r.debounce != nil {
				r.debounce.Stop()
			}
			r.debounceMu.Unlock()
			return
		case event, ok := <-r.fsWatcher.Events:
			if !ok {
				return
			}
			if !r.relevant(event) {
				continue
			}
			r.scheduleReload()
		case err, ok := <-r.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Certificate watcher error", "err", err)
		}
	}
}

func (r *Reloader) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile)
}

// scheduleReload debounces bursts of writes: cert and key usually change together.
func (r *Reloader) scheduleReload() {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(r.debounceDelay, func() {
		if err := r.reload(); err != nil {
			logger.Log.Warn("Certificate reload failed, keeping previous key pair", "err", err)
			return
		}
		logger.Log.Info("Certificate reloaded", "cert", r.certFile)
		select {
		case r.reloaded <- struct{}{}:
		default:
		}
	})
}

// Wait blocks until the watch loop has exited.
func (r *Reloader) Wait() {
	r.wg.Wait()
}
