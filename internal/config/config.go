package config

import (
	"crypto/x509"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/transport"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 65432
)

// Config holds benchmark configuration. Fields are unexported to prevent
// modification; With returns an adjusted copy.
type Config struct {
	host        string
	port        int
	useTLS      bool
	insecure    bool
	certFile    string
	keyFile     string
	caFile      string
	rootCAs     *x509.CertPool
	bufferSize  int
	maxSessions int
	idleTimeout time.Duration
	perfLogFile string
	appLogFile  string
	saveDir     string
	statusAddr  string
	watchCerts  bool

	serviceName        string
	serviceDisplayName string
	serviceDescription string

	benchRuns      int
	benchFile      string
	benchPause     time.Duration
	benchModePause time.Duration
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	return &Config{
		host:        envString("BENCH_HOST", DefaultHost),
		port:        envInt("BENCH_PORT", DefaultPort),
		useTLS:      envBool("BENCH_TLS", false),
		insecure:    envBool("BENCH_INSECURE", false),
		certFile:    envString("TLS_CERT_FILE", certs.DefaultCertFile),
		keyFile:     envString("TLS_KEY_FILE", certs.DefaultKeyFile),
		caFile:      os.Getenv("TLS_CA_FILE"),
		bufferSize:  envInt("BUFFER_SIZE", 4096),
		maxSessions: envInt("MAX_SESSIONS", 0),
		idleTimeout: time.Duration(envInt("IDLE_TIMEOUT_SEC", 0)) * time.Second,
		perfLogFile: envString("PERF_LOG_FILE", "client_performance.log"),
		appLogFile:  envString("APP_LOG_FILE", "tlsbench.log"),
		saveDir:     os.Getenv("SAVE_DIR"),
		statusAddr:  os.Getenv("STATUS_ADDR"),
		watchCerts:  envBool("WATCH_CERTS", true),

		serviceName:        envString("SERVICE_NAME", "TLSBenchServer"),
		serviceDisplayName: envString("SERVICE_DISPLAY_NAME", "TLS Bench Server"),
		serviceDescription: envString("SERVICE_DESCRIPTION", "Receives benchmark file transfers over raw TCP or TLS"),

		benchRuns:      envInt("BENCH_RUNS", 15),
		benchFile:      envString("BENCH_FILE", "test_file.txt"),
		benchPause:     time.Duration(envInt("BENCH_PAUSE_MS", 1000)) * time.Millisecond,
		benchModePause: time.Duration(envInt("BENCH_MODE_PAUSE_MS", 5000)) * time.Millisecond,
	}
}

type Option func(*Config)

func WithHost(host string) Option            { return func(c *Config) { c.host = host } }
func WithPort(port int) Option               { return func(c *Config) { c.port = port } }
func WithTLS(useTLS bool) Option             { return func(c *Config) { c.useTLS = useTLS } }
func WithInsecure(insecure bool) Option      { return func(c *Config) { c.insecure = insecure } }
func WithCAFile(path string) Option          { return func(c *Config) { c.caFile = path } }
func WithRootCAs(pool *x509.CertPool) Option { return func(c *Config) { c.rootCAs = pool } }
func WithCertFiles(cert, key string) Option {
	return func(c *Config) { c.certFile, c.keyFile = cert, key }
}
func WithPerfLogFile(path string) Option { return func(c *Config) { c.perfLogFile = path } }
func WithSaveDir(dir string) Option      { return func(c *Config) { c.saveDir = dir } }
func WithStatusAddr(addr string) Option  { return func(c *Config) { c.statusAddr = addr } }
func WithMaxSessions(n int) Option       { return func(c *Config) { c.maxSessions = n } }
func WithBufferSize(n int) Option        { return func(c *Config) { c.bufferSize = n } }
func WithWatchCerts(watch bool) Option   { return func(c *Config) { c.watchCerts = watch } }
func WithBenchRuns(n int) Option         { return func(c *Config) { c.benchRuns = n } }
func WithBenchFile(path string) Option   { return func(c *Config) { c.benchFile = path } }
func WithBenchPauses(run, mode time.Duration) Option {
	return func(c *Config) { c.benchPause, c.benchModePause = run, mode }
}

// With returns a copy of c with the options applied.
func (c *Config) With(opts ...Option) *Config {
	cp := *c
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Endpoint is the connection configuration for a client or listener.
func (c *Config) Endpoint() transport.Endpoint {
	return transport.Endpoint{
		Host:               c.host,
		Port:               c.port,
		UseTLS:             c.useTLS,
		InsecureSkipVerify: c.insecure,
		RootCAs:            c.rootCAs,
		IdleTimeout:        c.idleTimeout,
	}
}

// Getter methods (immutable from outside)

func (c *Config) Host() string                  { return c.host }
func (c *Config) Port() int                     { return c.port }
func (c *Config) UseTLS() bool                  { return c.useTLS }
func (c *Config) Insecure() bool                { return c.insecure }
func (c *Config) CertFile() string              { return c.certFile }
func (c *Config) KeyFile() string               { return c.keyFile }
func (c *Config) CAFile() string                { return c.caFile }
func (c *Config) RootCAs() *x509.CertPool       { return c.rootCAs }
func (c *Config) BufferSize() int               { return c.bufferSize }
func (c *Config) MaxSessions() int              { return c.maxSessions }
func (c *Config) IdleTimeout() time.Duration    { return c.idleTimeout }
func (c *Config) PerfLogFile() string           { return c.perfLogFile }
func (c *Config) AppLogFile() string            { return c.appLogFile }
func (c *Config) SaveDir() string               { return c.saveDir }
func (c *Config) StatusAddr() string            { return c.statusAddr }
func (c *Config) WatchCerts() bool              { return c.watchCerts }
func (c *Config) ServiceName() string           { return c.serviceName }
func (c *Config) ServiceDisplayName() string    { return c.serviceDisplayName }
func (c *Config) ServiceDescription() string    { return c.serviceDescription }
func (c *Config) BenchRuns() int                { return c.benchRuns }
func (c *Config) BenchFile() string             { return c.benchFile }
func (c *Config) BenchPause() time.Duration     { return c.benchPause }
func (c *Config) BenchModePause() time.Duration { return c.benchModePause }

func (c *Config) ListenAddr() string {
	return c.Endpoint().Address()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
