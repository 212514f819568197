package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/framing"
	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/perflog"
	"github.com/The-Promised-Neverland/tlsbench/internal/transport"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

const AckBufferSize = 1024

var ErrNoAcknowledgment = errors.New("server closed the connection without an acknowledgment")

// Driver runs timed transfers against one endpoint. Transfers are sequential:
// one connection per file, closed once the acknowledgment arrives.
type Driver struct {
	endpoint transport.Endpoint
	perfLog  *perflog.Log
	now      func() time.Time
}

// NewDriver builds a driver. perfLog may be nil, in which case samples are
// only returned, not recorded.
func NewDriver(endpoint transport.Endpoint, perfLog *perflog.Log) *Driver {
	return &Driver{
		endpoint: endpoint,
		perfLog:  perfLog,
		now:      time.Now,
	}
}

// Connect dials the endpoint. Failures are *transport.ConnectError and are not retried.
func (d *Driver) Connect(ctx context.Context) (transport.Transport, error) {
	conn, err := transport.Dial(ctx, d.endpoint)
	if err != nil {
		logger.Log.Error("Failed to connect", "addr", d.endpoint.Address(), "err", err)
		return nil, err
	}
	logger.Log.Info("Connected to server", "addr", d.endpoint.Address(), "mode", conn.Mode())
	if state, ok := conn.TLSState(); ok {
		attrs := []any{
			"tls_version", tls.VersionName(state.Version),
			"cipher", tls.CipherSuiteName(state.CipherSuite),
			"server_name", state.ServerName,
			"insecure_skip_verify", d.endpoint.InsecureSkipVerify,
		}
		if len(state.PeerCertificates) > 0 {
			attrs = append(attrs, "peer_subject", state.PeerCertificates[0].Subject.String())
		}
		logger.Log.Info("TLS session negotiated", attrs...)
	}
	return conn, nil
}

// SendFile sends header and payload, then waits for the acknowledgment. Only
// the payload write is timed: the header and the acknowledgment round trip
// fall outside the measured interval. The transport is always closed.
func (d *Driver) SendFile(t transport.Transport, payload []byte) (models.PerformanceSample, error) {
	defer t.Close()

	header := framing.EncodeHeader(uint64(len(payload)))
	if err := t.SendAll(header[:]); err != nil {
		return models.PerformanceSample{}, &TransferError{Op: "send header", Err: err}
	}

	t0 := d.now()
	if err := t.SendAll(payload); err != nil {
		return models.PerformanceSample{}, &TransferError{Op: "send payload", Err: err}
	}
	t1 := d.now()

	ack := make([]byte, AckBufferSize)
	n, err := t.ReceiveUpTo(ack)
	if errors.Is(err, io.EOF) {
		return models.PerformanceSample{}, &TransferError{Op: "await acknowledgment", Err: ErrNoAcknowledgment}
	}
	if err != nil {
		return models.PerformanceSample{}, &TransferError{Op: "await acknowledgment", Err: err}
	}
	logger.Log.Info("Server acknowledged", "ack", string(ack[:n]))

	duration := t1.Sub(t0)
	if duration < 0 {
		duration = 0
	}
	sample := models.NewPerformanceSample(d.now(), t.Mode(), int64(len(payload)), duration)
	logger.Log.Info("Transfer finished",
		"bytes", sample.DataSize,
		"duration", fmt.Sprintf("%.6f", sample.Duration.Seconds()),
		"bytes_per_second", fmt.Sprintf("%.2f", sample.AverageSpeed),
		"mode", sample.ConnectionType,
	)
	return sample, nil
}

// SendPath reads the file, transfers it and appends the sample to the
// performance log. A failed log write is reported but does not discard the sample.
func (d *Driver) SendPath(ctx context.Context, path string) (models.PerformanceSample, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return models.PerformanceSample{}, &TransferError{Op: "read source", Path: path, Err: err}
	}
	t, err := d.Connect(ctx)
	if err != nil {
		return models.PerformanceSample{}, err
	}
	sample, err := d.SendFile(t, payload)
	if err != nil {
		logger.Log.Error("Transfer failed", "path", path, "err", err)
		return models.PerformanceSample{}, err
	}
	if d.perfLog != nil {
		if err := d.perfLog.Append(sample); err != nil {
			logger.Log.Error("Failed to record performance sample", "path", d.perfLog.Path(), "err", err)
		}
	}
	return sample, nil
}
