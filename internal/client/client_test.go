package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/The-Promised-Neverland/tlsbench/internal/framing"
	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/perflog"
	"github.com/The-Promised-Neverland/tlsbench/internal/transport"
)

// fakeClock only moves when the transport says time has passed.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) {
	if c != nil {
		c.now = c.now.Add(d)
	}
}

// Each phase of a transfer costs a distinct amount of fake time, so the
// measured duration identifies exactly which calls fell inside the window.
const (
	headerCost  = 1 * time.Second
	payloadCost = 2 * time.Second
	ackCost     = 4 * time.Second
)

// scriptedTransport records everything sent and replays a fixed reply.
type scriptedTransport struct {
	clock   *fakeClock
	sent    bytes.Buffer
	sends   int
	reply   []byte
	sendErr error
	closed  bool
}

func (s *scriptedTransport) Handshake(context.Context) error { return nil }

func (s *scriptedTransport) SendAll(p []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	if s.sends == 0 {
		s.clock.advance(headerCost)
	} else {
		s.clock.advance(payloadCost)
	}
	s.sends++
	s.sent.Write(p)
	return nil
}

func (s *scriptedTransport) ReceiveUpTo(p []byte) (int, error) {
	s.clock.advance(ackCost)
	if len(s.reply) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.reply)
	s.reply = s.reply[n:]
	return n, nil
}

func (s *scriptedTransport) Close() error                { s.closed = true; return nil }
func (s *scriptedTransport) RemoteAddr() string          { return "198.51.100.1:65432" }
func (s *scriptedTransport) Mode() models.ConnectionType { return models.ConnTLS }

func TestSendFileFramesPayloadAndMeasuresPayloadOnly(t *testing.T) {
	clock := newFakeClock()
	d := NewDriver(transport.Endpoint{}, nil)
	d.now = clock.Now
	tr := &scriptedTransport{clock: clock, reply: []byte("File received successfully.")}

	payload := []byte("Hello World!Hello World!")
	sample, err := d.SendFile(tr, payload)
	require.NoError(t, err)
	require.True(t, tr.closed)

	size, err := framing.DecodeHeader(tr.sent.Bytes()[:framing.HeaderSize])
	require.NoError(t, err)
	require.Equal(t, uint64(len(payload)), size)
	require.Equal(t, payload, tr.sent.Bytes()[framing.HeaderSize:])

	require.Equal(t, models.ConnTLS, sample.ConnectionType)
	require.Equal(t, int64(len(payload)), sample.DataSize)
	// neither the header write nor the acknowledgment wait is counted
	require.Equal(t, payloadCost, sample.Duration)
	require.InDelta(t, float64(len(payload))/payloadCost.Seconds(), sample.AverageSpeed, 1e-9)
	require.Equal(t, clock.Now(), sample.Timestamp)
}

func TestSendFileTimingExcludesSlowAcknowledgment(t *testing.T) {
	clock := newFakeClock()
	d := NewDriver(transport.Endpoint{}, nil)
	d.now = clock.Now
	tr := &scriptedTransport{clock: clock, reply: []byte("ok")}

	sample, err := d.SendFile(tr, make([]byte, 4096))
	require.NoError(t, err)
	require.Equal(t, payloadCost, sample.Duration)
	require.Equal(t, headerCost+payloadCost+ackCost, clock.Now().Sub(newFakeClock().Now()))
}

func TestSendFileZeroDurationReportsZeroSpeed(t *testing.T) {
	d := NewDriver(transport.Endpoint{}, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }
	tr := &scriptedTransport{reply: []byte("ok")}

	sample, err := d.SendFile(tr, []byte("abc"))
	require.NoError(t, err)
	require.Zero(t, sample.Duration)
	require.Zero(t, sample.AverageSpeed)
}

func TestSendFileWithoutAcknowledgment(t *testing.T) {
	d := NewDriver(transport.Endpoint{}, nil)
	tr := &scriptedTransport{}

	_, err := d.SendFile(tr, []byte("abc"))
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, err, ErrNoAcknowledgment)
	require.True(t, tr.closed)
}

func TestSendFileSendFailure(t *testing.T) {
	d := NewDriver(transport.Endpoint{}, nil)
	boom := errors.New("broken pipe")
	tr := &scriptedTransport{sendErr: boom}

	_, err := d.SendFile(tr, []byte("abc"))
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "send header", te.Op)
	require.ErrorIs(t, err, boom)
	require.True(t, tr.closed)
}

func TestSendPathMissingFile(t *testing.T) {
	d := NewDriver(transport.Endpoint{Host: "127.0.0.1", Port: 1}, nil)
	_, err := d.SendPath(context.Background(), filepath.Join(t.TempDir(), "nope.bin"))
	var te *TransferError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "read source", te.Op)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSendPathConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	src := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	d := NewDriver(transport.Endpoint{Host: "127.0.0.1", Port: port}, nil)
	_, err = d.SendPath(context.Background(), src)
	var ce *transport.ConnectError
	require.ErrorAs(t, err, &ce)
}

// ackServer accepts one connection, drains the framed payload and acknowledges.
func ackServer(t *testing.T) (port int, received <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	out := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		size, err := framing.ReadHeader(transport.Wrap(conn, nil, 0))
		if err != nil {
			return
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		out <- buf
		_, _ = conn.Write([]byte("File received successfully."))
	}()
	return ln.Addr().(*net.TCPAddr).Port, out
}

func TestSendPathAppendsPerformanceRecord(t *testing.T) {
	port, received := ackServer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "test_file.txt")
	content := bytes.Repeat([]byte("Hello World!"), 15)
	require.NoError(t, os.WriteFile(src, content, 0644))

	logPath := filepath.Join(dir, "client_performance.log")
	pl, err := perflog.Open(logPath)
	require.NoError(t, err)
	defer pl.Close()

	d := NewDriver(transport.Endpoint{Host: "127.0.0.1", Port: port}, pl)
	sample, err := d.SendPath(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, models.ConnTCP, sample.ConnectionType)
	require.Equal(t, content, <-received)

	samples, err := perflog.Load(logPath)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, models.ConnTCP, samples[0].ConnectionType)
	require.Equal(t, int64(len(content)), samples[0].DataSize)

	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(raw), ",TCP,"+strconv.Itoa(len(content))+",")
}
