package listener

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/The-Promised-Neverland/tlsbench/internal/certs"
	"github.com/The-Promised-Neverland/tlsbench/internal/framing"
	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/session"
)

type syncSink struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func (s *syncSink) OnPayloadComplete(_, remote string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[remote] = append([]byte(nil), payload...)
	return nil
}

func (s *syncSink) get(remote string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[remote]
}

type finishedObserver struct {
	mu      sync.Mutex
	started int
	events  []models.SessionEvent
}

func (o *finishedObserver) SessionStarted(models.SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *finishedObserver) startedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started
}

func (o *finishedObserver) SessionFinished(ev models.SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *finishedObserver) all() []models.SessionEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.SessionEvent(nil), o.events...)
}

func startListener(t *testing.T, opts Options, handlerOpts ...session.Option) (*Listener, context.CancelFunc, <-chan error) {
	t.Helper()
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	l := New(opts, session.NewHandler(handlerOpts...))
	require.NoError(t, l.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- l.Serve(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		l.Wait()
	})
	return l, cancel, done
}

// send writes one framed payload and returns the acknowledgment bytes.
func send(t *testing.T, conn net.Conn, payload []byte) string {
	t.Helper()
	h := framing.EncodeHeader(uint64(len(payload)))
	_, err := conn.Write(h[:])
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
	ack, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(ack)
}

func TestServeTCPRoundTrip(t *testing.T) {
	sink := &syncSink{payloads: map[string][]byte{}}
	l, _, _ := startListener(t, Options{}, session.WithPayloadSink(sink))

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 100_000)
	require.Equal(t, session.AckMessage, send(t, conn, payload))
	require.Equal(t, payload, sink.get(conn.LocalAddr().String()))
}

func TestServeZeroBytePayload(t *testing.T) {
	l, _, _ := startListener(t, Options{})
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, session.AckMessage, send(t, conn, nil))
}

func TestServePrematureCloseSendsNoAck(t *testing.T) {
	obs := &finishedObserver{}
	l, _, _ := startListener(t, Options{}, session.WithObserver(obs))

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	h := framing.EncodeHeader(1 << 20)
	_, err = conn.Write(h[:])
	require.NoError(t, err)
	_, err = conn.Write(make([]byte, 1000))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	ack, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Empty(t, ack)
	conn.Close()

	require.Eventually(t, func() bool { return len(obs.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	ev := obs.all()[0]
	require.Equal(t, "error", ev.State)
	require.Equal(t, uint64(1000), ev.Received)
	require.False(t, ev.Acknowledged)
}

func TestServeConcurrentSessionsAreIsolated(t *testing.T) {
	sink := &syncSink{payloads: map[string][]byte{}}
	l, _, _ := startListener(t, Options{}, session.WithPayloadSink(sink))

	const clients = 16
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte(fmt.Sprintf("client-%02d|", i)), 5000+i*37)
			conn, err := net.Dial("tcp", l.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			h := framing.EncodeHeader(uint64(len(payload)))
			if _, err := conn.Write(append(h[:], payload...)); err != nil {
				errs <- err
				return
			}
			ack, err := io.ReadAll(conn)
			if err != nil {
				errs <- err
				return
			}
			if string(ack) != session.AckMessage {
				errs <- fmt.Errorf("client %d: unexpected ack %q", i, ack)
				return
			}
			if got := sink.get(conn.LocalAddr().String()); !bytes.Equal(got, payload) {
				errs <- fmt.Errorf("client %d: payload mismatch (%d bytes, want %d)", i, len(got), len(payload))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestServeStopsOnCancelAndLetsSessionsFinish(t *testing.T) {
	obs := &finishedObserver{}
	l, cancel, done := startListener(t, Options{}, session.WithObserver(obs))

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	h := framing.EncodeHeader(5)
	_, err = conn.Write(h[:])
	require.NoError(t, err)
	require.Eventually(t, func() bool { return obs.startedCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_, err = net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.Error(t, err)

	// the in-flight session still completes
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	ack, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Equal(t, session.AckMessage, string(ack))
	l.Wait()
}

func TestServeTLS(t *testing.T) {
	certPEM, keyPEM, err := certs.SelfSigned("localhost", "127.0.0.1")
	require.NoError(t, err)
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(certPEM))

	obs := &finishedObserver{}
	l, _, _ := startListener(t, Options{TLSConfig: &tls.Config{Certificates: []tls.Certificate{pair}}}, session.WithObserver(obs))

	conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, session.AckMessage, send(t, conn, bytes.Repeat([]byte("x"), 70_000)))

	require.Eventually(t, func() bool { return len(obs.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, models.ConnTLS, obs.all()[0].Mode)
}

func TestServeMaxSessionsQueuesExtraConnections(t *testing.T) {
	l, _, _ := startListener(t, Options{MaxSessions: 1})

	first, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	second, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	// second is not served while first holds the only slot
	h := framing.EncodeHeader(0)
	_, err = second.Write(h[:])
	require.NoError(t, err)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err = second.Read(make([]byte, 64))
	require.Error(t, err)

	require.Equal(t, session.AckMessage, send(t, first, []byte("done")))

	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	ack, err := io.ReadAll(second)
	require.NoError(t, err)
	require.Equal(t, session.AckMessage, string(ack))
}
