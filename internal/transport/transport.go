package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

// Transport is a bidirectional byte stream, plain or TLS, used identically by client and server.
type Transport interface {
	// Handshake completes the TLS handshake. It is a no-op for plain connections.
	Handshake(ctx context.Context) error
	// SendAll writes every byte of p or fails with *TransportError.
	SendAll(p []byte) error
	// ReceiveUpTo reads between 1 and len(p) bytes. It returns (0, io.EOF) once
	// the peer has closed the stream and *TransportError on any other failure.
	ReceiveUpTo(p []byte) (int, error)
	Close() error
	RemoteAddr() string
	Mode() models.ConnectionType
}

// Conn is the net.Conn backed Transport.
type Conn struct {
	conn        net.Conn
	tlsConn     *tls.Conn
	mode        models.ConnectionType
	remote      string
	idleTimeout time.Duration
}

// Wrap adapts an accepted connection. A nil tlsConfig keeps the connection plain;
// otherwise the server side of a TLS session is layered on top and negotiated on
// the first Handshake, read or write.
func Wrap(raw net.Conn, tlsConfig *tls.Config, idleTimeout time.Duration) *Conn {
	if tlsConfig == nil {
		return newConn(raw, nil, idleTimeout)
	}
	return newConn(raw, tls.Server(raw, tlsConfig), idleTimeout)
}

func newConn(raw net.Conn, tlsConn *tls.Conn, idleTimeout time.Duration) *Conn {
	c := &Conn{
		conn:        raw,
		mode:        models.ConnectionTypeFor(tlsConn != nil),
		idleTimeout: idleTimeout,
	}
	if raw.RemoteAddr() != nil {
		c.remote = raw.RemoteAddr().String()
	}
	if tlsConn != nil {
		c.conn = tlsConn
		c.tlsConn = tlsConn
	}
	return c
}

func (c *Conn) Handshake(ctx context.Context) error {
	if c.tlsConn == nil {
		return nil
	}
	if err := c.tlsConn.HandshakeContext(ctx); err != nil {
		return &TransportError{Op: "handshake", Remote: c.remote, Err: err}
	}
	return nil
}

func (c *Conn) SendAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		p = p[n:]
		if err != nil {
			return &TransportError{Op: "send", Remote: c.remote, Err: err}
		}
		if n == 0 {
			return &TransportError{Op: "send", Remote: c.remote, Err: io.ErrShortWrite}
		}
	}
	return nil
}

func (c *Conn) ReceiveUpTo(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return 0, &TransportError{Op: "receive", Remote: c.remote, Err: err}
		}
	}
	for {
		n, err := c.conn.Read(p)
		if n > 0 {
			// a pending error is reported again by the next read
			return n, nil
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return 0, io.EOF
		default:
			return 0, &TransportError{Op: "receive", Remote: c.remote, Err: err}
		}
	}
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.remote
}

func (c *Conn) Mode() models.ConnectionType {
	return c.mode
}

// TLSState reports the negotiated TLS parameters. ok is false for plain connections.
func (c *Conn) TLSState() (state tls.ConnectionState, ok bool) {
	if c.tlsConn == nil {
		return tls.ConnectionState{}, false
	}
	return c.tlsConn.ConnectionState(), true
}
