package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"time"
)

// Endpoint is the immutable connection configuration of a client or listener.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
	// InsecureSkipVerify disables peer certificate and hostname checks. It exists
	// for benchmarking against self-signed certificates and is never on by default.
	InsecureSkipVerify bool
	// RootCAs verifies the server when non-nil; nil means the system pool.
	RootCAs     *x509.CertPool
	IdleTimeout time.Duration
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ClientTLSConfig builds the client side TLS configuration for the endpoint.
func ClientTLSConfig(e Endpoint) *tls.Config {
	return &tls.Config{
		ServerName:         e.Host,
		RootCAs:            e.RootCAs,
		InsecureSkipVerify: e.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

// Dial connects to the endpoint and, for TLS endpoints, completes the handshake.
// Any failure is returned as *ConnectError.
func Dial(ctx context.Context, e Endpoint) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", e.Address())
	if err != nil {
		return nil, &ConnectError{Addr: e.Address(), Err: err}
	}
	if !e.UseTLS {
		return newConn(raw, nil, e.IdleTimeout), nil
	}
	tlsConn := tls.Client(raw, ClientTLSConfig(e))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, &ConnectError{Addr: e.Address(), Err: err}
	}
	return newConn(raw, tlsConn, e.IdleTimeout), nil
}
