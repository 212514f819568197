package transport

import "fmt"

// ConnectError reports a failed dial or TLS handshake on the client side.
// The attempt is abandoned; nothing in this package retries.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError reports a mid-stream failure: reset, broken pipe, TLS record fault.
type TransportError struct {
	Op     string
	Remote string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Remote, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
