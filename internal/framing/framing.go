// Package framing implements the transfer header: an 8-byte big-endian
// payload length sent ahead of the payload bytes.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const HeaderSize = 8

var ErrShortHeader = errors.New("short header")

// FramingError reports a header that could not be read in full.
type FramingError struct {
	Got int
	Err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: read %d of %d header bytes: %v", e.Got, HeaderSize, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Receiver is the read half of a transport.
type Receiver interface {
	ReceiveUpTo(p []byte) (int, error)
}

func EncodeHeader(size uint64) [HeaderSize]byte {
	var h [HeaderSize]byte
	binary.BigEndian.PutUint64(h[:], size)
	return h
}

func DecodeHeader(b []byte) (uint64, error) {
	if len(b) < HeaderSize {
		return 0, ErrShortHeader
	}
	return binary.BigEndian.Uint64(b[:HeaderSize]), nil
}

// ReadHeader reads exactly HeaderSize bytes, tolerating partial reads.
// A stream that ends early or fails yields *FramingError.
func ReadHeader(r Receiver) (uint64, error) {
	var buf [HeaderSize]byte
	got := 0
	for got < HeaderSize {
		n, err := r.ReceiveUpTo(buf[got:])
		got += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrShortHeader
			}
			return 0, &FramingError{Got: got, Err: err}
		}
	}
	return DecodeHeader(buf[:])
}
