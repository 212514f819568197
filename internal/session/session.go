package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/The-Promised-Neverland/tlsbench/internal/framing"
	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/transport"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

const (
	AckMessage        = "File received successfully."
	DefaultBufferSize = 4096

	// upper bound on the initial allocation when a sink asks for the payload
	maxPrealloc = 64 << 20
)

var ErrPrematureClose = errors.New("peer closed before the declared payload size was received")

// Session is the server-side record of one accepted connection. It is owned
// by the goroutine running Handle and is not shared.
type Session struct {
	ID           string
	Remote       string
	Mode         models.ConnectionType
	State        State
	Expected     uint64
	Received     uint64
	Acknowledged bool
	Err          error
	StartedAt    time.Time
	EndedAt      time.Time
}

func (s *Session) Event() models.SessionEvent {
	ev := models.SessionEvent{
		SessionID:    s.ID,
		Remote:       s.Remote,
		Mode:         s.Mode,
		State:        s.State.String(),
		Expected:     s.Expected,
		Received:     s.Received,
		Acknowledged: s.Acknowledged,
		StartedAt:    s.StartedAt,
	}
	if !s.EndedAt.IsZero() {
		ev.Duration = s.EndedAt.Sub(s.StartedAt).Seconds()
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	return ev
}

func (s *Session) fail(err error) {
	s.State = StateError
	s.Err = err
}

type Handler struct {
	bufferSize int
	sink       PayloadSink
	observer   Observer
	now        func() time.Time
}

type Option func(*Handler)

func WithBufferSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithPayloadSink(sink PayloadSink) Option {
	return func(h *Handler) {
		h.sink = sink
	}
}

func WithObserver(obs Observer) Option {
	return func(h *Handler) {
		h.observer = obs
	}
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		bufferSize: DefaultBufferSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one session to completion:
// awaiting_header -> receiving_payload -> acknowledging -> closed, or error.
// The transport is closed on every path.
func (h *Handler) Handle(ctx context.Context, t transport.Transport) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Remote:    t.RemoteAddr(),
		Mode:      t.Mode(),
		State:     StateAwaitingHeader,
		StartedAt: h.now(),
	}
	log := logger.Log.With("session", s.ID, "remote", s.Remote, "mode", s.Mode)
	log.Info("Connection established")
	if h.observer != nil {
		h.observer.SessionStarted(s.Event())
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Debug("Close failed", "err", err)
		}
		s.EndedAt = h.now()
		if s.State != StateError {
			s.State = StateClosed
		}
		if s.Err != nil {
			log.Error("Session aborted", "state", s.State.String(), "expected", s.Expected, "received", s.Received, "err", s.Err)
		} else {
			log.Info("Connection closed", "received", s.Received, "duration", s.EndedAt.Sub(s.StartedAt).Seconds(), "acknowledged", s.Acknowledged)
		}
		if h.observer != nil {
			h.observer.SessionFinished(s.Event())
		}
	}()

	if err := t.Handshake(ctx); err != nil {
		s.fail(err)
		return s
	}
	size, err := framing.ReadHeader(t)
	if err != nil {
		s.fail(err)
		return s
	}
	s.Expected = size
	s.State = StateReceivingPayload
	log.Info("Expecting payload", "bytes", size)

	payload, err := h.receivePayload(t, s)
	if err != nil {
		s.fail(err)
		return s
	}
	if h.sink != nil {
		if err := h.sink.OnPayloadComplete(s.ID, s.Remote, payload); err != nil {
			log.Warn("Payload sink failed", "err", err)
		}
	}

	s.State = StateAcknowledging
	if err := t.SendAll([]byte(AckMessage)); err != nil {
		log.Error("Failed to send acknowledgment", "err", err)
		return s
	}
	s.Acknowledged = true
	return s
}

// receivePayload reads until s.Expected bytes have arrived, never asking for
// more than remain. The bytes are kept only when a sink wants them.
func (h *Handler) receivePayload(t transport.Transport, s *Session) ([]byte, error) {
	buf := make([]byte, h.bufferSize)
	var payload []byte
	if h.sink != nil {
		payload = make([]byte, 0, min(s.Expected, maxPrealloc))
	}
	for s.Received < s.Expected {
		chunk := buf
		if remaining := s.Expected - s.Received; remaining < uint64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		n, err := t.ReceiveUpTo(chunk)
		if n > 0 {
			s.Received += uint64(n)
			if h.sink != nil {
				payload = append(payload, chunk[:n]...)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrPrematureClose, s.Received, s.Expected)
		}
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}
