package models

import "time"

// SessionEvent describes a finished (or freshly accepted) server session.
type SessionEvent struct {
	SessionID    string         `json:"session_id"`
	Remote       string         `json:"remote"`
	Mode         ConnectionType `json:"mode"`
	State        string         `json:"state"`
	Expected     uint64         `json:"expected_bytes"`
	Received     uint64         `json:"received_bytes"`
	Acknowledged bool           `json:"acknowledged"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     float64        `json:"duration_seconds"`
}

type ModeStats struct {
	Sessions      uint64 `json:"sessions"`
	Completed     uint64 `json:"completed"`
	Failed        uint64 `json:"failed"`
	BytesReceived uint64 `json:"bytes_received"`
}

type SessionStats struct {
	Active   int64                        `json:"active"`
	Total    uint64                       `json:"total"`
	ByMode   map[ConnectionType]ModeStats `json:"by_mode"`
	LastSeen *SessionEvent                `json:"last_session,omitempty"`
}
