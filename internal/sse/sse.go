package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

type Connection struct {
	ID       string
	SendCh   chan []byte
	LastSeen time.Time
}

// Hub streams session events to server-sent event subscribers. It implements
// session.Observer.
type Hub struct {
	Connections map[string]*Connection
	BroadcastCh chan models.Message
	Mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Connections: make(map[string]*Connection),
		BroadcastCh: make(chan models.Message, 100),
	}
}

// Run pumps broadcasts until ctx ends, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case msg := <-h.BroadcastCh:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Log.Error("Failed to marshal SSE message", "type", msg.Type, "err", err)
				continue
			}
			h.Mutex.RLock()
			for _, conn := range h.Connections {
				select {
				case conn.SendCh <- data:
				default:
					logger.Log.Warn("SSE send channel full, dropping message", "subscriber", conn.ID)
				}
			}
			h.Mutex.RUnlock()
		}
	}
}

func (h *Hub) Broadcast(msg models.Message) {
	select {
	case h.BroadcastCh <- msg:
	default:
		logger.Log.Warn("SSE broadcast channel full, dropping message", "type", msg.Type)
	}
}

func (h *Hub) Connect(id string) *Connection {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()
	conn := &Connection{
		ID:       id,
		SendCh:   make(chan []byte, 100),
		LastSeen: time.Now(),
	}
	h.Connections[id] = conn
	logger.Log.Info("SSE subscriber connected", "subscriber", id)
	return conn
}

func (h *Hub) Disconnect(id string) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()
	if conn, exists := h.Connections[id]; exists {
		close(conn.SendCh)
		delete(h.Connections, id)
		logger.Log.Info("SSE subscriber disconnected", "subscriber", id)
	}
}

func (h *Hub) Count() int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	return len(h.Connections)
}

func (h *Hub) disconnectAll() {
	h.Mutex.RLock()
	ids := make([]string, 0, len(h.Connections))
	for id := range h.Connections {
		ids = append(ids, id)
	}
	h.Mutex.RUnlock()
	for _, id := range ids {
		h.Disconnect(id)
	}
}

func (h *Hub) SessionStarted(ev models.SessionEvent) {
	h.Broadcast(models.Message{Type: models.MsgSessionStarted, Payload: ev})
}

func (h *Hub) SessionFinished(ev models.SessionEvent) {
	h.Broadcast(models.Message{Type: models.MsgSessionFinished, Payload: ev})
}
