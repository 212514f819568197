package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

// Hub fans session events out to every connected websocket viewer.
// It implements session.Observer.
type Hub struct {
	Connections map[string]*Connection
	Mutex       sync.RWMutex
	BroadcastCh chan models.Message
}

func NewHub() *Hub {
	return &Hub{
		Connections: make(map[string]*Connection),
		BroadcastCh: make(chan models.Message, 256),
	}
}

// Run pumps broadcasts until ctx ends, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case msg := <-h.BroadcastCh:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Log.Error("Failed to marshal broadcast", "type", msg.Type, "err", err)
				continue
			}
			h.Mutex.RLock()
			for _, c := range h.Connections {
				select {
				case c.SendCh <- data:
				default:
					logger.Log.Warn("Viewer send channel full, dropping message", "viewer", c.ID)
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
		logger.Log.Warn("Broadcast channel full, dropping message", "type", msg.Type)
	}
}

// Connect registers an upgraded connection and starts its pumps.
func (h *Hub) Connect(conn *websocket.Conn) *Connection {
	c := NewConnection(uuid.NewString(), conn)
	h.Mutex.Lock()
	h.Connections[c.ID] = c
	h.Mutex.Unlock()
	logger.Log.Info("Viewer connected", "viewer", c.ID, "remote", conn.RemoteAddr().String())
	go h.ReadPump(c)
	go h.WritePump(c)
	return c
}

func (h *Hub) Disconnect(id string) {
	h.Mutex.Lock()
	c, exists := h.Connections[id]
	if exists {
		delete(h.Connections, id)
		close(c.DisconnectCh)
	}
	h.Mutex.Unlock()
	if exists {
		_ = c.Conn.Close()
		logger.Log.Info("Viewer disconnected", "viewer", id)
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
