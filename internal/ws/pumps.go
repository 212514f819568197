package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

const (
	maxMessageSize = 512
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
)

// ReadPump only watches for pongs and close frames; viewers do not send data.
func (h *Hub) ReadPump(c *Connection) {
	defer h.Disconnect(c.ID)
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.Mutex.Lock()
		c.LastSeen = time.Now()
		h.Mutex.Unlock()
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket error", "viewer", c.ID, "err", err)
			}
			return
		}
	}
}

func (h *Hub) WritePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.SendCh:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Warn("Failed to send message", "viewer", c.ID, "err", err)
				h.Disconnect(c.ID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Warn("Ping failed", "viewer", c.ID, "err", err)
				h.Disconnect(c.ID)
				return
			}
		case <-c.DisconnectCh:
			return
		}
	}
}
