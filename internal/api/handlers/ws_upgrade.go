package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/The-Promised-Neverland/tlsbench/internal/ws"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

type WebSocketHandler struct {
	Hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (wsh *WebSocketHandler) UpgradeHandler(c *gin.Context) {
	conn, err := wsh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade WebSocket", "err", err)
		return
	}
	wsh.Hub.Connect(conn)
}
