package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

type Connection struct {
	ID           string
	Conn         *websocket.Conn
	LastSeen     time.Time
	DisconnectCh chan struct{}
	SendCh       chan []byte
}

func NewConnection(id string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:           id,
		Conn:         conn,
		LastSeen:     time.Now(),
		DisconnectCh: make(chan struct{}),
		SendCh:       make(chan []byte, 100),
	}
}
