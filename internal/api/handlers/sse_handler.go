package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/service"
	"github.com/The-Promised-Neverland/tlsbench/internal/sse"
)

const keepAliveInterval = 30 * time.Second

type SSEHandler struct {
	Hub     *sse.Hub
	Service *service.Service
}

func NewSSEHandler(hub *sse.Hub, s *service.Service) *SSEHandler {
	return &SSEHandler{
		Hub:     hub,
		Service: s,
	}
}

// StreamHandler sends the current session stats, then every session event
// until the client goes away or the hub shuts down.
func (ssh *SSEHandler) StreamHandler(c *gin.Context) {
	connID := uuid.NewString()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	conn := ssh.Hub.Connect(connID)
	defer ssh.Hub.Disconnect(connID)

	writeEvent(c, models.Message{Type: models.MsgConnected, Payload: map[string]string{"id": connID}})
	if ssh.Service != nil {
		writeEvent(c, models.Message{Type: models.MsgSessionStats, Payload: ssh.Service.Stats()})
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-conn.SendCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, msg models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
