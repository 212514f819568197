package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
	"github.com/The-Promised-Neverland/tlsbench/internal/service"
	"github.com/The-Promised-Neverland/tlsbench/pkg/logger"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{
		Service: s,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := models.HealthCheck{
		Status: "Healthy",
		Uptime: h.Service.Uptime(),
	}
	if c.Query("host") == "true" {
		hostMetrics, err := h.Service.GetHostMetrics()
		if err != nil {
			logger.Log.Warn("Partial host metrics", "err", err)
		}
		health.Host = hostMetrics
	}
	c.JSON(http.StatusOK, models.Message{
		Type:    models.MsgHealthCheck,
		Payload: health,
	})
}

func (h *Handler) SessionStats(c *gin.Context) {
	c.JSON(http.StatusOK, models.Message{
		Type:    models.MsgSessionStats,
		Payload: h.Service.Stats(),
	})
}
