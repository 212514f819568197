package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/The-Promised-Neverland/tlsbench/internal/api/handlers"
	"github.com/The-Promised-Neverland/tlsbench/internal/api/middleware"
)

type Router struct {
	Handler    *handlers.Handler
	WSHandler  *handlers.WebSocketHandler
	SSEHandler *handlers.SSEHandler
	Gatherer   prometheus.Gatherer
}

func NewRouter(handler *handlers.Handler, wsh *handlers.WebSocketHandler, ssh *handlers.SSEHandler, gatherer prometheus.Gatherer) *Router {
	return &Router{
		Handler:    handler,
		WSHandler:  wsh,
		SSEHandler: ssh,
		Gatherer:   gatherer,
	}
}

func (rtr *Router) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CorsMiddleware())

	router.GET("/health", rtr.Handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rtr.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", rtr.Handler.SessionStats)
		v1.GET("/events", rtr.SSEHandler.StreamHandler)
	}
	router.GET("/ws", rtr.WSHandler.UpgradeHandler) // live session feed

	return router
}
