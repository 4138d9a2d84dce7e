package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
)

func registerQueueRoutes(router gin.IRoutes, handler *handlers.QueueHandler, stream *handlers.StreamHandler) {
	router.GET("/queue", handler.View)
	router.POST("/queue/attend-next", handler.AttendNext)
	router.GET("/stream", stream.Stream)
}

func registerAgentRoutes(router gin.IRoutes, handler *handlers.AgentHandler) {
	router.GET("/agents", handler.List)
	router.POST("/agents", handler.Create)
	router.PUT("/agents/:id/status", handler.SetStatus)
	router.GET("/agents/:id/conversations", handler.Conversations)
}
