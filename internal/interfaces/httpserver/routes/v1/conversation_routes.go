package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.POST("/conversations", handler.Open)
	router.POST("/conversations/:id/assign", handler.Assign)
	router.POST("/conversations/:id/finish", handler.Finish)
	router.POST("/conversations/:id/transfer", handler.Transfer)
	router.POST("/conversations/:id/pause", handler.Pause)
	router.POST("/conversations/:id/resume", handler.Resume)
	router.POST("/conversations/:id/messages", handler.PostMessage)
	router.GET("/conversations/:id/messages", handler.ListMessages)
}
