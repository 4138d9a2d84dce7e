package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{handlers: handlerProvider}
}

// Register mounts every v1 route behind callerMiddleware.
func (r *Routes) Register(engine *gin.Engine, callerMiddleware gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	if callerMiddleware != nil {
		v1.Use(callerMiddleware)
	}
	registerConversationRoutes(v1, r.handlers.Conversation)
	registerQueueRoutes(v1, r.handlers.Queue, r.handlers.Stream)
	registerAgentRoutes(v1, r.handlers.Agent)
	v1.GET("/metrics/sla", r.handlers.SLA.Report)
}
