package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/requests"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// QueueHandler serves the queue view and attend-next.
type QueueHandler struct {
	viewer   QueueViewer
	assigner Assigner
	log      zerolog.Logger
}

// NewQueueHandler constructs the handler.
func NewQueueHandler(viewer QueueViewer, assigner Assigner, log zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		viewer:   viewer,
		assigner: assigner,
		log:      log.With().Str("handler", "queue").Logger(),
	}
}

// View handles GET /v1/queue
// @Summary Get the caller's queue
// @Description Waiting conversations in priority order plus assigned ones, limited to what the caller's role may see.
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Param queue_id query string false "Queue ID"
// @Success 200 {object} responses.QueueResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/queue [get]
func (h *QueueHandler) View(c *gin.Context) {
	result, err := h.viewer.ViewFor(c.Request.Context(), callerFrom(c), queueFilter(c))
	if err != nil {
		responses.HandleError(c, err, "failed to read queue")
		return
	}
	c.JSON(http.StatusOK, responses.NewQueueResponse(result))
}

// AttendNext handles POST /v1/queue/attend-next
// @Summary Claim the next waiting conversation
// @Tags Queue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body requests.AttendNextRequest false "Queue restriction"
// @Success 200 {object} responses.AttemptResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/queue/attend-next [post]
func (h *QueueHandler) AttendNext(c *gin.Context) {
	var req requests.AttendNextRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "attend-next-body")
			return
		}
	}

	attempt, err := h.assigner.AttendNext(c.Request.Context(), callerFrom(c), assignment.Options{QueueID: req.QueueID})
	if err != nil {
		responses.HandleError(c, err, "failed to attend next conversation")
		return
	}
	c.JSON(http.StatusOK, responses.NewAttemptResponse(attempt))
}

func queueFilter(c *gin.Context) queue.Filter {
	var filter queue.Filter
	if id := strings.TrimSpace(c.Query("queue_id")); id != "" {
		filter.QueueID = &id
	}
	return filter
}
