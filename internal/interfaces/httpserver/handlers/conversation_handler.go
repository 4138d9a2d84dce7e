package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/requests"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// ConversationHandler exposes conversation lifecycle endpoints.
type ConversationHandler struct {
	assigner Assigner
	intake   Intake
	validate *validator.Validate
	log      zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(assigner Assigner, intakeService Intake, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		assigner: assigner,
		intake:   intakeService,
		validate: requests.NewValidator(),
		log:      log.With().Str("handler", "conversation").Logger(),
	}
}

// Open handles POST /v1/conversations
// @Summary Receive an inbound customer message
// @Description Appends the message to the contact's open conversation on the channel, or opens a waiting one.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body requests.OpenConversationRequest true "Inbound message"
// @Success 200 {object} responses.OpenConversationResponse
// @Success 201 {object} responses.OpenConversationResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/conversations [post]
func (h *ConversationHandler) Open(c *gin.Context) {
	var req requests.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "open-conversation-body")
		return
	}

	result, err := h.intake.Receive(c.Request.Context(), callerFrom(c), intake.InboundMessage{
		ContactID:   req.ContactID,
		ChannelType: req.ChannelType,
		QueueID:     req.QueueID,
		Priority:    req.Priority,
		Body:        req.Body,
		Metadata:    req.Metadata,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to open conversation")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, responses.NewOpenConversationResponse(result))
}

// Assign handles POST /v1/conversations/:id/assign
// @Summary Assign a waiting conversation
// @Description Claims the conversation for agent_id, or for the caller when omitted. Losing a race returns assigned=false.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param request body requests.AssignRequest false "Target agent"
// @Success 200 {object} responses.AssignResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/assign [post]
func (h *ConversationHandler) Assign(c *gin.Context) {
	var req requests.AssignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "assign-body")
			return
		}
	}

	caller := callerFrom(c)
	agentID := req.AgentID
	if agentID == "" {
		agentID = caller.AgentID
	}

	ok, err := h.assigner.ClaimFor(c.Request.Context(), caller, c.Param("id"), agentID)
	if err != nil {
		responses.HandleError(c, err, "failed to assign conversation")
		return
	}
	c.JSON(http.StatusOK, responses.AssignResponse{Assigned: ok})
}

// Finish handles POST /v1/conversations/:id/finish
// @Summary Finish a conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} responses.FinishResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/finish [post]
func (h *ConversationHandler) Finish(c *gin.Context) {
	ok, err := h.assigner.Finish(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to finish conversation")
		return
	}
	c.JSON(http.StatusOK, responses.FinishResponse{Finished: ok})
}

// Transfer handles POST /v1/conversations/:id/transfer
// @Summary Transfer a held conversation to another agent
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param request body requests.TransferRequest true "Receiving agent"
// @Success 200 {object} responses.TransferResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/transfer [post]
func (h *ConversationHandler) Transfer(c *gin.Context) {
	var req requests.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "transfer-body")
		return
	}

	ok, err := h.assigner.Transfer(c.Request.Context(), callerFrom(c), c.Param("id"), req.AgentID)
	if err != nil {
		responses.HandleError(c, err, "failed to transfer conversation")
		return
	}
	c.JSON(http.StatusOK, responses.TransferResponse{Transferred: ok})
}

// Pause handles POST /v1/conversations/:id/pause
// @Summary Pause an active conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} responses.OKResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/pause [post]
func (h *ConversationHandler) Pause(c *gin.Context) {
	ok, err := h.assigner.Pause(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to pause conversation")
		return
	}
	c.JSON(http.StatusOK, responses.OKResponse{OK: ok})
}

// Resume handles POST /v1/conversations/:id/resume
// @Summary Resume a paused conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} responses.OKResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/resume [post]
func (h *ConversationHandler) Resume(c *gin.Context) {
	ok, err := h.assigner.Resume(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to resume conversation")
		return
	}
	c.JSON(http.StatusOK, responses.OKResponse{OK: ok})
}

// PostMessage handles POST /v1/conversations/:id/messages
// @Summary Append a message to a conversation
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param request body requests.MessageRequest true "Message"
// @Success 201 {object} responses.MessageResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/messages [post]
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	var req requests.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "message-body")
		return
	}
	req.Normalize()
	if err := h.validate.Struct(req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "message-sender")
		return
	}

	msg, err := h.intake.Reply(c.Request.Context(), callerFrom(c), c.Param("id"), message.SenderType(req.SenderType), req.Body)
	if err != nil {
		responses.HandleError(c, err, "failed to append message")
		return
	}
	c.JSON(http.StatusCreated, responses.NewMessageResponse(msg))
}

// ListMessages handles GET /v1/conversations/:id/messages
// @Summary List a conversation's transcript
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param limit query int false "Maximum number of messages" default(0)
// @Success 200 {object} responses.MessageListResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "limit must be a non-negative integer", "messages-limit")
			return
		}
		limit = n
	}

	items, err := h.intake.Transcript(c.Request.Context(), callerFrom(c), c.Param("id"), limit)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, responses.NewMessageListResponse(items))
}
