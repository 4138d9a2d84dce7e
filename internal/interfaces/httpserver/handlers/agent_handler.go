package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/requests"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// AgentHandler exposes agent profiles and their held conversations.
type AgentHandler struct {
	agents   AgentDirectory
	assigner Assigner
	validate *validator.Validate
	log      zerolog.Logger
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(agents AgentDirectory, assigner Assigner, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		agents:   agents,
		assigner: assigner,
		validate: requests.NewValidator(),
		log:      log.With().Str("handler", "agent").Logger(),
	}
}

// Create handles POST /v1/agents
// @Summary Register an agent
// @Tags Agents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body requests.CreateAgentRequest true "Agent profile"
// @Success 201 {object} responses.AgentResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/agents [post]
func (h *AgentHandler) Create(c *gin.Context) {
	var req requests.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "agent-create-body")
		return
	}
	req.Normalize()
	if err := h.validate.Struct(req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "agent-create-invalid")
		return
	}

	a := &agent.Agent{
		TeamID:        req.TeamID,
		DisplayName:   req.DisplayName,
		Status:        agent.Status(req.Status),
		MaxConcurrent: req.MaxConcurrent,
	}
	if err := h.agents.Register(c.Request.Context(), callerFrom(c), a); err != nil {
		responses.HandleError(c, err, "failed to register agent")
		return
	}
	c.JSON(http.StatusCreated, responses.NewAgentResponse(a))
}

// List handles GET /v1/agents
// @Summary List agents
// @Tags Agents
// @Produce json
// @Security BearerAuth
// @Param team_id query string false "Team ID"
// @Param status query string false "Agent status" Enums(online, away, busy, offline)
// @Success 200 {object} responses.AgentListResponse
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/agents [get]
func (h *AgentHandler) List(c *gin.Context) {
	var filter agent.ListFilter
	if team := strings.TrimSpace(c.Query("team_id")); team != "" {
		filter.TeamID = &team
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := agent.Status(strings.ToLower(raw))
		if !status.IsValid() {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "unknown agent status", "agent-list-status")
			return
		}
		filter.Status = &status
	}

	items, err := h.agents.List(c.Request.Context(), callerFrom(c), filter)
	if err != nil {
		responses.HandleError(c, err, "failed to list agents")
		return
	}
	c.JSON(http.StatusOK, responses.NewAgentListResponse(items))
}

// SetStatus handles PUT /v1/agents/:id/status
// @Summary Change an agent's availability
// @Tags Agents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Agent ID"
// @Param request body requests.AgentStatusRequest true "New status"
// @Success 200 {object} responses.AgentStatusResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/agents/{id}/status [put]
func (h *AgentHandler) SetStatus(c *gin.Context) {
	var req requests.AgentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "agent-status-body")
		return
	}
	req.Normalize()
	if err := h.validate.Struct(req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error(), "agent-status-invalid")
		return
	}

	changed, err := h.agents.SetStatus(c.Request.Context(), callerFrom(c), c.Param("id"), agent.Status(req.Status))
	if err != nil {
		responses.HandleError(c, err, "failed to change agent status")
		return
	}
	c.JSON(http.StatusOK, responses.AgentStatusResponse{Changed: changed})
}

// Conversations handles GET /v1/agents/:id/conversations
// @Summary List the conversations an agent holds
// @Tags Agents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Agent ID"
// @Success 200 {object} responses.ConversationListResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/agents/{id}/conversations [get]
func (h *AgentHandler) Conversations(c *gin.Context) {
	items, err := h.assigner.HeldBy(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to list agent conversations")
		return
	}
	c.JSON(http.StatusOK, responses.NewConversationListResponse(items))
}
