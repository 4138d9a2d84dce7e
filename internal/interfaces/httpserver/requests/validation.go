package requests

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/message"
)

// NewValidator returns a validator that also understands the agent_status
// and sender_type tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("agent_status", func(fl validator.FieldLevel) bool {
		return agent.Status(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("sender_type", func(fl validator.FieldLevel) bool {
		return message.SenderType(fl.Field().String()).IsValid()
	})
	return v
}

// Normalize trims names and lower-cases the status.
func (r *CreateAgentRequest) Normalize() {
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *AgentStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *MessageRequest) Normalize() {
	r.SenderType = strings.ToLower(strings.TrimSpace(r.SenderType))
}
