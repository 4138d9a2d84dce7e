// Package requests contains HTTP request bodies for the queue API.
package requests

// OpenConversationRequest is an inbound customer message.
type OpenConversationRequest struct {
	ContactID   string         `json:"contact_id" binding:"required"`
	ChannelType string         `json:"channel_type" binding:"required"`
	QueueID     *string        `json:"queue_id,omitempty"`
	Priority    int            `json:"priority"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AssignRequest names the agent to assign. Empty means the caller.
type AssignRequest struct {
	AgentID string `json:"agent_id,omitempty"`
}

// TransferRequest names the receiving agent.
type TransferRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

// AttendNextRequest optionally restricts attend-next to one queue.
type AttendNextRequest struct {
	QueueID *string `json:"queue_id,omitempty"`
}

// CreateAgentRequest registers an agent profile.
type CreateAgentRequest struct {
	DisplayName   string  `json:"display_name" binding:"required" validate:"required,max=200"`
	TeamID        *string `json:"team_id,omitempty"`
	Status        string  `json:"status,omitempty" validate:"omitempty,agent_status"`
	MaxConcurrent int     `json:"max_concurrent" validate:"gte=0"`
}

// AgentStatusRequest changes an agent's availability.
type AgentStatusRequest struct {
	Status string `json:"status" binding:"required" validate:"agent_status"`
}

// MessageRequest appends a message to a conversation.
type MessageRequest struct {
	Body       string `json:"body" binding:"required"`
	SenderType string `json:"sender_type,omitempty" validate:"omitempty,sender_type"`
}
