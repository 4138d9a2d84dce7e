// Package responses contains the JSON bodies returned by the queue API.
package responses

import (
	"time"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/realtime"
	"github.com/deskline/queue-api/internal/domain/sla"
)

// ConversationResponse is one conversation.
type ConversationResponse struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id"`
	QueueID         *string        `json:"queue_id,omitempty"`
	ContactID       string         `json:"contact_id"`
	ChannelType     string         `json:"channel_type"`
	Status          string         `json:"status"`
	Priority        int            `json:"priority"`
	Band            string         `json:"band"`
	AssignedAgentID *string        `json:"assigned_agent_id,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	AssignedAt      *time.Time     `json:"assigned_at,omitempty"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewConversationResponse maps a conversation.
func NewConversationResponse(c *conversation.Conversation) *ConversationResponse {
	if c == nil {
		return nil
	}
	return &ConversationResponse{
		ID:              c.ID,
		OrganizationID:  c.OrganizationID,
		QueueID:         c.QueueID,
		ContactID:       c.ContactID,
		ChannelType:     c.ChannelType,
		Status:          c.Status.String(),
		Priority:        c.Priority,
		Band:            string(c.Band()),
		AssignedAgentID: c.AssignedAgentID,
		StartedAt:       c.StartedAt,
		AssignedAt:      c.AssignedAt,
		FinishedAt:      c.FinishedAt,
		Metadata:        c.Metadata,
	}
}

// ConversationListResponse wraps a list of conversations.
type ConversationListResponse struct {
	Object string                  `json:"object"`
	Data   []*ConversationResponse `json:"data"`
}

func NewConversationListResponse(items []*conversation.Conversation) ConversationListResponse {
	data := make([]*ConversationResponse, 0, len(items))
	for _, c := range items {
		data = append(data, NewConversationResponse(c))
	}
	return ConversationListResponse{Object: "list", Data: data}
}

// OpenConversationResponse reports the result of an inbound message.
type OpenConversationResponse struct {
	Conversation *ConversationResponse `json:"conversation"`
	Message      *MessageResponse      `json:"message,omitempty"`
	Created      bool                  `json:"created"`
}

func NewOpenConversationResponse(r *intake.Result) OpenConversationResponse {
	return OpenConversationResponse{
		Conversation: NewConversationResponse(r.Conversation),
		Message:      NewMessageResponse(r.Message),
		Created:      r.Created,
	}
}

// MessageResponse is one transcript entry.
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	SenderID       string    `json:"sender_id,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewMessageResponse(m *message.Message) *MessageResponse {
	if m == nil {
		return nil
	}
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderType:     string(m.SenderType),
		SenderID:       m.SenderID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageListResponse wraps a transcript.
type MessageListResponse struct {
	Object string             `json:"object"`
	Data   []*MessageResponse `json:"data"`
}

func NewMessageListResponse(items []*message.Message) MessageListResponse {
	data := make([]*MessageResponse, 0, len(items))
	for _, m := range items {
		data = append(data, NewMessageResponse(m))
	}
	return MessageListResponse{Object: "list", Data: data}
}

// AssignResponse reports whether the assignment happened.
type AssignResponse struct {
	Assigned bool `json:"assigned"`
}

// FinishResponse reports whether this call finished the conversation.
type FinishResponse struct {
	Finished bool `json:"finished"`
}

// TransferResponse reports whether the transfer happened.
type TransferResponse struct {
	Transferred bool `json:"transferred"`
}

// OKResponse reports whether a pause or resume applied.
type OKResponse struct {
	OK bool `json:"ok"`
}

// AttemptResponse is the final state of an attend-next call.
type AttemptResponse struct {
	State        string                `json:"state"`
	Reason       string                `json:"reason,omitempty"`
	Tries        int                   `json:"tries"`
	Conversation *ConversationResponse `json:"conversation,omitempty"`
}

func NewAttemptResponse(a *assignment.Attempt) AttemptResponse {
	return AttemptResponse{
		State:        string(a.State),
		Reason:       string(a.Reason),
		Tries:        a.Tries,
		Conversation: NewConversationResponse(a.Conversation),
	}
}

// QueueItemResponse is a conversation with its queue position.
type QueueItemResponse struct {
	Position    int                   `json:"position"`
	WaitSeconds int64                 `json:"wait_seconds"`
	Item        *ConversationResponse `json:"conversation"`
}

// QueueResponse is the caller's ordered queue.
type QueueResponse struct {
	OrganizationID string              `json:"organization_id"`
	Scope          string              `json:"scope"`
	Waiting        []QueueItemResponse `json:"waiting"`
	Assigned       []QueueItemResponse `json:"assigned"`
	TakenAt        time.Time           `json:"taken_at"`
}

func NewQueueResponse(r queue.Result) QueueResponse {
	return QueueResponse{
		OrganizationID: r.OrganizationID,
		Scope:          r.Scope,
		Waiting:        queueItems(r.Waiting),
		Assigned:       queueItems(r.Assigned),
		TakenAt:        r.TakenAt,
	}
}

func queueItems(items []queue.Item) []QueueItemResponse {
	out := make([]QueueItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, QueueItemResponse{
			Position:    it.Position,
			WaitSeconds: int64(it.Wait.Seconds()),
			Item:        NewConversationResponse(it.Conversation),
		})
	}
	return out
}

// AgentResponse is one agent profile.
type AgentResponse struct {
	ID            string    `json:"id"`
	TeamID        *string   `json:"team_id,omitempty"`
	DisplayName   string    `json:"display_name"`
	Status        string    `json:"status"`
	MaxConcurrent int       `json:"max_concurrent"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewAgentResponse(a *agent.Agent) AgentResponse {
	return AgentResponse{
		ID:            a.ID,
		TeamID:        a.TeamID,
		DisplayName:   a.DisplayName,
		Status:        string(a.Status),
		MaxConcurrent: a.MaxConcurrent,
		CreatedAt:     a.CreatedAt,
	}
}

// AgentListResponse wraps a list of agents.
type AgentListResponse struct {
	Object string          `json:"object"`
	Data   []AgentResponse `json:"data"`
}

func NewAgentListResponse(items []*agent.Agent) AgentListResponse {
	data := make([]AgentResponse, 0, len(items))
	for _, a := range items {
		data = append(data, NewAgentResponse(a))
	}
	return AgentListResponse{Object: "list", Data: data}
}

// AgentStatusResponse reports whether the status changed.
type AgentStatusResponse struct {
	Changed bool `json:"changed"`
}

// BreachResponse is one conversation past the SLA threshold.
type BreachResponse struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Priority       int    `json:"priority"`
	AgeSeconds     int64  `json:"age_seconds"`
}

// AgentLoadResponse is one agent's held conversations.
type AgentLoadResponse struct {
	AgentID       string `json:"agent_id"`
	DisplayName   string `json:"display_name,omitempty"`
	Status        string `json:"status,omitempty"`
	Active        int    `json:"active"`
	Paused        int    `json:"paused"`
	MaxConcurrent int    `json:"max_concurrent"`
	OverCapacity  bool   `json:"over_capacity"`
}

// SLAReportResponse is the organization's queue health.
type SLAReportResponse struct {
	OrganizationID     string              `json:"organization_id"`
	TakenAt            time.Time           `json:"taken_at"`
	ThresholdSeconds   int64               `json:"threshold_seconds"`
	QueueDepth         int                 `json:"queue_depth"`
	DepthByBand        map[string]int      `json:"depth_by_band"`
	DepthByQueue       map[string]int      `json:"depth_by_queue"`
	AverageWaitSeconds int64               `json:"average_wait_seconds"`
	LongestWaitSeconds int64               `json:"longest_wait_seconds"`
	Active             int                 `json:"active"`
	Paused             int                 `json:"paused"`
	NearBreach         int                 `json:"near_breach"`
	AtRisk             int                 `json:"at_risk"`
	Breaches           []BreachResponse    `json:"breaches"`
	Agents             []AgentLoadResponse `json:"agents"`
}

func NewSLAReportResponse(r sla.Report) SLAReportResponse {
	bands := make(map[string]int, len(r.DepthByBand))
	for band, n := range r.DepthByBand {
		bands[string(band)] = n
	}
	breaches := make([]BreachResponse, 0, len(r.Breaches))
	for _, b := range r.Breaches {
		breaches = append(breaches, BreachResponse{
			ConversationID: b.ConversationID,
			AgentID:        b.AgentID,
			Priority:       b.Priority,
			AgeSeconds:     int64(b.Age.Seconds()),
		})
	}
	agents := make([]AgentLoadResponse, 0, len(r.Agents))
	for _, l := range r.Agents {
		agents = append(agents, AgentLoadResponse{
			AgentID:       l.AgentID,
			DisplayName:   l.DisplayName,
			Status:        string(l.Status),
			Active:        l.Active,
			Paused:        l.Paused,
			MaxConcurrent: l.MaxConcurrent,
			OverCapacity:  l.OverCapacity,
		})
	}
	return SLAReportResponse{
		OrganizationID:     r.OrganizationID,
		TakenAt:            r.TakenAt,
		ThresholdSeconds:   int64(r.Threshold.Seconds()),
		QueueDepth:         r.QueueDepth,
		DepthByBand:        bands,
		DepthByQueue:       r.DepthByQueue,
		AverageWaitSeconds: int64(r.AverageWait.Seconds()),
		LongestWaitSeconds: int64(r.LongestWait.Seconds()),
		Active:             r.Active,
		Paused:             r.Paused,
		NearBreach:         r.NearBreach,
		AtRisk:             r.AtRisk,
		Breaches:           breaches,
		Agents:             agents,
	}
}

// HealthResponse describes how fresh a pushed dashboard is.
type HealthResponse struct {
	State               string     `json:"state"`
	LastRefresh         *time.Time `json:"last_refresh,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Subscribed          bool       `json:"subscribed"`
}

// DashboardResponse is one frame pushed on the stream.
type DashboardResponse struct {
	Type    string            `json:"type"`
	Version uint64            `json:"version"`
	Queue   QueueResponse     `json:"queue"`
	SLA     SLAReportResponse `json:"sla"`
	Health  HealthResponse    `json:"health"`
}

func NewDashboardResponse(d realtime.Dashboard) DashboardResponse {
	health := HealthResponse{
		State:               string(d.Health.State),
		LastError:           d.Health.LastError,
		ConsecutiveFailures: d.Health.ConsecutiveFailures,
		Subscribed:          d.Health.Subscribed,
	}
	if !d.Health.LastRefresh.IsZero() {
		last := d.Health.LastRefresh
		health.LastRefresh = &last
	}
	return DashboardResponse{
		Type:    "dashboard",
		Version: d.Version,
		Queue:   NewQueueResponse(d.View),
		SLA:     NewSLAReportResponse(d.Report),
		Health:  health,
	}
}
