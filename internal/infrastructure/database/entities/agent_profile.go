package entities

import (
	"time"

	"github.com/deskline/queue-api/internal/domain/agent"
)

// AgentProfile represents the database schema for agents.
type AgentProfile struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID       string       `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrganizationID string       `gorm:"type:varchar(64);not null;index:idx_agent_profile_org_status,priority:1"`
	TeamID         *string      `gorm:"type:varchar(64);index"`
	DisplayName    string       `gorm:"type:varchar(128);not null"`
	Status         agent.Status `gorm:"type:varchar(20);not null;default:'offline';index:idx_agent_profile_org_status,priority:2"`
	MaxConcurrent  int          `gorm:"not null;default:0"`
}

// TableName specifies the table name for AgentProfile.
func (AgentProfile) TableName() string {
	return "agent_profiles"
}

// ToDomain maps the row to the domain model.
func (e *AgentProfile) ToDomain() *agent.Agent {
	return &agent.Agent{
		ID:             e.PublicID,
		OrganizationID: e.OrganizationID,
		TeamID:         e.TeamID,
		DisplayName:    e.DisplayName,
		Status:         e.Status,
		MaxConcurrent:  e.MaxConcurrent,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// NewAgentProfile maps a domain agent to a row.
func NewAgentProfile(a *agent.Agent) *AgentProfile {
	return &AgentProfile{
		PublicID:       a.ID,
		OrganizationID: a.OrganizationID,
		TeamID:         a.TeamID,
		DisplayName:    a.DisplayName,
		Status:         a.Status,
		MaxConcurrent:  a.MaxConcurrent,
	}
}
