// Package agent models the agents that conversations are routed to.
package agent

import (
	"context"
	"time"
)

// Status is an agent's availability.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// IsValid reports whether s is a known availability.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Agent is an organization member who handles conversations.
type Agent struct {
	ID             string
	OrganizationID string
	TeamID         *string
	DisplayName    string
	Status         Status
	// MaxConcurrent is the declared number of simultaneous conversations.
	// It is reported, never enforced by claims.
	MaxConcurrent int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InTeam reports whether the agent belongs to teamID.
func (a *Agent) InTeam(teamID string) bool {
	return a.TeamID != nil && *a.TeamID == teamID
}

// ListFilter narrows agent listings.
type ListFilter struct {
	TeamID *string
	Status *Status
}

// Repository is the tenant-scoped store for agent profiles.
type Repository interface {
	Create(ctx context.Context, a *Agent) error
	Get(ctx context.Context, orgID, agentID string) (*Agent, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]*Agent, error)
	SetStatus(ctx context.Context, orgID, agentID string, status Status) (bool, error)
}
