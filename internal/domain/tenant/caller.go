// Package tenant carries the caller identity and the visibility scopes that
// every queue operation is evaluated against.
package tenant

import (
	"context"
	"strings"

	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// Role is the caller's role inside an organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	// RoleSystem is used by in-process callers such as the dispatcher.
	RoleSystem Role = "system"
)

// ParseRole normalizes a role string; unknown values map to RoleAgent.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	case RoleSystem:
		return RoleSystem
	default:
		return RoleAgent
	}
}

// Caller identifies who performs an operation. It is passed explicitly to
// every call; nothing in the service keeps a "current" organization or agent.
type Caller struct {
	OrganizationID string
	AgentID        string
	TeamID         string
	Role           Role
}

// CanActForOthers reports whether the caller may assign or transfer on
// behalf of another agent.
func (c Caller) CanActForOthers() bool {
	return c.Role == RoleAdmin || c.Role == RoleManager || c.Role == RoleSystem
}

// Validate rejects callers that cannot be scoped to an organization.
func (c Caller) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.OrganizationID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"caller has no organization", nil, "tenant-caller-org")
	}
	if c.Role == RoleAgent && strings.TrimSpace(c.AgentID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"agent caller has no agent id", nil, "tenant-caller-agent")
	}
	if c.Role == RoleManager && strings.TrimSpace(c.TeamID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"manager caller has no team", nil, "tenant-caller-team")
	}
	return nil
}
